package particle

import "math"

// Refinement maps a particle's distance from the surface to its
// smoothing-length ratio. The ratio scales interaction lengths: local
// smoothing length is BaseH*ratio and local spacing is Spacing*ratio,
// so a smaller ratio means finer resolution. Particles within Band of
// the surface carry the finest ratio (MinRatio); particles beyond Coarse
// relax to the coarsest (MaxRatio); in between the mapping is linear and
// monotone in distance.
type Refinement struct {
	Spacing  float64 // base particle spacing dp0
	BaseH    float64 // smoothing length at ratio 1
	MinRatio float64 // finest ratio, held near the surface
	MaxRatio float64 // coarsest ratio, reached far from the surface
	Band     float64 // near-surface band width
	Coarse   float64 // distance at which the ratio reaches MaxRatio
}

// RatioFor returns the smoothing-length ratio for a particle at signed
// distance d from the surface, clamped to [MinRatio, MaxRatio].
func (rf Refinement) RatioFor(d float64) float64 {
	ad := math.Abs(d)
	if ad <= rf.Band {
		return rf.MinRatio
	}
	if ad >= rf.Coarse || rf.Coarse <= rf.Band {
		return rf.MaxRatio
	}
	t := (ad - rf.Band) / (rf.Coarse - rf.Band)
	return rf.MinRatio + t*(rf.MaxRatio-rf.MinRatio)
}

// HFor returns the smoothing length for a given ratio.
func (rf Refinement) HFor(ratio float64) float64 {
	return rf.BaseH * ratio
}

// SpacingFor returns the local particle spacing for a given ratio.
func (rf Refinement) SpacingFor(ratio float64) float64 {
	return rf.Spacing * ratio
}

// VolumeFor returns the reference volume for a given ratio.
func (rf Refinement) VolumeFor(ratio float64) float64 {
	dp := rf.SpacingFor(ratio)
	return dp * dp * dp
}
