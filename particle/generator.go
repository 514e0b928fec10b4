package particle

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/bodyfit/field"
)

// Generate seeds particles on a regular lattice with base spacing
// rf.Spacing over the domain box, keeping lattice points inside the
// solid. Each particle's ratio, smoothing length and volume come from
// its distance to the surface, so near-surface particles start at the
// fine resolution the relaxation will maintain.
//
// Generation fails if the lattice captures no interior point: an empty
// set cannot be relaxed and indicates a bad geometry or spacing.
func Generate(f field.Field, box r3.Box, rf Refinement) (*Set, error) {
	if rf.Spacing <= 0 {
		return nil, fmt.Errorf("particle: invalid base spacing %v", rf.Spacing)
	}

	dp := rf.Spacing
	var pos []r3.Vec
	var dist []float64

	// Lattice points are cell centers, offset half a spacing from the
	// box corner.
	for z := box.Min.Z + dp/2; z < box.Max.Z; z += dp {
		for y := box.Min.Y + dp/2; y < box.Max.Y; y += dp {
			for x := box.Min.X + dp/2; x < box.Max.X; x += dp {
				p := r3.Vec{X: x, Y: y, Z: z}
				d := f.Distance(p)
				if d < 0 {
					pos = append(pos, p)
					dist = append(dist, d)
				}
			}
		}
	}

	if len(pos) == 0 {
		return nil, fmt.Errorf("particle: no lattice points inside geometry (spacing %v)", dp)
	}

	s := NewSet(len(pos))
	copy(s.Pos, pos)
	copy(s.Dist, dist)
	for i := range s.Pos {
		ratio := rf.RatioFor(s.Dist[i])
		s.Ratio[i] = ratio
		s.H[i] = rf.HFor(ratio)
		s.Vol[i] = rf.VolumeFor(ratio)
	}
	return s, nil
}

// Jitter displaces every particle by a uniform random offset up to
// fraction of its local spacing in each axis, breaking the initial
// lattice symmetry so relaxation does not stall on a perfect grid.
func Jitter(s *Set, rf Refinement, rng *rand.Rand, fraction float64) {
	if fraction <= 0 {
		return
	}
	for i := range s.Pos {
		amp := fraction * rf.SpacingFor(s.Ratio[i])
		s.Pos[i] = r3.Add(s.Pos[i], r3.Vec{
			X: amp * (2*rng.Float64() - 1),
			Y: amp * (2*rng.Float64() - 1),
			Z: amp * (2*rng.Float64() - 1),
		})
	}
}
