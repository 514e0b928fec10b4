// Package particle holds the particle data model and the lattice
// generator that seeds particles from a signed-distance field.
package particle

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Set is the fixed-size particle array mutated in place by the relaxation
// loop. Storage is struct-of-arrays; a particle's identity is its index,
// stable for the whole run. The set never grows or shrinks after
// generation.
type Set struct {
	Pos   []r3.Vec  // current position
	Vol   []float64 // reference volume
	H     []float64 // smoothing length
	Ratio []float64 // smoothing-length ratio, finest (smallest) near the surface
	Dist  []float64 // cached signed distance to the surface
}

// NewSet allocates a set of n particles with zeroed fields.
func NewSet(n int) *Set {
	return &Set{
		Pos:   make([]r3.Vec, n),
		Vol:   make([]float64, n),
		H:     make([]float64, n),
		Ratio: make([]float64, n),
		Dist:  make([]float64, n),
	}
}

// Len returns the particle count.
func (s *Set) Len() int { return len(s.Pos) }

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	c := NewSet(s.Len())
	copy(c.Pos, s.Pos)
	copy(c.Vol, s.Vol)
	copy(c.H, s.H)
	copy(c.Ratio, s.Ratio)
	copy(c.Dist, s.Dist)
	return c
}

// CoarsestRatio returns the largest ratio currently present. The spatial
// index sizes its cells from this value so that neighbor queries stay
// correct for the coarsest particles.
func (s *Set) CoarsestRatio() float64 {
	if s.Len() == 0 {
		return 1
	}
	max := s.Ratio[0]
	for _, r := range s.Ratio[1:] {
		if r > max {
			max = r
		}
	}
	return max
}
