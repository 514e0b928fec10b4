package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// GridField is a signed-distance field sampled on a uniform grid with
// trilinear interpolation between samples. Queries outside the sampled
// box clamp to the nearest valid sample, so an out-of-range probe
// degrades to the edge value instead of failing.
type GridField struct {
	origin     r3.Vec
	h          float64
	nx, ny, nz int
	data       []float64
	bounds     r3.Box
}

// SampleField voxelizes src over box with sample spacing h. The grid is
// padded by two cells on every side so that near-surface gradient stencils
// stay inside sampled territory. Construction fails on a non-positive
// spacing or a degenerate box; a relaxation run cannot start without a
// valid field.
func SampleField(src Field, box r3.Box, h float64) (*GridField, error) {
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return nil, fmt.Errorf("field: invalid sample spacing %v", h)
	}
	size := boxSize(box)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("field: degenerate sampling box %+v", box)
	}

	const pad = 2
	origin := r3.Sub(box.Min, r3.Vec{X: pad * h, Y: pad * h, Z: pad * h})
	nx := int(math.Ceil(size.X/h)) + 1 + 2*pad
	ny := int(math.Ceil(size.Y/h)) + 1 + 2*pad
	nz := int(math.Ceil(size.Z/h)) + 1 + 2*pad

	g := &GridField{
		origin: origin,
		h:      h,
		nx:     nx,
		ny:     ny,
		nz:     nz,
		data:   make([]float64, nx*ny*nz),
		bounds: r3.Box{
			Min: origin,
			Max: r3.Add(origin, r3.Vec{X: float64(nx-1) * h, Y: float64(ny-1) * h, Z: float64(nz-1) * h}),
		},
	}

	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				p := r3.Add(origin, r3.Vec{X: float64(i) * h, Y: float64(j) * h, Z: float64(k) * h})
				g.data[g.index(i, j, k)] = src.Distance(p)
			}
		}
	}
	return g, nil
}

func (g *GridField) index(i, j, k int) int {
	return i + g.nx*(j+g.ny*k)
}

// at reads a sample with indices clamped to the grid.
func (g *GridField) at(i, j, k int) float64 {
	i = clampIndex(i, g.nx)
	j = clampIndex(j, g.ny)
	k = clampIndex(k, g.nz)
	return g.data[g.index(i, j, k)]
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Distance interpolates the sampled field trilinearly at p.
func (g *GridField) Distance(p r3.Vec) float64 {
	u := (p.X - g.origin.X) / g.h
	v := (p.Y - g.origin.Y) / g.h
	w := (p.Z - g.origin.Z) / g.h

	i, fx := splitCoord(u, g.nx)
	j, fy := splitCoord(v, g.ny)
	k, fz := splitCoord(w, g.nz)

	c000 := g.at(i, j, k)
	c100 := g.at(i+1, j, k)
	c010 := g.at(i, j+1, k)
	c110 := g.at(i+1, j+1, k)
	c001 := g.at(i, j, k+1)
	c101 := g.at(i+1, j, k+1)
	c011 := g.at(i, j+1, k+1)
	c111 := g.at(i+1, j+1, k+1)

	c00 := c000 + fx*(c100-c000)
	c10 := c010 + fx*(c110-c010)
	c01 := c001 + fx*(c101-c001)
	c11 := c011 + fx*(c111-c011)

	c0 := c00 + fy*(c10-c00)
	c1 := c01 + fy*(c11-c01)

	return c0 + fz*(c1-c0)
}

// splitCoord clamps a fractional grid coordinate into the valid cell
// range and splits it into base index and fraction.
func splitCoord(u float64, n int) (int, float64) {
	if u < 0 {
		return 0, 0
	}
	if u >= float64(n-1) {
		return n - 2, 1
	}
	i := int(u)
	return i, u - float64(i)
}

// Gradient returns the unit central-difference gradient of the
// interpolated field at p. The stencil half-width is half a cell, fine
// enough to follow interpolated surface curvature.
func (g *GridField) Gradient(p r3.Vec) r3.Vec {
	return numGradient(g, p, g.h/2)
}

// Bounds returns the sampled (padded) box.
func (g *GridField) Bounds() r3.Box {
	return g.bounds
}

// Spacing returns the grid sample spacing.
func (g *GridField) Spacing() float64 {
	return g.h
}
