// Package field provides signed-distance descriptions of solid geometry.
//
// A field reports the distance from any point to the solid's surface,
// negative inside the solid and positive outside. Fields are immutable
// once constructed and safe for concurrent reads.
package field

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Field is the read-only geometry abstraction consumed by the relaxation
// engine. Distance is negative inside the solid. Gradient returns the unit
// outward direction of steepest distance increase. Queries outside Bounds
// must degrade gracefully rather than fail.
type Field interface {
	Distance(p r3.Vec) float64
	Gradient(p r3.Vec) r3.Vec
	Bounds() r3.Box
}

// gradStep is the half-width used for finite-difference gradients of
// analytic shapes without a closed-form normal.
const gradStep = 1e-5

// numGradient approximates the unit gradient of f at p by central
// differences. Falls back to +X when the local gradient vanishes
// (e.g. at the exact center of a symmetric shape).
func numGradient(f Field, p r3.Vec, step float64) r3.Vec {
	g := r3.Vec{
		X: f.Distance(r3.Vec{X: p.X + step, Y: p.Y, Z: p.Z}) - f.Distance(r3.Vec{X: p.X - step, Y: p.Y, Z: p.Z}),
		Y: f.Distance(r3.Vec{X: p.X, Y: p.Y + step, Z: p.Z}) - f.Distance(r3.Vec{X: p.X, Y: p.Y - step, Z: p.Z}),
		Z: f.Distance(r3.Vec{X: p.X, Y: p.Y, Z: p.Z + step}) - f.Distance(r3.Vec{X: p.X, Y: p.Y, Z: p.Z - step}),
	}
	n := r3.Norm(g)
	if n == 0 {
		return r3.Vec{X: 1}
	}
	return r3.Scale(1/n, g)
}

// Project moves p along the field gradient until its distance magnitude
// drops to tol or below, and returns the moved point. The walk is bounded;
// if it fails to converge the best point reached is returned. Projection
// never aborts a relaxation step.
func Project(f Field, p r3.Vec, tol float64) r3.Vec {
	const maxSteps = 32
	for i := 0; i < maxSteps; i++ {
		d := f.Distance(p)
		if math.Abs(d) <= tol {
			break
		}
		p = r3.Sub(p, r3.Scale(d, f.Gradient(p)))
	}
	return p
}

// Contains reports whether p lies inside the solid.
func Contains(f Field, p r3.Vec) bool {
	return f.Distance(p) < 0
}

// boxSize returns the edge lengths of b.
func boxSize(b r3.Box) r3.Vec {
	return r3.Sub(b.Max, b.Min)
}

// mergeBounds returns the smallest box covering both a and b.
func mergeBounds(a, b r3.Box) r3.Box {
	return r3.Box{
		Min: r3.Vec{X: math.Min(a.Min.X, b.Min.X), Y: math.Min(a.Min.Y, b.Min.Y), Z: math.Min(a.Min.Z, b.Min.Z)},
		Max: r3.Vec{X: math.Max(a.Max.X, b.Max.X), Y: math.Max(a.Max.Y, b.Max.Y), Z: math.Max(a.Max.Z, b.Max.Z)},
	}
}
