// Package kernel provides smoothing kernels for particle interpolation.
//
// A kernel weights the contribution of a neighbor as a function of the
// separation distance r and the smoothing length h. All kernels here have
// compact support: W and dW/dr are exactly zero beyond SupportRadius()*h.
package kernel

import (
	"fmt"
	"math"
)

// Kernel evaluates a smoothing function and its radial derivative.
type Kernel interface {
	// W returns the kernel value at separation r with smoothing length h.
	W(r, h float64) float64
	// DW returns dW/dr at separation r. Negative inside the support,
	// so -DW points neighbors apart.
	DW(r, h float64) float64
	// SupportRadius returns the cutoff in multiples of h.
	SupportRadius() float64
	// Name identifies the kernel in config and diagnostics.
	Name() string
}

// New returns the kernel registered under name.
func New(name string) (Kernel, error) {
	switch name {
	case "wendland_c2", "":
		return WendlandC2{}, nil
	case "cubic_spline":
		return CubicSpline{}, nil
	default:
		return nil, fmt.Errorf("kernel: unknown kernel %q", name)
	}
}

// WendlandC2 is the Wendland C2 kernel with support 2h, the default for
// relaxation: its derivative is smooth at the origin, which keeps the
// repulsive displacement stable for closely stacked particles.
type WendlandC2 struct{}

func (WendlandC2) Name() string           { return "wendland_c2" }
func (WendlandC2) SupportRadius() float64 { return 2 }

func (WendlandC2) W(r, h float64) float64 {
	q := r / h
	if q >= 2 {
		return 0
	}
	sigma := 21 / (16 * math.Pi * h * h * h)
	t := 1 - q/2
	t2 := t * t
	return sigma * t2 * t2 * (2*q + 1)
}

func (WendlandC2) DW(r, h float64) float64 {
	q := r / h
	if q >= 2 {
		return 0
	}
	sigma := 21 / (16 * math.Pi * h * h * h)
	t := 1 - q/2
	// d/dq [ (1-q/2)^4 (2q+1) ] = -5q (1-q/2)^3
	return sigma * (-5 * q * t * t * t) / h
}

// CubicSpline is the classic M4 cubic spline kernel with support 2h.
type CubicSpline struct{}

func (CubicSpline) Name() string           { return "cubic_spline" }
func (CubicSpline) SupportRadius() float64 { return 2 }

func (CubicSpline) W(r, h float64) float64 {
	q := r / h
	sigma := 1 / (math.Pi * h * h * h)
	switch {
	case q < 1:
		return sigma * (1 - 1.5*q*q + 0.75*q*q*q)
	case q < 2:
		d := 2 - q
		return sigma * 0.25 * d * d * d
	default:
		return 0
	}
}

func (CubicSpline) DW(r, h float64) float64 {
	q := r / h
	sigma := 1 / (math.Pi * h * h * h)
	switch {
	case q < 1:
		return sigma * (-3*q + 2.25*q*q) / h
	case q < 2:
		d := 2 - q
		return sigma * -0.75 * d * d / h
	default:
		return 0
	}
}
