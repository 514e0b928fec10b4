package field

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sphere is a solid ball centered at Center with radius Radius.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s Sphere) Distance(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.Center)) - s.Radius
}

func (s Sphere) Gradient(p r3.Vec) r3.Vec {
	d := r3.Sub(p, s.Center)
	n := r3.Norm(d)
	if n == 0 {
		return r3.Vec{X: 1}
	}
	return r3.Scale(1/n, d)
}

func (s Sphere) Bounds() r3.Box {
	r := r3.Vec{X: s.Radius, Y: s.Radius, Z: s.Radius}
	return r3.Box{Min: r3.Sub(s.Center, r), Max: r3.Add(s.Center, r)}
}

// Box is an axis-aligned solid box.
type Box struct {
	Min, Max r3.Vec
}

func (b Box) Distance(p r3.Vec) float64 {
	c := r3.Scale(0.5, r3.Add(b.Min, b.Max))
	h := r3.Scale(0.5, r3.Sub(b.Max, b.Min))
	q := r3.Vec{
		X: math.Abs(p.X-c.X) - h.X,
		Y: math.Abs(p.Y-c.Y) - h.Y,
		Z: math.Abs(p.Z-c.Z) - h.Z,
	}
	outside := r3.Vec{X: math.Max(q.X, 0), Y: math.Max(q.Y, 0), Z: math.Max(q.Z, 0)}
	inside := math.Min(math.Max(q.X, math.Max(q.Y, q.Z)), 0)
	return r3.Norm(outside) + inside
}

func (b Box) Gradient(p r3.Vec) r3.Vec {
	return numGradient(b, p, gradStep)
}

func (b Box) Bounds() r3.Box {
	return r3.Box{Min: b.Min, Max: b.Max}
}

// Cylinder is a solid capped cylinder with its axis parallel to Z.
type Cylinder struct {
	Center r3.Vec // midpoint of the axis
	Radius float64
	Height float64 // full height along Z
}

func (c Cylinder) Distance(p r3.Vec) float64 {
	dx := p.X - c.Center.X
	dy := p.Y - c.Center.Y
	dr := math.Hypot(dx, dy) - c.Radius
	dz := math.Abs(p.Z-c.Center.Z) - c.Height/2
	outside := math.Hypot(math.Max(dr, 0), math.Max(dz, 0))
	inside := math.Min(math.Max(dr, dz), 0)
	return outside + inside
}

func (c Cylinder) Gradient(p r3.Vec) r3.Vec {
	return numGradient(c, p, gradStep)
}

func (c Cylinder) Bounds() r3.Box {
	h := r3.Vec{X: c.Radius, Y: c.Radius, Z: c.Height / 2}
	return r3.Box{Min: r3.Sub(c.Center, h), Max: r3.Add(c.Center, h)}
}

// union composes member solids; the composite distance is the minimum of
// the members' distances. The gradient comes from the winning member, so
// a union behaves like its closest part everywhere.
type union struct {
	members []Field
	bounds  r3.Box
}

// Union returns the solid union of the given fields.
func Union(members ...Field) Field {
	if len(members) == 0 {
		panic("field: Union of no members")
	}
	if len(members) == 1 {
		return members[0]
	}
	b := members[0].Bounds()
	for _, m := range members[1:] {
		b = mergeBounds(b, m.Bounds())
	}
	return union{members: members, bounds: b}
}

func (u union) Distance(p r3.Vec) float64 {
	d := u.members[0].Distance(p)
	for _, m := range u.members[1:] {
		if md := m.Distance(p); md < d {
			d = md
		}
	}
	return d
}

func (u union) Gradient(p r3.Vec) r3.Vec {
	best := u.members[0]
	d := best.Distance(p)
	for _, m := range u.members[1:] {
		if md := m.Distance(p); md < d {
			d, best = md, m
		}
	}
	return best.Gradient(p)
}

func (u union) Bounds() r3.Box {
	return u.bounds
}
