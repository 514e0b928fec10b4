package relax

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// tinyReal keeps the pseudo-time step finite when accelerations vanish.
const tinyReal = 1e-15

// accelerationRange accumulates the pseudo-repulsive acceleration for
// particles in [start,end). Each neighbor contributes along the unit
// separation away from itself, weighted by the kernel gradient and the
// neighbor's reference volume. Reads only the positions frozen at
// neighbor-build time; writes are disjoint per particle.
func (r *Relaxer) accelerationRange(start, end, _ int) {
	vol := r.set.Vol
	for i := start; i < end; i++ {
		acc := r3.Vec{}
		for _, p := range r.relation[i] {
			// DW < 0 inside the support, so the contribution points
			// along Dir, pushing i away from its neighbor.
			acc = r3.Sub(acc, r3.Scale(2*vol[p.J]*p.DW, p.Dir))
		}
		r.acc[i] = acc
	}
}

// integrateRange advances tentative positions over one pseudo-time step.
// The square step is bounded by the local smoothing length against the
// globally largest acceleration so no particle overshoots its own
// resolution scale in a single iteration.
func (r *Relaxer) integrateRange(start, end, _ int) {
	pos := r.set.Pos
	h := r.set.H
	for i := start; i < end; i++ {
		dtSq := 0.0625 * h[i] * h[i] / (r.maxAcc + tinyReal)
		r.next[i] = r3.Add(pos[i], r3.Scale(dtSq, r.acc[i]))
	}
}

// reduceMaxAcc computes the largest acceleration magnitude. Runs between
// the acceleration and integration fan-outs; cheap enough to stay serial.
func (r *Relaxer) reduceMaxAcc() {
	max := 0.0
	for i := range r.acc {
		if n := r3.Norm(r.acc[i]); n > max {
			max = n
		}
	}
	r.maxAcc = max
}

// boundRange finalizes tentative positions for particles in [start,end):
// level-set surface bounding (when enabled), domain clamping, and the
// signed-distance cache refresh. maxSurfErr per worker tracks how far
// bounded particles ended up from the target offset.
func (r *Relaxer) boundRange(start, end, worker int) {
	f := r.opts.Field
	band := r.opts.Refinement.Band
	offset := r.opts.TargetOffset
	maxErr := 0.0

	for i := start; i < end; i++ {
		p := r.next[i]
		phi := f.Distance(p)

		if r.opts.SurfaceBound && math.Abs(phi) <= band {
			// Project back along the gradient so the particle sits at
			// the target offset inside the surface. This is what keeps
			// particles from leaking through thin or highly curved
			// boundaries.
			p = r3.Sub(p, r3.Scale(phi+offset, f.Gradient(p)))
			phi = f.Distance(p)
			if e := math.Abs(math.Abs(phi) - offset); e > maxErr {
				maxErr = e
			}
		}

		clamped := clampToBox(p, r.opts.Box)
		if clamped != p {
			phi = f.Distance(clamped)
		}
		r.set.Pos[i] = clamped
		r.set.Dist[i] = phi
	}

	// Merge, don't overwrite: a worker can process several chunks in
	// the same phase.
	if maxErr > r.surfErr[worker] {
		r.surfErr[worker] = maxErr
	}
}

// updateRatioRange reclassifies smoothing-length ratios from the
// refreshed surface distances. RatioFor is clamped to the configured
// bounds, so the resolution invariant holds after every iteration.
func (r *Relaxer) updateRatioRange(start, end, _ int) {
	rf := r.opts.Refinement
	for i := start; i < end; i++ {
		ratio := rf.RatioFor(r.set.Dist[i])
		r.set.Ratio[i] = ratio
		r.set.H[i] = rf.HFor(ratio)
		r.set.Vol[i] = rf.VolumeFor(ratio)
	}
}

func clampToBox(p r3.Vec, b r3.Box) r3.Vec {
	return r3.Vec{
		X: math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
		Z: math.Min(math.Max(p.Z, b.Min.Z), b.Max.Z),
	}
}
