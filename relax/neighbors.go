package relax

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pair is one entry of a particle's neighbor relation, valid for the
// iteration it was built in.
type Pair struct {
	J   int32   // neighbor particle index
	W   float64 // kernel value at the current separation
	DW  float64 // radial kernel derivative dW/dr, negative inside support
	Dir r3.Vec  // unit separation vector from the neighbor toward the particle
}

// buildNeighborsRange fills the neighbor relation for particles in
// [start,end). Candidates come from the cell list; the exact cutoff is
// the kernel support times the pairwise maximum smoothing length, which
// makes discovery symmetric: if i reaches j under this rule, j reaches i
// with the same cutoff.
func (r *Relaxer) buildNeighborsRange(start, end, worker int) {
	pos := r.set.Pos
	h := r.set.H
	support := r.opts.Kernel.SupportRadius()
	searchRadius := r.cells.CellSize()

	for i := start; i < end; i++ {
		cand := r.cells.CandidatesInto(r.scratch[worker][:0], pos[i], searchRadius)
		rel := r.relation[i][:0]
		nearest := math.Inf(1)

		for _, j := range cand {
			if int(j) == i {
				continue
			}
			d := r3.Sub(pos[i], pos[j])
			dist := r3.Norm(d)

			hij := h[i]
			if h[j] > hij {
				hij = h[j]
			}
			if dist > support*hij {
				continue
			}
			if dist < nearest && dist > 0 {
				nearest = dist
			}

			dir := r3.Vec{X: 1}
			if dist > 0 {
				dir = r3.Scale(1/dist, d)
			}
			rel = append(rel, Pair{
				J:   j,
				W:   r.opts.Kernel.W(dist, hij),
				DW:  r.opts.Kernel.DW(dist, hij),
				Dir: dir,
			})
		}

		r.scratch[worker] = cand // keep grown capacity for the next particle
		r.relation[i] = rel
		r.counts[i] = len(rel)
		if len(rel) == 0 || math.IsInf(nearest, 1) {
			// No neighbors, or only coincident ones: no spacing data for
			// this particle. Diagnostics pick it up from counts.
			r.nearest[i] = 0
		} else {
			r.nearest[i] = nearest
		}
	}
}
