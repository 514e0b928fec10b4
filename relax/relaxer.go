// Package relax implements the level-set-guided particle relaxation
// loop: spatial index build, neighbor relation build, pseudo-repulsive
// displacement, surface bounding and smoothing-length adaptation.
package relax

import (
	"fmt"
	"log/slog"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/bodyfit/field"
	"github.com/pthm-cable/bodyfit/grid"
	"github.com/pthm-cable/bodyfit/kernel"
	"github.com/pthm-cable/bodyfit/particle"
	"github.com/pthm-cable/bodyfit/telemetry"
)

// Options carries everything a relaxation run needs. All values are
// injected at construction; the loop itself parses nothing and performs
// no I/O beyond the recorder callback.
type Options struct {
	Field      field.Field
	Kernel     kernel.Kernel
	Box        r3.Box              // domain bounds; positions never leave this box
	Refinement particle.Refinement // smoothing-length controller parameters

	Iterations   int     // fixed iteration budget
	RecordEvery  int     // recorder cadence in iterations (0 = final state only)
	SurfaceBound bool    // enable the level-set correction stage
	TargetOffset float64 // bounded particles settle this far inside the surface
	BoundingTol  float64 // tolerated |distance|-offset deviation, for diagnostics
	Jitter       float64 // one-time lattice jitter fraction (0 = off)
	Workers      int     // worker goroutines (0 = GOMAXPROCS)
	Seed         int64   // RNG seed for the jitter

	Recorder Recorder                 // optional snapshot sink
	Perf     *telemetry.PerfCollector // optional phase timing
}

// State tracks loop progress and the latest quality diagnostics.
type State struct {
	Iteration int
	Budget    int
	Quality   telemetry.Quality
}

// Relaxer drives the relaxation of one particle set. Not safe for
// concurrent use; the parallelism lives inside the phases.
type Relaxer struct {
	opts Options
	set  *particle.Set

	cells    *grid.CellList
	relation [][]Pair
	counts   []int
	nearest  []float64
	acc      []r3.Vec
	next     []r3.Vec // tentative positions, applied by the bounding phase

	maxAcc     float64
	surfErr    []float64 // per-worker surface error partial maxima
	maxSurfErr float64

	scratch [][]int32 // per-worker candidate buffers
	pool    *pool
	rng     *rand.Rand
	state   State
}

// New creates a relaxer over set. The set is mutated in place by Run and
// remains owned by the caller.
func New(set *particle.Set, opts Options) (*Relaxer, error) {
	if opts.Field == nil {
		return nil, fmt.Errorf("relax: nil field")
	}
	if opts.Kernel == nil {
		return nil, fmt.Errorf("relax: nil kernel")
	}
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("relax: empty particle set")
	}

	n := set.Len()
	p := newPool(opts.Workers)

	scratch := make([][]int32, p.numWorkers)
	for i := range scratch {
		scratch[i] = make([]int32, 0, 64)
	}

	return &Relaxer{
		opts:     opts,
		set:      set,
		relation: make([][]Pair, n),
		counts:   make([]int, n),
		nearest:  make([]float64, n),
		acc:      make([]r3.Vec, n),
		next:     make([]r3.Vec, n),
		surfErr:  make([]float64, p.numWorkers),
		scratch:  scratch,
		pool:     p,
		rng:      rand.New(rand.NewSource(opts.Seed)),
		state:    State{Budget: opts.Iterations},
	}, nil
}

// Set returns the particle set being relaxed.
func (r *Relaxer) Set() *particle.Set { return r.set }

// State returns the current loop state.
func (r *Relaxer) State() State { return r.state }

// Run executes the configured iteration budget and hands the relaxed set
// back through the recorder. The only errors it can return come from the
// recorder; the in-memory phases themselves never fail once the loop has
// started.
func (r *Relaxer) Run() error {
	defer r.pool.stop()

	n := r.set.Len()

	if r.opts.Jitter > 0 {
		particle.Jitter(r.set, r.opts.Refinement, r.rng, r.opts.Jitter)
	}

	// Snapshot the seeded layout before the first iteration so the
	// recorder always sees the starting point.
	r.buildIndex()
	r.pool.run(n, r.buildNeighborsRange)
	if err := r.record(0); err != nil {
		return err
	}

	for it := 1; it <= r.opts.Iterations; it++ {
		r.step()
		r.state.Iteration = it

		if r.opts.RecordEvery > 0 && it%r.opts.RecordEvery == 0 {
			if err := r.record(it); err != nil {
				return err
			}
		}
	}

	if r.opts.Iterations > 0 && (r.opts.RecordEvery == 0 || r.opts.Iterations%r.opts.RecordEvery != 0) {
		if err := r.record(r.opts.Iterations); err != nil {
			return err
		}
	}
	return nil
}

// step runs one atomic relaxation iteration. Every phase reads only
// state finalized by the previous one; the pool's dispatch/completion
// cycle is the barrier in between.
func (r *Relaxer) step() {
	n := r.set.Len()

	r.startIter()

	r.startPhase(telemetry.PhaseBuildIndex)
	r.buildIndex()

	r.startPhase(telemetry.PhaseBuildNeighbors)
	r.pool.run(n, r.buildNeighborsRange)

	r.startPhase(telemetry.PhaseDisplacement)
	r.pool.run(n, r.accelerationRange)
	r.reduceMaxAcc()
	r.pool.run(n, r.integrateRange)

	r.startPhase(telemetry.PhaseSurfaceBound)
	for i := range r.surfErr {
		r.surfErr[i] = 0
	}
	r.pool.run(n, r.boundRange)
	r.maxSurfErr = 0
	for _, e := range r.surfErr {
		if e > r.maxSurfErr {
			r.maxSurfErr = e
		}
	}

	r.startPhase(telemetry.PhaseUpdateRatio)
	r.pool.run(n, r.updateRatioRange)

	r.endIter()
}

// buildIndex rebuilds the cell list from current positions. The cell
// size follows the coarsest active ratio, so it is re-derived every
// iteration; the list is only reallocated when the size actually moves.
func (r *Relaxer) buildIndex() {
	size := r.opts.Kernel.SupportRadius() * r.opts.Refinement.BaseH * r.set.CoarsestRatio()
	if r.cells == nil || r.cells.CellSize() != size {
		r.cells = grid.NewCellList(r.opts.Box, size)
	}
	r.cells.Build(r.set.Pos)
}

// record computes quality diagnostics and forwards the snapshot.
func (r *Relaxer) record(iteration int) error {
	occupied, maxLoad := r.cells.OccupiedCells()
	q := telemetry.ComputeQuality(iteration, r.set, r.counts, r.nearest, r.maxSurfErr, occupied, maxLoad)
	r.state.Quality = q
	q.Log()

	if r.opts.SurfaceBound && r.opts.BoundingTol > 0 && q.MaxSurfErr > r.opts.BoundingTol {
		slog.Warn("surface bounding outside tolerance",
			"iteration", iteration,
			"max_surface_error", q.MaxSurfErr,
			"tolerance", r.opts.BoundingTol,
		)
	}

	if r.opts.Recorder == nil {
		return nil
	}
	if err := r.opts.Recorder.Record(iteration, r.set, q); err != nil {
		return fmt.Errorf("relax: recording iteration %d: %w", iteration, err)
	}
	return nil
}

func (r *Relaxer) startIter() {
	if r.opts.Perf != nil {
		r.opts.Perf.StartIter()
	}
}

func (r *Relaxer) startPhase(name string) {
	if r.opts.Perf != nil {
		r.opts.Perf.StartPhase(name)
	}
}

func (r *Relaxer) endIter() {
	if r.opts.Perf != nil {
		r.opts.Perf.EndIter()
	}
}
