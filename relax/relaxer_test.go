package relax

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/bodyfit/field"
	"github.com/pthm-cable/bodyfit/kernel"
	"github.com/pthm-cable/bodyfit/particle"
	"github.com/pthm-cable/bodyfit/telemetry"
)

func sphereOptions(radius float64, iterations int) (field.Field, Options) {
	f := field.Sphere{Center: r3.Vec{}, Radius: radius}
	half := radius + 3
	box := r3.Box{Min: r3.Vec{X: -half, Y: -half, Z: -half}, Max: r3.Vec{X: half, Y: half, Z: half}}

	rf := particle.Refinement{
		Spacing:  1,
		BaseH:    1.3,
		MinRatio: 1,
		MaxRatio: 2,
		Band:     2,
		Coarse:   8,
	}

	return f, Options{
		Field:        f,
		Kernel:       kernel.WendlandC2{},
		Box:          box,
		Refinement:   rf,
		Iterations:   iterations,
		SurfaceBound: true,
		TargetOffset: 0.5,
		BoundingTol:  0.05,
		Workers:      2,
		Seed:         7,
	}
}

func seedSphere(t *testing.T, radius float64, opts Options) *particle.Set {
	t.Helper()
	s, err := particle.Generate(opts.Field, opts.Box, opts.Refinement)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	_, opts := sphereOptions(3, 1)
	set := seedSphere(t, 3, opts)

	bad := opts
	bad.Field = nil
	_, err := New(set, bad)
	assert.Error(t, err, "nil field")

	bad = opts
	bad.Kernel = nil
	_, err = New(set, bad)
	assert.Error(t, err, "nil kernel")

	_, err = New(particle.NewSet(0), opts)
	assert.Error(t, err, "empty set")
}

func TestParticleCountInvariant(t *testing.T) {
	_, opts := sphereOptions(4, 20)
	opts.Jitter = 0.25
	set := seedSphere(t, 4, opts)
	before := set.Len()

	counts := []int{}
	opts.RecordEvery = 5
	opts.Recorder = RecorderFunc(func(_ int, s *particle.Set, _ telemetry.Quality) error {
		counts = append(counts, s.Len())
		return nil
	})

	r, err := New(set, opts)
	require.NoError(t, err)
	require.NoError(t, r.Run())

	assert.Equal(t, before, set.Len())
	for _, c := range counts {
		assert.Equal(t, before, c, "count must hold at every recorded iteration")
	}
}

func TestZeroBudgetLeavesPositionsUntouched(t *testing.T) {
	_, opts := sphereOptions(4, 0)
	opts.Jitter = 0
	set := seedSphere(t, 4, opts)
	before := set.Clone()

	r, err := New(set, opts)
	require.NoError(t, err)
	require.NoError(t, r.Run())

	assert.Equal(t, before.Pos, set.Pos)
}

func TestZeroBudgetWithJitterMovesWithinFraction(t *testing.T) {
	_, opts := sphereOptions(4, 0)
	opts.Jitter = 0.25
	set := seedSphere(t, 4, opts)
	before := set.Clone()

	r, err := New(set, opts)
	require.NoError(t, err)
	require.NoError(t, r.Run())

	for i := 0; i < set.Len(); i++ {
		d := r3.Norm(r3.Sub(set.Pos[i], before.Pos[i]))
		amp := 0.25 * opts.Refinement.SpacingFor(before.Ratio[i])
		assert.LessOrEqual(t, d, amp*math.Sqrt(3)+1e-12)
	}
}

func TestNeighborSymmetry(t *testing.T) {
	_, opts := sphereOptions(4, 0)
	opts.Jitter = 0.25
	set := seedSphere(t, 4, opts)

	r, err := New(set, opts)
	require.NoError(t, err)
	defer r.pool.stop()

	// Force a ratio mix so the pairwise max-rule actually matters.
	for i := 0; i < set.Len(); i++ {
		ratio := opts.Refinement.RatioFor(set.Dist[i])
		set.Ratio[i] = ratio
		set.H[i] = opts.Refinement.HFor(ratio)
	}
	require.Greater(t, set.CoarsestRatio(), 1.0, "test geometry must produce mixed ratios")

	r.buildIndex()
	r.pool.run(set.Len(), r.buildNeighborsRange)

	neighbors := make([]map[int32]bool, set.Len())
	for i := range neighbors {
		neighbors[i] = make(map[int32]bool, len(r.relation[i]))
		for _, p := range r.relation[i] {
			neighbors[i][p.J] = true
		}
	}

	for i := range neighbors {
		for j := range neighbors[i] {
			assert.True(t, neighbors[j][int32(i)],
				"particle %d sees %d but not vice versa", i, j)
		}
	}
}

func TestRatioBoundsAfterEveryIteration(t *testing.T) {
	_, opts := sphereOptions(4, 10)
	opts.Jitter = 0.25
	opts.RecordEvery = 1
	set := seedSphere(t, 4, opts)

	opts.Recorder = RecorderFunc(func(_ int, s *particle.Set, _ telemetry.Quality) error {
		for i := 0; i < s.Len(); i++ {
			if s.Ratio[i] < opts.Refinement.MinRatio || s.Ratio[i] > opts.Refinement.MaxRatio {
				return errors.New("ratio out of bounds")
			}
		}
		return nil
	})

	r, err := New(set, opts)
	require.NoError(t, err)
	assert.NoError(t, r.Run())
}

func TestSurfaceBoundingConformity(t *testing.T) {
	_, opts := sphereOptions(5, 15)
	opts.Jitter = 0.25
	set := seedSphere(t, 5, opts)

	r, err := New(set, opts)
	require.NoError(t, err)
	require.NoError(t, r.Run())

	// Every particle the bounding stage touched sits at the target
	// offset inside the surface; on an analytic sphere the projection
	// is exact, so the check can be tight.
	band := opts.Refinement.Band
	for i := 0; i < set.Len(); i++ {
		if math.Abs(set.Dist[i]) <= band {
			assert.InDelta(t, opts.TargetOffset, math.Abs(set.Dist[i]), opts.BoundingTol,
				"particle %d at distance %v", i, set.Dist[i])
		}
	}

	assert.LessOrEqual(t, r.State().Quality.MaxSurfErr, opts.BoundingTol)
}

func TestPositionsStayInsideDomain(t *testing.T) {
	_, opts := sphereOptions(4, 10)
	opts.Jitter = 0.25
	set := seedSphere(t, 4, opts)

	r, err := New(set, opts)
	require.NoError(t, err)
	require.NoError(t, r.Run())

	for i := 0; i < set.Len(); i++ {
		p := set.Pos[i]
		assert.True(t, p.X >= opts.Box.Min.X && p.X <= opts.Box.Max.X)
		assert.True(t, p.Y >= opts.Box.Min.Y && p.Y <= opts.Box.Max.Y)
		assert.True(t, p.Z >= opts.Box.Min.Z && p.Z <= opts.Box.Max.Z)
	}
}

func TestIsolatedParticlesDoNotStopTheLoop(t *testing.T) {
	f := field.Sphere{Center: r3.Vec{}, Radius: 20}
	box := r3.Box{Min: r3.Vec{X: -20, Y: -20, Z: -20}, Max: r3.Vec{X: 20, Y: 20, Z: 20}}

	// Two particles far outside each other's support.
	set := particle.NewSet(2)
	set.Pos[0] = r3.Vec{X: -10}
	set.Pos[1] = r3.Vec{X: 10}
	for i := 0; i < 2; i++ {
		set.Vol[i] = 1
		set.H[i] = 1.3
		set.Ratio[i] = 1
		set.Dist[i] = f.Distance(set.Pos[i])
	}

	var lastQ telemetry.Quality
	r, err := New(set, Options{
		Field:  f,
		Kernel: kernel.WendlandC2{},
		Box:    box,
		Refinement: particle.Refinement{
			Spacing: 1, BaseH: 1.3, MinRatio: 1, MaxRatio: 2, Band: 2, Coarse: 8,
		},
		Iterations:  3,
		RecordEvery: 1,
		Recorder: RecorderFunc(func(_ int, _ *particle.Set, q telemetry.Quality) error {
			lastQ = q
			return nil
		}),
	})
	require.NoError(t, err)
	require.NoError(t, r.Run())

	assert.Equal(t, 2, lastQ.Isolated, "both particles are degenerate but the loop completes")
	assert.Equal(t, set.Pos[0], r3.Vec{X: -10}, "no neighbors means zero displacement")
}

func TestRecorderErrorAbortsRun(t *testing.T) {
	_, opts := sphereOptions(3, 10)
	opts.RecordEvery = 2
	boom := errors.New("disk full")
	calls := 0
	opts.Recorder = RecorderFunc(func(iter int, _ *particle.Set, _ telemetry.Quality) error {
		calls++
		if iter >= 4 {
			return boom
		}
		return nil
	})

	set := seedSphere(t, 3, opts)
	r, err := New(set, opts)
	require.NoError(t, err)

	err = r.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, r.State().Iteration, "run stops at the failing boundary")
}

func TestSurfaceBoundDisabledKeepsPlainRelaxation(t *testing.T) {
	_, opts := sphereOptions(4, 5)
	opts.SurfaceBound = false
	opts.Jitter = 0.25
	set := seedSphere(t, 4, opts)

	r, err := New(set, opts)
	require.NoError(t, err)
	require.NoError(t, r.Run())

	// Distances are still cached every iteration even without bounding.
	for i := 0; i < set.Len(); i++ {
		assert.InDelta(t, opts.Field.Distance(set.Pos[i]), set.Dist[i], 1e-9)
	}
}

func TestRelaxationImprovesSpacing(t *testing.T) {
	if testing.Short() {
		t.Skip("relaxation convergence test")
	}

	f, opts := sphereOptions(5, 200)
	opts.Jitter = 0.25
	opts.RecordEvery = 50
	set := seedSphere(t, 5, opts)

	var spreads []float64
	opts.Recorder = RecorderFunc(func(_ int, _ *particle.Set, q telemetry.Quality) error {
		spreads = append(spreads, q.SpacingStd)
		return nil
	})

	r, err := New(set, opts)
	require.NoError(t, err)
	require.NoError(t, r.Run())
	require.GreaterOrEqual(t, len(spreads), 3)

	first, last := spreads[0], spreads[len(spreads)-1]
	assert.Less(t, last, first, "nearest-neighbor spread must shrink: %v", spreads)

	// Surface conformity of the finished layout: no near-surface
	// particle further than half a spacing from its target shell.
	maxErr := 0.0
	for i := 0; i < set.Len(); i++ {
		if math.Abs(set.Dist[i]) <= opts.Refinement.Band {
			if e := math.Abs(math.Abs(f.Distance(set.Pos[i])) - opts.TargetOffset); e > maxErr {
				maxErr = e
			}
		}
	}
	assert.Less(t, maxErr, 0.5*opts.Refinement.Spacing)
}

// slackGradient under-corrects the level-set projection so the bounding
// stage leaves a measurable residual error.
type slackGradient struct{ field.Sphere }

func (f slackGradient) Gradient(p r3.Vec) r3.Vec {
	return r3.Scale(0.5, f.Sphere.Gradient(p))
}

func TestSurfaceErrorSurvivesChunkedWorker(t *testing.T) {
	_, opts := sphereOptions(5, 0)
	opts.Field = slackGradient{Sphere: field.Sphere{Center: r3.Vec{}, Radius: 5}}

	set := particle.NewSet(2)
	set.Pos[0] = r3.Vec{X: 5} // on the surface; bounding under-corrects here
	set.Pos[1] = r3.Vec{X: 1} // deep inside, outside the band
	for i := range set.Pos {
		set.Vol[i] = 1
		set.H[i] = 1.3
		set.Ratio[i] = 1
		set.Dist[i] = opts.Field.Distance(set.Pos[i])
	}

	r, err := New(set, opts)
	require.NoError(t, err)
	copy(r.next, set.Pos)

	// Same worker slot draining two chunks of one phase.
	r.boundRange(0, 1, 0)
	first := r.surfErr[0]
	require.Greater(t, first, 0.0, "under-corrected projection must leave an error")

	r.boundRange(1, 2, 0)
	assert.Equal(t, first, r.surfErr[0], "a later chunk must not erase an earlier maximum")
}

func TestClampedPositionsRefreshDistance(t *testing.T) {
	f, opts := sphereOptions(5, 0)
	opts.SurfaceBound = false
	opts.Box = r3.Box{Min: r3.Vec{X: -4, Y: -4, Z: -4}, Max: r3.Vec{X: 4, Y: 4, Z: 4}}

	set := particle.NewSet(1)
	set.Vol[0] = 1
	set.H[0] = 1.3
	set.Ratio[0] = 1

	r, err := New(set, opts)
	require.NoError(t, err)
	r.next[0] = r3.Vec{X: 6} // beyond the box, clamps to X=4

	r.boundRange(0, 1, 0)

	assert.Equal(t, r3.Vec{X: 4}, set.Pos[0])
	assert.InDelta(t, f.Distance(set.Pos[0]), set.Dist[0], 1e-12,
		"cached distance follows the clamped position")
}

func TestCoincidentNeighborsDoNotPoisonSpacing(t *testing.T) {
	_, opts := sphereOptions(4, 0)

	set := particle.NewSet(2) // both at the origin
	for i := range set.Pos {
		set.Vol[i] = 1
		set.H[i] = 1.3
		set.Ratio[i] = 1
		set.Dist[i] = opts.Field.Distance(set.Pos[i])
	}

	r, err := New(set, opts)
	require.NoError(t, err)
	r.buildIndex()
	r.buildNeighborsRange(0, set.Len(), 0)

	for i := 0; i < set.Len(); i++ {
		require.Equal(t, 1, r.counts[i], "a coincident pair still forms a relation")
		assert.Equal(t, 0.0, r.nearest[i], "zero separation carries no spacing data")
	}

	q := telemetry.ComputeQuality(0, set, r.counts, r.nearest, 0, 1, 2)
	assert.False(t, math.IsInf(q.SpacingMean, 1))
	assert.False(t, math.IsInf(q.SpacingStd, 1))
}
