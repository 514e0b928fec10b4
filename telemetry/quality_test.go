package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/bodyfit/particle"
)

func TestComputeQuality(t *testing.T) {
	s := particle.NewSet(4)
	counts := []int{3, 0, 5, 4}
	nearest := []float64{1.0, 0, 1.2, 0.8}

	q := ComputeQuality(7, s, counts, nearest, 0.02, 10, 3)

	if q.Iteration != 7 {
		t.Errorf("Iteration = %d, want 7", q.Iteration)
	}
	if q.Particles != 4 {
		t.Errorf("Particles = %d, want 4", q.Particles)
	}
	if q.Isolated != 1 {
		t.Errorf("Isolated = %d, want 1", q.Isolated)
	}
	if q.NeighborMin != 0 || q.NeighborMax != 5 {
		t.Errorf("neighbor range = [%d, %d], want [0, 5]", q.NeighborMin, q.NeighborMax)
	}
	if math.Abs(q.NeighborMean-3.0) > 1e-9 {
		t.Errorf("NeighborMean = %v, want 3.0", q.NeighborMean)
	}
	// Mean spacing skips the isolated particle's zero entry.
	if math.Abs(q.SpacingMean-1.0) > 1e-9 {
		t.Errorf("SpacingMean = %v, want 1.0", q.SpacingMean)
	}
	if q.SpacingStd <= 0 {
		t.Errorf("SpacingStd = %v, want > 0", q.SpacingStd)
	}
	if q.CellsUsed != 10 || q.MaxCellLoad != 3 {
		t.Errorf("cell stats = (%d, %d), want (10, 3)", q.CellsUsed, q.MaxCellLoad)
	}
	if len(q.NeighborHist) == 0 {
		t.Fatal("NeighborHist not populated")
	}
	for _, b := range []int{0, 3, 4, 5} {
		if q.NeighborHist[b] != 1 {
			t.Errorf("NeighborHist[%d] = %d, want 1", b, q.NeighborHist[b])
		}
	}
}

func TestComputeQualityEmpty(t *testing.T) {
	s := particle.NewSet(0)
	q := ComputeQuality(0, s, nil, nil, 0, 0, 0)

	if q.Particles != 0 || q.Isolated != 0 || q.SpacingStd != 0 {
		t.Errorf("empty set quality not zeroed: %+v", q)
	}
}

func TestHistogram(t *testing.T) {
	tests := []struct {
		name    string
		counts  []int
		buckets int
		want    []int
	}{
		{"empty", nil, 3, []int{0, 0, 0}},
		{"spread", []int{0, 1, 1, 2}, 4, []int{1, 2, 1, 0}},
		{"overflow clamps to last bucket", []int{9, 50}, 4, []int{0, 0, 0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Histogram(tt.counts, tt.buckets)
			if len(got) != len(tt.want) {
				t.Fatalf("Histogram() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Histogram() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}
