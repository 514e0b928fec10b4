package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/bodyfit/config"
	"github.com/pthm-cable/bodyfit/particle"
)

// OutputManager handles structured relaxation output: a quality CSV log,
// a perf CSV log, and numbered particle snapshot files.
type OutputManager struct {
	dir         string
	qualityFile *os.File
	perfFile    *os.File

	// Track if headers have been written
	qualityHeaderWritten bool
	perfHeaderWritten    bool
}

// NewOutputManager creates an output manager rooted at dir.
// Returns nil if dir is empty (output disabled); a nil manager is safe
// to call and discards everything.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "quality.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating quality.csv: %w", err)
	}
	om.qualityFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.qualityFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the effective configuration as YAML next to the
// CSV output, so a run's parameters travel with its results.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteQuality appends a quality record to quality.csv.
func (om *OutputManager) WriteQuality(q Quality) error {
	if om == nil {
		return nil
	}

	records := []Quality{q}
	if !om.qualityHeaderWritten {
		if err := gocsv.Marshal(records, om.qualityFile); err != nil {
			return fmt.Errorf("writing quality: %w", err)
		}
		om.qualityHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.qualityFile); err != nil {
			return fmt.Errorf("writing quality: %w", err)
		}
	}
	return nil
}

// PerfCSV is the flat CSV form of PerfStats.
type PerfCSV struct {
	Iteration         int     `csv:"iteration"`
	AvgIterUS         int64   `csv:"avg_iter_us"`
	MinIterUS         int64   `csv:"min_iter_us"`
	MaxIterUS         int64   `csv:"max_iter_us"`
	IterPerSec        float64 `csv:"iter_per_sec"`
	BuildIndexPct     float64 `csv:"build_index_pct"`
	BuildNeighborsPct float64 `csv:"build_neighbors_pct"`
	DisplacementPct   float64 `csv:"displacement_pct"`
	SurfaceBoundPct   float64 `csv:"surface_bound_pct"`
	UpdateRatioPct    float64 `csv:"update_ratio_pct"`
}

// ToCSV converts PerfStats to its flat CSV form.
func (s PerfStats) ToCSV(iteration int) PerfCSV {
	return PerfCSV{
		Iteration:         iteration,
		AvgIterUS:         s.AvgIterDuration.Microseconds(),
		MinIterUS:         s.MinIterDuration.Microseconds(),
		MaxIterUS:         s.MaxIterDuration.Microseconds(),
		IterPerSec:        s.IterPerSecond,
		BuildIndexPct:     s.PhasePct[PhaseBuildIndex],
		BuildNeighborsPct: s.PhasePct[PhaseBuildNeighbors],
		DisplacementPct:   s.PhasePct[PhaseDisplacement],
		SurfaceBoundPct:   s.PhasePct[PhaseSurfaceBound],
		UpdateRatioPct:    s.PhasePct[PhaseUpdateRatio],
	}
}

// WritePerf appends a perf record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, iteration int) error {
	if om == nil {
		return nil
	}

	records := []PerfCSV{stats.ToCSV(iteration)}
	if !om.perfHeaderWritten {
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		om.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
	}
	return nil
}

// WriteSnapshot saves the particle set as particles_NNNNNN.csv.
func (om *OutputManager) WriteSnapshot(s *particle.Set, iteration int) error {
	if om == nil {
		return nil
	}
	path := filepath.Join(om.dir, fmt.Sprintf("particles_%06d.csv", iteration))
	return SaveParticles(s, path)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	if om.qualityFile != nil {
		if err := om.qualityFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if om.perfFile != nil {
		if err := om.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
