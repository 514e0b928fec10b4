package telemetry

import (
	"github.com/pthm-cable/bodyfit/particle"
)

// CSVRecorder writes each recorded iteration through an OutputManager:
// a quality row, an optional perf row, and a numbered particle snapshot.
// It satisfies the relaxation loop's recorder interface.
type CSVRecorder struct {
	Out  *OutputManager
	Perf *PerfCollector // optional; perf rows are skipped when nil
}

// Record writes one snapshot. Safe on a nil output manager (everything
// is discarded), which keeps dry runs free of file handling.
func (r *CSVRecorder) Record(iteration int, s *particle.Set, q Quality) error {
	if err := r.Out.WriteQuality(q); err != nil {
		return err
	}
	if r.Perf != nil {
		if err := r.Out.WritePerf(r.Perf.Stats(), iteration); err != nil {
			return err
		}
	}
	return r.Out.WriteSnapshot(s, iteration)
}
