package relax

import (
	"github.com/pthm-cable/bodyfit/particle"
	"github.com/pthm-cable/bodyfit/telemetry"
)

// Recorder receives periodic snapshots of the relaxing particle set.
// The loop has no opinion on format or destination; implementations get
// a read-only view of the set and the quality diagnostics computed for
// that iteration. A recorder error aborts the run at the iteration
// boundary it occurred on.
type Recorder interface {
	Record(iteration int, s *particle.Set, q telemetry.Quality) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(iteration int, s *particle.Set, q telemetry.Quality) error

func (f RecorderFunc) Record(iteration int, s *particle.Set, q telemetry.Quality) error {
	return f(iteration, s, q)
}
