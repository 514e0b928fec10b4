package telemetry

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/bodyfit/particle"
)

// ParticleRecord is the CSV-serializable form of one particle's state.
type ParticleRecord struct {
	Index    int     `csv:"index"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Z        float64 `csv:"z"`
	Volume   float64 `csv:"volume"`
	H        float64 `csv:"h"`
	Ratio    float64 `csv:"smoothing_length_ratio"`
	Distance float64 `csv:"surface_distance"`
}

// ParticleRecords converts a set into CSV records.
func ParticleRecords(s *particle.Set) []ParticleRecord {
	records := make([]ParticleRecord, s.Len())
	for i := range records {
		records[i] = ParticleRecord{
			Index:    i,
			X:        s.Pos[i].X,
			Y:        s.Pos[i].Y,
			Z:        s.Pos[i].Z,
			Volume:   s.Vol[i],
			H:        s.H[i],
			Ratio:    s.Ratio[i],
			Distance: s.Dist[i],
		}
	}
	return records
}

// SaveParticles writes the set to a CSV snapshot file.
func SaveParticles(s *particle.Set, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.Marshal(ParticleRecords(s), f); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return nil
}

// LoadParticles reads a CSV snapshot back into a set, in record order.
// A missing or malformed file is fatal to the caller: a restart cannot
// proceed from a state it cannot read.
func LoadParticles(path string) (*particle.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	defer f.Close()

	var records []ParticleRecord
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("snapshot %s holds no particles", path)
	}

	s := particle.NewSet(len(records))
	for i, r := range records {
		s.Pos[i] = r3.Vec{X: r.X, Y: r.Y, Z: r.Z}
		s.Vol[i] = r.Volume
		s.H[i] = r.H
		s.Ratio[i] = r.Ratio
		s.Dist[i] = r.Distance
	}
	return s, nil
}
