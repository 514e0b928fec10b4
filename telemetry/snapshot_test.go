package telemetry

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/bodyfit/particle"
)

func TestSaveLoadParticlesRoundTrip(t *testing.T) {
	s := particle.NewSet(3)
	s.Pos[0] = r3.Vec{X: 1.5, Y: -2, Z: 0.25}
	s.Pos[1] = r3.Vec{X: -4}
	s.Pos[2] = r3.Vec{Z: 9.75}
	s.Vol = []float64{1, 8, 1}
	s.H = []float64{1.3, 2.6, 1.3}
	s.Ratio = []float64{1, 2, 1}
	s.Dist = []float64{-0.5, -7, -0.4}

	path := filepath.Join(t.TempDir(), "particles.csv")
	if err := SaveParticles(s, path); err != nil {
		t.Fatalf("SaveParticles: %v", err)
	}

	got, err := LoadParticles(path)
	if err != nil {
		t.Fatalf("LoadParticles: %v", err)
	}

	if got.Len() != s.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), s.Len())
	}
	for i := 0; i < s.Len(); i++ {
		if got.Pos[i] != s.Pos[i] {
			t.Errorf("Pos[%d] = %+v, want %+v", i, got.Pos[i], s.Pos[i])
		}
		if got.Vol[i] != s.Vol[i] || got.H[i] != s.H[i] || got.Ratio[i] != s.Ratio[i] || got.Dist[i] != s.Dist[i] {
			t.Errorf("scalar fields of particle %d differ", i)
		}
	}
}

func TestLoadParticlesMissingFile(t *testing.T) {
	_, err := LoadParticles(filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("expected error for a missing snapshot")
	}
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	if om != nil {
		t.Fatal("empty dir must disable output")
	}

	// A nil manager swallows all writes.
	if err := om.WriteQuality(Quality{}); err != nil {
		t.Errorf("nil WriteQuality: %v", err)
	}
	if err := om.WriteSnapshot(particle.NewSet(1), 0); err != nil {
		t.Errorf("nil WriteSnapshot: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestOutputManagerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	defer om.Close()

	if err := om.WriteQuality(Quality{Iteration: 0, Particles: 10}); err != nil {
		t.Fatalf("WriteQuality: %v", err)
	}
	if err := om.WriteQuality(Quality{Iteration: 100, Particles: 10}); err != nil {
		t.Fatalf("WriteQuality (append): %v", err)
	}

	s := particle.NewSet(2)
	if err := om.WriteSnapshot(s, 100); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	got, err := LoadParticles(filepath.Join(dir, "particles_000100.csv"))
	if err != nil {
		t.Fatalf("reading written snapshot: %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("snapshot Len() = %d, want 2", got.Len())
	}
}
