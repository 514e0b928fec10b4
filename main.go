// Command bodyfit generates a body-fitted particle distribution from an
// implicit geometry and relaxes it until the spacing conforms to the
// surface and the local resolution target.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/bodyfit/config"
	"github.com/pthm-cable/bodyfit/field"
	"github.com/pthm-cable/bodyfit/kernel"
	"github.com/pthm-cable/bodyfit/particle"
	"github.com/pthm-cable/bodyfit/relax"
	"github.com/pthm-cable/bodyfit/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV snapshots and logs (overrides config)")
	restorePath := flag.String("restore", "", "Particle snapshot CSV to resume from instead of seeding")
	seed := flag.Int64("seed", 0, "RNG seed for the initial jitter")
	iterations := flag.Int("iterations", -1, "Iteration budget (overrides config when >= 0)")
	workers := flag.Int("workers", 0, "Worker goroutines (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *iterations >= 0 {
		cfg.Relaxation.Iterations = *iterations
	}
	if *workers > 0 {
		cfg.Relaxation.Workers = *workers
	}
	dir := cfg.Output.Dir
	if *outputDir != "" {
		dir = *outputDir
	}

	if err := run(cfg, dir, *restorePath, *seed); err != nil {
		slog.Error("relaxation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, dir, restorePath string, seed int64) error {
	f, err := buildField(cfg)
	if err != nil {
		return fmt.Errorf("building geometry: %w", err)
	}

	kern, err := kernel.New(cfg.Kernel.Name)
	if err != nil {
		return err
	}

	rf := particle.Refinement{
		Spacing:  cfg.Particle.Spacing,
		BaseH:    cfg.Derived.BaseH,
		MinRatio: cfg.Resolution.MinRatio,
		MaxRatio: cfg.Resolution.MaxRatio,
		Band:     cfg.Derived.Band,
		Coarse:   cfg.Derived.CoarseDistance,
	}

	var set *particle.Set
	if restorePath != "" {
		set, err = telemetry.LoadParticles(restorePath)
		if err != nil {
			return fmt.Errorf("restoring particles: %w", err)
		}
		slog.Info("restored particle snapshot", "path", restorePath, "particles", set.Len())
	} else {
		set, err = particle.Generate(f, cfg.Derived.Box, rf)
		if err != nil {
			return fmt.Errorf("seeding particles: %w", err)
		}
		slog.Info("seeded particles",
			"particles", set.Len(),
			"spacing", cfg.Particle.Spacing,
			"kernel", kern.Name(),
		)
	}

	out, err := telemetry.NewOutputManager(dir)
	if err != nil {
		return err
	}
	defer out.Close()

	if out != nil {
		if err := out.WriteConfig(cfg); err != nil {
			return err
		}
	}

	perf := telemetry.NewPerfCollector(cfg.Relaxation.RecordEvery)

	jitter := cfg.Particle.Jitter
	if restorePath != "" {
		jitter = 0 // a restored layout is already asymmetric
	}

	relaxer, err := relax.New(set, relax.Options{
		Field:        f,
		Kernel:       kern,
		Box:          cfg.Derived.Box,
		Refinement:   rf,
		Iterations:   cfg.Relaxation.Iterations,
		RecordEvery:  cfg.Relaxation.RecordEvery,
		SurfaceBound: cfg.Relaxation.SurfaceBound,
		TargetOffset: cfg.Derived.TargetOffset,
		BoundingTol:  cfg.Derived.BoundingTol,
		Jitter:       jitter,
		Workers:      cfg.Relaxation.Workers,
		Seed:         seed,
		Recorder:     &telemetry.CSVRecorder{Out: out, Perf: perf},
		Perf:         perf,
	})
	if err != nil {
		return err
	}

	if err := relaxer.Run(); err != nil {
		return err
	}

	st := relaxer.State()
	slog.Info("relaxation finished",
		"iterations", st.Iteration,
		"particles", set.Len(),
		"isolated", st.Quality.Isolated,
		"spacing_std", st.Quality.SpacingStd,
		"max_surface_error", st.Quality.MaxSurfErr,
	)
	perf.Stats().LogStats()

	if out != nil {
		slog.Info("output written", "dir", out.Dir())
	}
	return nil
}

// buildField composes the configured primitive shapes into one field
// and optionally voxelizes the composition onto a sampled grid, the way
// an image-derived geometry would arrive.
func buildField(cfg *config.Config) (field.Field, error) {
	if len(cfg.Field.Shapes) == 0 {
		return nil, fmt.Errorf("no shapes configured")
	}

	members := make([]field.Field, 0, len(cfg.Field.Shapes))
	for _, s := range cfg.Field.Shapes {
		switch s.Type {
		case "sphere":
			members = append(members, field.Sphere{Center: vec(s.Center), Radius: s.Radius})
		case "box":
			members = append(members, field.Box{Min: vec(s.Min), Max: vec(s.Max)})
		case "cylinder":
			members = append(members, field.Cylinder{Center: vec(s.Center), Radius: s.Radius, Height: s.Height})
		default:
			return nil, fmt.Errorf("unknown shape type %q", s.Type)
		}
	}
	composed := field.Union(members...)

	if cfg.Derived.FieldSpacing <= 0 {
		return composed, nil
	}
	return field.SampleField(composed, composed.Bounds(), cfg.Derived.FieldSpacing)
}

func vec(v [3]float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
