// Package config provides configuration loading and access for the
// relaxation driver.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all relaxation configuration parameters. Length-like
// resolution values are expressed in multiples of the base spacing so a
// config stays valid when the spacing changes; absolute values live in
// Derived.
type Config struct {
	Domain     DomainConfig     `yaml:"domain"`
	Particle   ParticleConfig   `yaml:"particle"`
	Kernel     KernelConfig     `yaml:"kernel"`
	Resolution ResolutionConfig `yaml:"resolution"`
	Relaxation RelaxationConfig `yaml:"relaxation"`
	Field      FieldConfig      `yaml:"field"`
	Output     OutputConfig     `yaml:"output"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// DomainConfig holds the domain bounding box.
type DomainConfig struct {
	Min [3]float64 `yaml:"min"`
	Max [3]float64 `yaml:"max"`
}

// ParticleConfig holds particle seeding parameters.
type ParticleConfig struct {
	Spacing         float64 `yaml:"spacing"`          // base spacing dp0
	SmoothingFactor float64 `yaml:"smoothing_factor"` // h at ratio 1 = factor * spacing
	Jitter          float64 `yaml:"jitter"`           // initial jitter as a fraction of local spacing (0 = off)
}

// KernelConfig selects the smoothing kernel.
type KernelConfig struct {
	Name string `yaml:"name"` // wendland_c2 or cubic_spline
}

// ResolutionConfig holds the adaptive smoothing-length controller
// parameters, in multiples of the base spacing where noted.
type ResolutionConfig struct {
	MinRatio          float64 `yaml:"min_ratio"`          // finest smoothing-length ratio, held near the surface
	MaxRatio          float64 `yaml:"max_ratio"`          // coarsest ratio, reached far from the surface
	BandWidth         float64 `yaml:"band_width"`         // near-surface band, multiples of spacing
	TargetOffset      float64 `yaml:"target_offset"`      // bounded particles sit this far inside, multiples of spacing
	CoarseSpread      float64 `yaml:"coarse_spread"`      // ratio reaches min at band + spread, multiples of spacing
	BoundingTolerance float64 `yaml:"bounding_tolerance"` // surface bounding tolerance, multiples of spacing
}

// RelaxationConfig holds loop control parameters.
type RelaxationConfig struct {
	Iterations   int  `yaml:"iterations"`    // fixed iteration budget
	RecordEvery  int  `yaml:"record_every"`  // recorder cadence (0 = final state only)
	SurfaceBound bool `yaml:"surface_bound"` // enable the level-set correction stage
	Workers      int  `yaml:"workers"`       // worker goroutines (0 = GOMAXPROCS)
}

// FieldConfig describes the geometry and its voxelization.
type FieldConfig struct {
	SampleSpacing float64       `yaml:"sample_spacing"` // grid sample spacing, multiples of particle spacing (0 = query shapes directly)
	Shapes        []ShapeConfig `yaml:"shapes"`
}

// ShapeConfig describes one primitive of the composed geometry.
type ShapeConfig struct {
	Type   string     `yaml:"type"` // sphere, box or cylinder
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
	Height float64    `yaml:"height"`
	Min    [3]float64 `yaml:"min"`
	Max    [3]float64 `yaml:"max"`
}

// OutputConfig holds recorder output settings.
type OutputConfig struct {
	Dir string `yaml:"dir"` // output directory (empty = disabled)
}

// DerivedConfig holds absolute values computed from the loaded config.
type DerivedConfig struct {
	Box            r3.Box  // domain bounding box
	BaseH          float64 // smoothing length at ratio 1
	Band           float64 // near-surface band width
	TargetOffset   float64 // surface bounding target offset
	CoarseDistance float64 // distance where the ratio reaches MinRatio
	BoundingTol    float64 // surface bounding tolerance
	FieldSpacing   float64 // voxel grid sample spacing (0 = no voxelization)
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// validate rejects configurations the relaxation loop cannot run with.
// Everything checked here is fatal before the loop starts; nothing is
// checked again inside it.
func (c *Config) validate() error {
	if c.Particle.Spacing <= 0 {
		return fmt.Errorf("config: particle.spacing must be positive, got %v", c.Particle.Spacing)
	}
	if c.Particle.SmoothingFactor <= 0 {
		return fmt.Errorf("config: particle.smoothing_factor must be positive, got %v", c.Particle.SmoothingFactor)
	}
	if c.Resolution.MinRatio <= 0 || c.Resolution.MaxRatio < c.Resolution.MinRatio {
		return fmt.Errorf("config: resolution ratios must satisfy 0 < min_ratio <= max_ratio, got [%v, %v]",
			c.Resolution.MinRatio, c.Resolution.MaxRatio)
	}
	if c.Relaxation.Iterations < 0 {
		return fmt.Errorf("config: relaxation.iterations must not be negative, got %d", c.Relaxation.Iterations)
	}
	for i := 0; i < 3; i++ {
		if c.Domain.Min[i] >= c.Domain.Max[i] {
			return fmt.Errorf("config: degenerate domain bounds on axis %d", i)
		}
	}
	return nil
}

// computeDerived calculates absolute values from the loaded config.
func (c *Config) computeDerived() {
	dp := c.Particle.Spacing
	c.Derived.Box = r3.Box{
		Min: r3.Vec{X: c.Domain.Min[0], Y: c.Domain.Min[1], Z: c.Domain.Min[2]},
		Max: r3.Vec{X: c.Domain.Max[0], Y: c.Domain.Max[1], Z: c.Domain.Max[2]},
	}
	c.Derived.BaseH = c.Particle.SmoothingFactor * dp
	c.Derived.Band = c.Resolution.BandWidth * dp
	c.Derived.TargetOffset = c.Resolution.TargetOffset * dp
	c.Derived.CoarseDistance = c.Derived.Band + c.Resolution.CoarseSpread*dp
	c.Derived.BoundingTol = c.Resolution.BoundingTolerance * dp
	c.Derived.FieldSpacing = c.Field.SampleSpacing * dp
}

// WriteYAML saves the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
