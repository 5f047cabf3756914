package config

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/tgtreco/internal/field"
	"github.com/san-kum/tgtreco/internal/physics"
	"github.com/san-kum/tgtreco/internal/reconstruct"
	"github.com/san-kum/tgtreco/internal/trajectory"
)

const (
	DefaultRotation = 30.0 // degrees, the installed magnet angle
	DefaultMethod   = "grid"
	DefaultParticle = "proton"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Field          FieldConfig          `yaml:"field"`
	Tracking       TrackingConfig       `yaml:"tracking"`
	Particle       string               `yaml:"particle"`
	Target         Vec                  `yaml:"target"`
	Reconstruction ReconstructionConfig `yaml:"reconstruction"`
}

type FieldConfig struct {
	Table       string  `yaml:"table"`
	Cache       string  `yaml:"cache"`
	RotationDeg float64 `yaml:"rotation_deg"`
	HeaderSkip  int     `yaml:"header_skip"`
	Scale       float64 `yaml:"scale"`
}

type TrackingConfig struct {
	StepSize    float64 `yaml:"step_size"`
	MaxTime     float64 `yaml:"max_time"`
	MaxDistance float64 `yaml:"max_distance"`
	MinMomentum float64 `yaml:"min_momentum"`
	Integrator  string  `yaml:"integrator"`
}

type ReconstructionConfig struct {
	Method           string  `yaml:"method"`
	Acceptance       float64 `yaml:"acceptance"`
	SaveTrajectories bool    `yaml:"save_trajectories"`
	Workers          int     `yaml:"workers"`

	Grid       GridConfig       `yaml:"grid"`
	Gradient   GradientConfig   `yaml:"gd"`
	ThreePoint ThreePointConfig `yaml:"threepoint"`
	Minimizer  MinimizerConfig  `yaml:"minimizer"`
}

type GridConfig struct {
	PMin      float64 `yaml:"p_min"`
	PMax      float64 `yaml:"p_max"`
	Samples   int     `yaml:"samples"`
	MaxRounds int     `yaml:"max_rounds"`
	Tolerance float64 `yaml:"tolerance"`
}

type GradientConfig struct {
	PInit        float64 `yaml:"p_init"`
	LearningRate float64 `yaml:"learning_rate"`
	Tolerance    float64 `yaml:"tolerance"`
	MaxIteration int     `yaml:"max_iterations"`
	PMin         float64 `yaml:"p_min"`
	PMax         float64 `yaml:"p_max"`
}

type ThreePointConfig struct {
	PInit        float64 `yaml:"p_init"`
	LearningRate float64 `yaml:"learning_rate"`
	Tolerance    float64 `yaml:"tolerance"`
	MaxIteration int     `yaml:"max_iterations"`
	PDCSigma     float64 `yaml:"pdc_sigma"`
	TargetSigma  float64 `yaml:"target_sigma"`
	Weighting    string  `yaml:"weighting"`
}

type MinimizerConfig struct {
	PInit        float64 `yaml:"p_init"`
	Tolerance    float64 `yaml:"tolerance"`
	MaxIteration int     `yaml:"max_iterations"`
	PMin         float64 `yaml:"p_min"`
	PMax         float64 `yaml:"p_max"`
	RecordSteps  bool    `yaml:"record_steps"`
}

// Vec is a point in mm, written in yaml as [x, y, z].
type Vec [3]float64

func (v Vec) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func DefaultConfig() *Config {
	tc := trajectory.DefaultConfig()
	g := reconstruct.DefaultGridOptions()
	gd := reconstruct.DefaultGradientOptions()
	tp := reconstruct.DefaultThreePointOptions()
	mn := reconstruct.DefaultMinimizerOptions()

	return &Config{
		Field: FieldConfig{
			RotationDeg: DefaultRotation,
			HeaderSkip:  field.DefaultHeaderSkip,
			Scale:       1,
		},
		Tracking: TrackingConfig{
			StepSize:    tc.StepSize,
			MaxTime:     tc.MaxTime,
			MaxDistance: tc.MaxDistance,
			MinMomentum: tc.MinMomentum,
			Integrator:  tc.Integrator,
		},
		Particle: DefaultParticle,
		Reconstruction: ReconstructionConfig{
			Method:     DefaultMethod,
			Acceptance: reconstruct.DefaultAcceptance,
			Grid: GridConfig{
				PMin: g.PMin, PMax: g.PMax, Samples: g.Samples, MaxRounds: g.MaxRounds, Tolerance: g.Tolerance,
			},
			Gradient: GradientConfig{
				PInit: gd.PInit, LearningRate: gd.LearningRate, Tolerance: gd.Tolerance,
				MaxIteration: gd.MaxIteration, PMin: gd.PMin, PMax: gd.PMax,
			},
			ThreePoint: ThreePointConfig{
				PInit: tp.PInit, LearningRate: tp.LearningRate, Tolerance: tp.Tolerance, MaxIteration: tp.MaxIteration,
				PDCSigma: tp.PDCSigma, TargetSigma: tp.TargetSigma, Weighting: tp.Weighting,
			},
			Minimizer: MinimizerConfig{
				PInit: mn.PInit, Tolerance: mn.Tolerance, MaxIteration: mn.MaxIteration, PMin: mn.PMin, PMax: mn.PMax,
			},
		},
	}
}

// Load reads a yaml file over the defaults, so a file only needs the keys
// it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := c.ParticleSpec(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.TrackerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	opts, err := c.ReconstructOptions()
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := reconstruct.NewStrategy(c.Reconstruction.Method, c.MethodOptions()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Field.Scale == 0 {
		return fmt.Errorf("%w: field scale must not be zero", ErrInvalid)
	}
	return nil
}

func (c *Config) ParticleSpec() (physics.Particle, error) {
	return physics.LookupParticle(c.Particle)
}

func (c *Config) TrackerConfig() trajectory.Config {
	t := c.Tracking
	return trajectory.Config{
		StepSize:    t.StepSize,
		MaxTime:     t.MaxTime,
		MaxDistance: t.MaxDistance,
		MinMomentum: t.MinMomentum,
		Integrator:  t.Integrator,
	}
}

func (c *Config) ReconstructOptions() (reconstruct.Options, error) {
	p, err := c.ParticleSpec()
	if err != nil {
		return reconstruct.Options{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	r := c.Reconstruction
	return reconstruct.Options{
		Particle:         p,
		Acceptance:       r.Acceptance,
		SaveTrajectories: r.SaveTrajectories,
		Workers:          r.Workers,
	}, nil
}

func (c *Config) MethodOptions() reconstruct.MethodOptions {
	r := c.Reconstruction
	return reconstruct.MethodOptions{
		Grid: reconstruct.GridOptions{
			PMin: r.Grid.PMin, PMax: r.Grid.PMax, Samples: r.Grid.Samples,
			MaxRounds: r.Grid.MaxRounds, Tolerance: r.Grid.Tolerance,
		},
		Gradient: reconstruct.GradientOptions{
			PInit: r.Gradient.PInit, LearningRate: r.Gradient.LearningRate, Tolerance: r.Gradient.Tolerance,
			MaxIteration: r.Gradient.MaxIteration, PMin: r.Gradient.PMin, PMax: r.Gradient.PMax,
		},
		ThreePoint: reconstruct.ThreePointOptions{
			PInit: r.ThreePoint.PInit, LearningRate: r.ThreePoint.LearningRate, Tolerance: r.ThreePoint.Tolerance,
			MaxIteration: r.ThreePoint.MaxIteration, PDCSigma: r.ThreePoint.PDCSigma,
			TargetSigma: r.ThreePoint.TargetSigma, Weighting: r.ThreePoint.Weighting,
		},
		Minimizer: reconstruct.MinimizerOptions{
			PInit: r.Minimizer.PInit, Tolerance: r.Minimizer.Tolerance, MaxIteration: r.Minimizer.MaxIteration,
			PMin: r.Minimizer.PMin, PMax: r.Minimizer.PMax, RecordSteps: r.Minimizer.RecordSteps,
		},
	}
}

// Strategy builds the configured reconstruction method.
func (c *Config) Strategy() (reconstruct.Strategy, error) {
	return reconstruct.NewStrategy(c.Reconstruction.Method, c.MethodOptions())
}

// LoadField loads the configured map, preferring the cache when present. A
// table load writes the cache when a cache path is set.
func (c *Config) LoadField() (*field.Map, error) {
	m := field.New()
	switch {
	case c.Field.Cache != "" && fileExists(c.Field.Cache):
		if err := m.LoadSerialized(c.Field.Cache); err != nil {
			return nil, err
		}
	case c.Field.Table != "":
		if err := m.LoadTable(c.Field.Table, c.Field.HeaderSkip); err != nil {
			return nil, err
		}
		if c.Field.Cache != "" {
			if err := m.SaveSerialized(c.Field.Cache); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: no field table or cache configured", ErrInvalid)
	}
	m.SetRotationAngle(c.Field.RotationDeg)
	m.SetScale(c.Field.Scale)
	return m, nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
