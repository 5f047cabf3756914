package trajectory

import (
	"fmt"

	"github.com/san-kum/tgtreco/internal/integrators"
)

const (
	DefaultStepSize    = 1.0    // mm
	DefaultMaxTime     = 100.0  // ns
	DefaultMaxDistance = 5000.0 // mm of path
	DefaultMinMomentum = 1.0    // MeV/c
	DefaultIntegrator  = "rk4"
)

// Config bounds a single trajectory. The step is fixed; trading accuracy for
// speed is done by choosing StepSize, never internally.
type Config struct {
	StepSize    float64
	MaxTime     float64
	MaxDistance float64
	MinMomentum float64
	Integrator  string
}

func DefaultConfig() Config {
	return Config{
		StepSize:    DefaultStepSize,
		MaxTime:     DefaultMaxTime,
		MaxDistance: DefaultMaxDistance,
		MinMomentum: DefaultMinMomentum,
		Integrator:  DefaultIntegrator,
	}
}

func (c Config) Validate() error {
	if !(c.StepSize > 0) {
		return fmt.Errorf("%w: step size must be positive, got %g", ErrInvalidConfig, c.StepSize)
	}
	if !(c.MaxTime > 0) {
		return fmt.Errorf("%w: max time must be positive, got %g", ErrInvalidConfig, c.MaxTime)
	}
	if !(c.MaxDistance > 0) {
		return fmt.Errorf("%w: max distance must be positive, got %g", ErrInvalidConfig, c.MaxDistance)
	}
	if c.MinMomentum < 0 {
		return fmt.Errorf("%w: min momentum must not be negative, got %g", ErrInvalidConfig, c.MinMomentum)
	}
	if _, err := integrators.New(c.Integrator); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
