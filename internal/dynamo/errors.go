package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrUnknownStepper indicates a stepper name with no registered constructor.
	ErrUnknownStepper = errors.New("dynamo: unknown stepper")
)

// SimulationError wraps an error with the step at which it was detected and
// the last good state before it.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%v at step %d (t=%.4g ns)", e.Wrapped, e.Step, e.Time)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
