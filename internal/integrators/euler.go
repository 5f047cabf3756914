package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/tgtreco/internal/dynamo"
)

// Euler is the explicit first-order stepper, kept as a cheap cross-check
// against RK4. It does not conserve |p| in a magnetic field.
type Euler struct {
	slope dynamo.State
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, dst, x dynamo.State, t, dt float64) {
	if len(e.slope) != len(x) {
		e.slope = make(dynamo.State, len(x))
	}
	sys.DeriveInto(e.slope, x, t)
	floats.AddScaledTo(dst, x, dt, e.slope)
}
