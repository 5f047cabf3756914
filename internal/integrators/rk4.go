package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/tgtreco/internal/dynamo"
)

// RK4 is the classical fourth-order Runge-Kutta stepper. Stage slopes live in
// buffers owned by the stepper, so a step allocates nothing once the buffers
// match the state length.
type RK4 struct {
	stages [4]dynamo.State
	probe  dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) resize(n int) {
	if len(r.probe) == n {
		return
	}
	for i := range r.stages {
		r.stages[i] = make(dynamo.State, n)
	}
	r.probe = make(dynamo.State, n)
}

// stageOffsets are the fractions of dt at which stages 2 to 4 sample the
// system, each from the slope of the stage before it.
var stageOffsets = [3]float64{0.5, 0.5, 1}

func (r *RK4) Step(sys dynamo.System, dst, x dynamo.State, t, dt float64) {
	r.resize(len(x))
	k := r.stages

	sys.DeriveInto(k[0], x, t)
	for s, c := range stageOffsets {
		floats.AddScaledTo(r.probe, x, c*dt, k[s])
		sys.DeriveInto(k[s+1], r.probe, t+c*dt)
	}

	// dst = x + dt/6 (k1 + 2 k2 + 2 k3 + k4)
	copy(dst, x)
	floats.AddScaled(dst, dt/6, k[0])
	floats.AddScaled(dst, dt/3, k[1])
	floats.AddScaled(dst, dt/3, k[2])
	floats.AddScaled(dst, dt/6, k[3])
}
