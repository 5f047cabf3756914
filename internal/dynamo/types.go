package dynamo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// State is a phase-space vector. Particle tracking uses the 6-D layout
// [x y z px py pz] (mm, MeV/c).
type State []float64

const PhaseDim = 6

// NewPhaseState packs a position and momentum into a 6-D state.
func NewPhaseState(pos, mom r3.Vec) State {
	return State{pos.X, pos.Y, pos.Z, mom.X, mom.Y, mom.Z}
}

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Position returns the spatial part of a 6-D phase state.
func (s State) Position() r3.Vec {
	return r3.Vec{X: s[0], Y: s[1], Z: s[2]}
}

// Momentum returns the momentum part of a 6-D phase state.
func (s State) Momentum() r3.Vec {
	return r3.Vec{X: s[3], Y: s[4], Z: s[5]}
}

// System is a first-order ODE dX/dt = f(X, t). DeriveInto writes f(x, t)
// into dst, which has the same length as x and never aliases it.
type System interface {
	DeriveInto(dst, x State, t float64)
	StateDim() int
}

// Stepper advances a System by one fixed step, writing the new state into
// dst. dst and x must not overlap. Implementations keep stage buffers and are
// not safe for concurrent use.
type Stepper interface {
	Step(sys System, dst, x State, t, dt float64)
}
