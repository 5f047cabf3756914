package trajectory

import (
	"fmt"
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/dynamo"
	"github.com/san-kum/tgtreco/internal/integrators"
	"github.com/san-kum/tgtreco/internal/physics"
)

// neutralCharge is the |q| below which a particle is tracked as neutral.
const neutralCharge = 1e-12

// Point is one sample of an integrated path.
type Point struct {
	Position r3.Vec  // mm
	Momentum r3.Vec  // MeV/c
	Field    r3.Vec  // T, lab frame; filled by Calculate only
	Time     float64 // ns since the start
	Path     float64 // mm of path since the start
}

// Trajectory is a time-ordered sequence of samples. The first sample is the
// start state.
type Trajectory []Point

// Final returns the last sample; a Trajectory is never empty when returned
// without error.
func (t Trajectory) Final() Point {
	if len(t) == 0 {
		return Point{}
	}
	return t[len(t)-1]
}

// Length is the path length of the trajectory in mm.
func (t Trajectory) Length() float64 {
	return t.Final().Path
}

// Tracker integrates trajectories through a fixed field. It holds no
// per-call state and is safe for concurrent use.
type Tracker struct {
	field physics.FieldSource
	cfg   Config
}

func New(field physics.FieldSource, cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{field: field, cfg: cfg}, nil
}

func (tr *Tracker) Config() Config { return tr.cfg }

// Calculate integrates from start with initial momentum p4 and returns every
// sample. The energy is recomputed from the momentum and mass; p4's energy
// component is not used.
func (tr *Tracker) Calculate(start r3.Vec, p4 fmom.PxPyPzE, charge, mass float64) (Trajectory, error) {
	guess := int(math.Min(tr.cfg.MaxDistance/tr.cfg.StepSize, 1<<16)) + 1
	traj := make(Trajectory, 0, guess)

	err := tr.Trace(start, p4, charge, mass, func(pt Point) bool {
		if tr.field != nil && math.Abs(charge) >= neutralCharge {
			pt.Field = tr.field.FieldAt(pt.Position)
		}
		traj = append(traj, pt)
		return true
	})
	return traj, err
}

// Trace integrates like Calculate but hands each sample to visit instead of
// storing it. Tracing stops when a bound is reached or visit returns false.
// A sample that would exceed MaxTime or MaxDistance, or drop to MinMomentum,
// is discarded, so the last visited sample is always within bounds.
func (tr *Tracker) Trace(start r3.Vec, p4 fmom.PxPyPzE, charge, mass float64, visit func(Point) bool) error {
	p := r3.Vec{X: p4.Px(), Y: p4.Py(), Z: p4.Pz()}
	x := dynamo.NewPhaseState(start, p)
	if !x.IsValid() || math.IsNaN(charge) || !(mass >= 0) {
		return fmt.Errorf("%w: position %v momentum %v mass %g", ErrInvalidStart, start, p, mass)
	}

	if !visit(Point{Position: start, Momentum: p}) {
		return nil
	}

	cfg := tr.cfg
	beta := physics.Beta(p, mass)
	if r3.Norm(p) <= cfg.MinMomentum || beta == 0 {
		return nil
	}
	dt := cfg.StepSize / (beta * physics.SpeedOfLight)

	neutral := math.Abs(charge) < neutralCharge || tr.field == nil
	var (
		stepper dynamo.Stepper
		sys     dynamo.System
		drift   r3.Vec
	)
	if neutral {
		drift = r3.Scale(dt, physics.Velocity(p, mass))
	} else {
		s, err := integrators.New(cfg.Integrator)
		if err != nil {
			return err
		}
		stepper, sys = s, physics.NewLorentz(tr.field, charge, mass)
	}

	maxSteps := int(math.Ceil(cfg.MaxTime/dt)) + 1
	t, path := 0.0, 0.0
	next := make(dynamo.State, len(x))
	for i := 1; i <= maxSteps; i++ {
		if neutral {
			next[0], next[1], next[2] = x[0]+drift.X, x[1]+drift.Y, x[2]+drift.Z
			next[3], next[4], next[5] = p.X, p.Y, p.Z
		} else {
			stepper.Step(sys, next, x, t, dt)
		}

		if !next.IsValid() {
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}

		tNext := t + dt
		pathNext := path + r3.Norm(r3.Sub(next.Position(), x.Position()))
		if tNext > cfg.MaxTime || pathNext > cfg.MaxDistance || r3.Norm(next.Momentum()) <= cfg.MinMomentum {
			return nil
		}

		x, next = next, x
		t, path = tNext, pathNext
		if !visit(Point{Position: x.Position(), Momentum: x.Momentum(), Time: t, Path: path}) {
			return nil
		}
	}
	return nil
}
