package physics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/dynamo"
)

// FieldSource answers lab-frame field queries in tesla.
type FieldSource interface {
	FieldAt(p r3.Vec) r3.Vec
}

// UniformField is the same field everywhere.
type UniformField r3.Vec

func (u UniformField) FieldAt(r3.Vec) r3.Vec { return r3.Vec(u) }

// Lorentz is the relativistic equation of motion of a point charge in a
// static magnetic field. |p| is a constant of the motion.
type Lorentz struct {
	Field  FieldSource
	Charge float64
	Mass   float64
}

func NewLorentz(field FieldSource, charge, mass float64) *Lorentz {
	return &Lorentz{Field: field, Charge: charge, Mass: mass}
}

func (l *Lorentz) StateDim() int { return dynamo.PhaseDim }

func (l *Lorentz) DeriveInto(dx, x dynamo.State, _ float64) {
	for i := range dx {
		dx[i] = 0
	}
	if len(x) < dynamo.PhaseDim || len(dx) < dynamo.PhaseDim {
		return
	}

	pos, p := x.Position(), x.Momentum()
	e := Energy(p, l.Mass)
	if e == 0 {
		return
	}

	v := r3.Scale(SpeedOfLight/e, p)
	dx[0], dx[1], dx[2] = v.X, v.Y, v.Z

	if l.Charge == 0 || l.Field == nil {
		return
	}
	f := r3.Scale(LorentzFactor*l.Charge/e, r3.Cross(p, l.Field.FieldAt(pos)))
	dx[3], dx[4], dx[5] = f.X, f.Y, f.Z
}

// Derive is DeriveInto with a freshly allocated result.
func (l *Lorentz) Derive(x dynamo.State, t float64) dynamo.State {
	dx := make(dynamo.State, dynamo.PhaseDim)
	l.DeriveInto(dx, x, t)
	return dx
}

// Energy returns the total energy of state x, in MeV.
func (l *Lorentz) Energy(x dynamo.State) float64 {
	return Energy(x.Momentum(), l.Mass)
}
