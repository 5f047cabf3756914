package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// SpeedOfLight in mm/ns.
	SpeedOfLight = 299.792458

	// LorentzFactor converts q·(p×B)/E into dp/dt in MeV/c per ns for q in
	// units of e, p in MeV/c, B in tesla and E in MeV: 0.299792458·c.
	LorentzFactor = 0.299792458 * SpeedOfLight

	// GyroFactor is the 0.2998 in p[MeV/c] = 0.2998·q·B[T]·R[mm].
	GyroFactor = 0.299792458
)

// Energy returns the total energy of momentum p for mass m.
func Energy(p r3.Vec, m float64) float64 {
	return math.Sqrt(r3.Norm2(p) + m*m)
}

// Beta returns |v|/c.
func Beta(p r3.Vec, m float64) float64 {
	e := Energy(p, m)
	if e == 0 {
		return 0
	}
	return r3.Norm(p) / e
}

// Velocity returns v = p c / E in mm/ns.
func Velocity(p r3.Vec, m float64) r3.Vec {
	e := Energy(p, m)
	if e == 0 {
		return r3.Vec{}
	}
	return r3.Scale(SpeedOfLight/e, p)
}

// GyroRadius returns the radius in mm of a particle with transverse momentum
// pt (MeV/c) and charge q (e) in a uniform field b (T).
func GyroRadius(pt, q, b float64) float64 {
	return pt / (GyroFactor * math.Abs(q*b))
}
