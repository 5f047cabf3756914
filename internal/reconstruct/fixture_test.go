package reconstruct

import (
	"errors"
	"sync"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/field"
	"github.com/san-kum/tgtreco/internal/physics"
	"github.com/san-kum/tgtreco/internal/trajectory"
)

// dipole is a proton emitted at a target inside a uniform 1 T vertical field
// and measured at two points downstream of the magnet.
type dipole struct {
	tracker *trajectory.Tracker
	track   Track
	target  r3.Vec
	truth   r3.Vec
}

var (
	dipoleOnce sync.Once
	dipoleFix  dipole
	dipoleErr  error
)

func uniformDipole() (dipole, error) {
	dipoleOnce.Do(func() { dipoleFix, dipoleErr = buildDipole() })
	return dipoleFix, dipoleErr
}

func buildDipole() (dipole, error) {
	l := field.Lattice{N: [3]int{31, 13, 31}, Min: [3]float64{0, -300, 0}, Step: [3]float64{50, 50, 50}}
	m, err := field.Build(l, func(x, y, z float64) r3.Vec { return r3.Vec{Y: 1} })
	if err != nil {
		return dipole{}, err
	}

	cfg := trajectory.DefaultConfig()
	cfg.StepSize = 2
	tr, err := trajectory.New(m, cfg)
	if err != nil {
		return dipole{}, err
	}

	target := r3.Vec{Z: -500}
	truth := r3.Vec{X: 200, Z: 1000}
	proton := physics.Proton()
	p4 := fmom.NewPxPyPzE(truth.X, truth.Y, truth.Z, physics.Energy(truth, proton.Mass))
	traj, err := tr.Calculate(target, p4, proton.Charge, proton.Mass)
	if err != nil {
		return dipole{}, err
	}

	var near, far r3.Vec
	haveNear, haveFar := false, false
	for _, pt := range traj {
		if !haveNear && pt.Position.Z >= 2000 {
			near, haveNear = pt.Position, true
		}
		if pt.Position.Z >= 2500 {
			far, haveFar = pt.Position, true
			break
		}
	}
	if !haveNear || !haveFar {
		return dipole{}, errors.New("simulated track never reached the detector")
	}

	return dipole{
		tracker: tr,
		track:   Track{Start: near, End: far},
		target:  target,
		truth:   truth,
	}, nil
}

func relativeError(got, want r3.Vec) float64 {
	return r3.Norm(r3.Sub(got, want)) / r3.Norm(want)
}
