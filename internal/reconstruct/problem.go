package reconstruct

import (
	"context"
	"math"
	"sync/atomic"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/metrics"
	"github.com/san-kum/tgtreco/internal/physics"
	"github.com/san-kum/tgtreco/internal/trajectory"
)

// Problem is one prepared reconstruction: the launch geometry derived from a
// track and the metric that scores trial momenta against the target.
// Strategies only see a Problem, never the raw track.
type Problem struct {
	Track  Track
	Target r3.Vec

	// Far is the track point farther from the target; backward propagation
	// starts there. Near is the other point and Dir the unit vector from
	// Far towards Near.
	Far  r3.Vec
	Near r3.Vec
	Dir  r3.Vec

	Particle physics.Particle

	tracker *trajectory.Tracker
	ctx     context.Context
	workers int
	save    bool
	evals   atomic.Int64
}

func newProblem(ctx context.Context, tr *trajectory.Tracker, opts Options, track Track, target r3.Vec) (*Problem, error) {
	if track.Length() < geometryEpsilon {
		return nil, ErrDegenerateTrack
	}
	dStart := r3.Norm(r3.Sub(track.Start, target))
	dEnd := r3.Norm(r3.Sub(track.End, target))
	if dStart < geometryEpsilon || dEnd < geometryEpsilon {
		return nil, ErrTargetOnTrack
	}

	far, near := track.End, track.Start
	if dStart > dEnd {
		far, near = track.Start, track.End
	}

	return &Problem{
		Track:    track,
		Target:   target,
		Far:      far,
		Near:     near,
		Dir:      r3.Unit(r3.Sub(near, far)),
		Particle: opts.Particle,
		tracker:  tr,
		ctx:      ctx,
		workers:  opts.Workers,
		save:     opts.SaveTrajectories,
	}, nil
}

// Launch is the backward launch momentum of magnitude p along the track.
func (pr *Problem) Launch(p float64) r3.Vec {
	return r3.Scale(p, pr.Dir)
}

// Distance is the closest approach, in mm, of the backward trajectory with
// momentum magnitude p to the target. Failed integrations score +Inf.
func (pr *Problem) Distance(p float64) float64 {
	if !(p > 0) {
		return math.Inf(1)
	}
	return pr.DistanceVec(pr.Launch(p))
}

// DistanceVec is Distance for an arbitrary launch vector.
func (pr *Problem) DistanceVec(launch r3.Vec) float64 {
	ca := metrics.NewClosestApproach(pr.Target, false)
	if err := pr.trace(launch, ca); err != nil {
		return math.Inf(1)
	}
	return ca.Value()
}

// Residuals returns the interpolated closest approach of the backward
// trajectory to the near track point and to the target.
func (pr *Problem) Residuals(launch r3.Vec) (near, target float64) {
	toNear := metrics.NewClosestApproach(pr.Near, true)
	toTarget := metrics.NewClosestApproach(pr.Target, true)
	if err := pr.trace(launch, toNear, toTarget); err != nil {
		return math.Inf(1), math.Inf(1)
	}
	return toNear.Value(), toTarget.Value()
}

// Trajectory integrates the full backward trajectory for launch.
func (pr *Problem) Trajectory(launch r3.Vec) (trajectory.Trajectory, error) {
	return pr.tracker.Calculate(pr.Far, pr.fourMomentum(launch), -pr.Particle.Charge, pr.Particle.Mass)
}

// Evaluations is the number of trajectories integrated for the metric so far.
func (pr *Problem) Evaluations() int { return int(pr.evals.Load()) }

// Err reports cancellation of the reconstruction context.
func (pr *Problem) Err() error { return pr.ctx.Err() }

func (pr *Problem) Workers() int { return pr.workers }

// SaveTrajectories reports whether trial trajectories should be kept.
func (pr *Problem) SaveTrajectories() bool { return pr.save }

func (pr *Problem) trace(launch r3.Vec, ms ...metrics.Metric) error {
	pr.evals.Add(1)
	if !(r3.Norm(launch) > 0) {
		return ErrInvalidOptions
	}
	return pr.tracker.Trace(pr.Far, pr.fourMomentum(launch), -pr.Particle.Charge, pr.Particle.Mass, func(pt trajectory.Point) bool {
		for _, m := range ms {
			m.Observe(pt)
		}
		return true
	})
}

func (pr *Problem) fourMomentum(p r3.Vec) fmom.PxPyPzE {
	return fmom.NewPxPyPzE(p.X, p.Y, p.Z, physics.Energy(p, pr.Particle.Mass))
}
