package reconstruct

import (
	"context"
	"fmt"
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/dynamo"
	"github.com/san-kum/tgtreco/internal/metrics"
	"github.com/san-kum/tgtreco/internal/monitoring"
	"github.com/san-kum/tgtreco/internal/physics"
	"github.com/san-kum/tgtreco/internal/trajectory"
)

// DefaultAcceptance is the closest-approach distance in mm under which a
// reconstruction counts as successful.
const DefaultAcceptance = 5.0

// Strategy searches for the launch momentum that best explains a track.
type Strategy interface {
	Name() string
	Solve(ctx context.Context, pr *Problem) (Solution, error)
}

// Solution is what a strategy hands back: the best launch vector and the
// diagnostics gathered on the way. A zero Launch means nothing usable was
// found.
type Solution struct {
	Launch     r3.Vec
	Trials     []Trial
	Trace      []Step
	Iterations int
	Converged  bool
}

type Options struct {
	Particle physics.Particle

	// Acceptance is the success threshold on the final distance, in mm.
	Acceptance float64

	// SaveTrajectories keeps the best trajectory and every grid trial
	// trajectory in the result.
	SaveTrajectories bool

	// Workers bounds parallel metric evaluation; zero means
	// dynamo.DefaultWorkers.
	Workers int
}

func DefaultOptions() Options {
	return Options{
		Particle:   physics.Proton(),
		Acceptance: DefaultAcceptance,
	}
}

func (o Options) Validate() error {
	if !(o.Particle.Mass >= 0) || math.IsNaN(o.Particle.Charge) {
		return fmt.Errorf("%w: particle %q mass %g charge %g", ErrInvalidOptions, o.Particle.Name, o.Particle.Mass, o.Particle.Charge)
	}
	if !(o.Acceptance > 0) {
		return fmt.Errorf("%w: acceptance must be positive, got %g", ErrInvalidOptions, o.Acceptance)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrInvalidOptions, o.Workers)
	}
	return nil
}

// Reconstructor runs strategies against one field through one tracker. It is
// safe for concurrent use.
type Reconstructor struct {
	tracker *trajectory.Tracker
	opts    Options
}

func New(tracker *trajectory.Tracker, opts Options) (*Reconstructor, error) {
	if tracker == nil {
		return nil, fmt.Errorf("%w: nil tracker", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Reconstructor{tracker: tracker, opts: opts}, nil
}

func (r *Reconstructor) Options() Options { return r.opts }

func (r *Reconstructor) Tracker() *trajectory.Tracker { return r.tracker }

// Reconstruct finds the momentum at target for track with strategy s.
//
// Invalid geometry yields a failed result together with the error. A
// strategy error (including cancellation) still returns the best momentum
// found so far, with Success false.
func (r *Reconstructor) Reconstruct(ctx context.Context, s Strategy, track Track, target r3.Vec) (*Result, error) {
	pr, err := newProblem(ctx, r.tracker, r.opts, track, target)
	if err != nil {
		monitoring.Logf("reconstruct: %s: %v", s.Name(), err)
		return failed(s.Name(), err), err
	}

	sol, err := s.Solve(ctx, pr)
	res := r.finalize(pr, s.Name(), sol)
	if err != nil {
		res.Success = false
		res.Err = err
		return res, err
	}
	return res, nil
}

func (r *Reconstructor) finalize(pr *Problem, method string, sol Solution) *Result {
	res := &Result{
		Method:        method,
		Trials:        sol.Trials,
		Trace:         sol.Trace,
		Iterations:    sol.Iterations,
		Converged:     sol.Converged,
		FinalDistance: math.Inf(1),
	}
	defer func() { res.Evaluations = pr.Evaluations() }()

	if !(r3.Norm(sol.Launch) > 0) {
		return res
	}
	res.Launch = sol.Launch
	res.P = r3.Norm(sol.Launch)

	traj, err := pr.Trajectory(sol.Launch)
	if err != nil || len(traj) == 0 {
		res.Err = err
		return res
	}

	ca := metrics.NewClosestApproach(pr.Target, false)
	for _, pt := range traj {
		ca.Observe(pt)
	}
	closest := ca.Closest()
	forward := r3.Scale(-1, closest.Momentum)
	res.Momentum = fmom.NewPxPyPzE(forward.X, forward.Y, forward.Z, physics.Energy(forward, pr.Particle.Mass))
	res.FinalDistance = ca.Value()
	res.Success = res.FinalDistance <= r.opts.Acceptance

	if r.opts.SaveTrajectories {
		res.Trajectory = traj
	}
	return res
}

// Scan evaluates the distance metric at n momenta evenly spaced over
// [pMin, pMax], in parallel. Trajectories are attached when the
// reconstructor saves them.
func (r *Reconstructor) Scan(ctx context.Context, track Track, target r3.Vec, pMin, pMax float64, n int) ([]Trial, error) {
	if n < 2 || !(pMin > 0) || !(pMax > pMin) {
		return nil, fmt.Errorf("%w: scan [%g, %g] with %d points", ErrInvalidOptions, pMin, pMax, n)
	}
	pr, err := newProblem(ctx, r.tracker, r.opts, track, target)
	if err != nil {
		return nil, err
	}

	ps := make([]float64, n)
	floats.Span(ps, pMin, pMax)
	trials := evaluate(pr, ps)
	if err := ctx.Err(); err != nil {
		return trials, err
	}
	return trials, nil
}

// evaluate scores every momentum in ps on the problem's worker pool.
// Evaluations already cancelled score +Inf.
func evaluate(pr *Problem, ps []float64) []Trial {
	trials := make([]Trial, len(ps))
	dynamo.ParallelFor(len(ps), 1, pr.Workers(), func(start, end int) {
		for i := start; i < end; i++ {
			t := Trial{P: ps[i], Distance: math.Inf(1)}
			if pr.Err() == nil {
				t.Distance = pr.Distance(ps[i])
				if pr.SaveTrajectories() {
					t.Trajectory, _ = pr.Trajectory(pr.Launch(ps[i]))
				}
			}
			trials[i] = t
		}
	})
	return trials
}
