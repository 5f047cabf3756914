package reconstruct

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/trajectory"
)

// geometryEpsilon is the distance in mm below which two points are treated
// as coincident.
const geometryEpsilon = 1e-6

// Track is a straight segment measured by the tracking detector.
type Track struct {
	Start r3.Vec
	End   r3.Vec
}

func (t Track) Length() float64 {
	return r3.Norm(r3.Sub(t.End, t.Start))
}

// Trial is one evaluated momentum magnitude.
type Trial struct {
	P          float64
	Distance   float64
	Trajectory trajectory.Trajectory
}

// Step is one point visited by an iterative strategy.
type Step struct {
	P      float64
	Launch r3.Vec
	Loss   float64
}

// Result is the outcome of one reconstruction.
type Result struct {
	Method string

	// Momentum is the forward-going four-momentum at the point of closest
	// approach to the target.
	Momentum fmom.PxPyPzE

	// P is the best trial momentum magnitude and Launch the backward launch
	// momentum at the far track point.
	P      float64
	Launch r3.Vec

	// Trajectory is the best backward trajectory, kept only when
	// trajectories are saved.
	Trajectory trajectory.Trajectory

	Trials []Trial
	Trace  []Step

	FinalDistance float64
	Success       bool
	Converged     bool
	Iterations    int
	Evaluations   int

	Err error
}

// MomentumVec returns the three-momentum of the result.
func (r *Result) MomentumVec() r3.Vec {
	return r3.Vec{X: r.Momentum.Px(), Y: r.Momentum.Py(), Z: r.Momentum.Pz()}
}

// PMag is |p| of the result momentum.
func (r *Result) PMag() float64 {
	return r3.Norm(r.MomentumVec())
}

func failed(method string, err error) *Result {
	return &Result{
		Method:        method,
		FinalDistance: math.Inf(1),
		Err:           err,
	}
}
