package reconstruct

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Weighting schemes combining the near-point and target residuals.
const (
	// WeightChi2 sums each residual divided by its own resolution, squared.
	WeightChi2 = "chi2"
	// WeightQuadrature adds the residuals in quadrature and normalizes by
	// the combined resolution.
	WeightQuadrature = "quadrature"
)

// ThreePointOptions configure the joint fit of all launch components.
type ThreePointOptions struct {
	PInit float64

	// Initial seeds the fit with a forward momentum at the far track point.
	// Zero means PInit along the track.
	Initial r3.Vec

	LearningRate float64
	Tolerance    float64
	MaxIteration int

	// PDCSigma and TargetSigma are the position resolutions in mm of the
	// near track point and of the target.
	PDCSigma    float64
	TargetSigma float64
	Weighting   string
}

func DefaultThreePointOptions() ThreePointOptions {
	return ThreePointOptions{
		PInit:        1000,
		LearningRate: 1,
		Tolerance:    1e-3,
		MaxIteration: 200,
		PDCSigma:     0.5,
		TargetSigma:  5,
		Weighting:    WeightChi2,
	}
}

func (o ThreePointOptions) Validate() error {
	switch {
	case !(o.PInit > 0) && r3.Norm(o.Initial) == 0:
		return fmt.Errorf("%w: three-point needs a positive initial momentum", ErrInvalidOptions)
	case !(o.LearningRate > 0):
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidOptions, o.LearningRate)
	case o.MaxIteration < 1:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidOptions, o.MaxIteration)
	case !(o.PDCSigma > 0) || !(o.TargetSigma > 0):
		return fmt.Errorf("%w: resolutions must be positive, got %g and %g", ErrInvalidOptions, o.PDCSigma, o.TargetSigma)
	case o.Weighting != WeightChi2 && o.Weighting != WeightQuadrature:
		return fmt.Errorf("%w: unknown weighting %q", ErrInvalidOptions, o.Weighting)
	case !(o.Tolerance >= 0):
		return fmt.Errorf("%w: three-point tolerance %g", ErrInvalidOptions, o.Tolerance)
	}
	return nil
}

// backtrackLimit bounds the step halvings tried in one three-point iteration.
const backtrackLimit = 12

// fallbackFraction is the length of a steepest-descent step relative to |p|,
// before the learning rate is applied.
const fallbackFraction = 0.01

// ThreePoint fits the launch vector so that the backward trajectory passes
// through both the near track point and the target.
//
// The fit runs in the track frame: the launch magnitude and two transverse
// components, one in the bending plane and one across it. Each iteration
// takes a diagonal Newton step built from the central differences of the
// loss, and backtracks until the loss decreases.
type ThreePoint struct {
	Options ThreePointOptions
}

func NewThreePoint(o ThreePointOptions) *ThreePoint { return &ThreePoint{Options: o} }

func (t *ThreePoint) Name() string { return "threepoint" }

func (t *ThreePoint) Solve(ctx context.Context, pr *Problem) (Solution, error) {
	var sol Solution
	o := t.Options
	if err := o.Validate(); err != nil {
		return sol, err
	}

	fr := newTrackFrame(pr.Dir)
	loss := func(u []float64) float64 {
		launch, ok := fr.launch(u)
		if !ok {
			return math.Inf(1)
		}
		near, target := pr.Residuals(launch)
		return o.combine(near, target)
	}

	u := fr.seed(o)
	f := loss(u)
	sol.Trace = append(sol.Trace, t.step(fr, u, f))

	cache := make(map[[3]float64]float64, 6)
	grad := make([]float64, 3)
	for it := 0; it < o.MaxIteration; it++ {
		if err := ctx.Err(); err != nil {
			sol.Launch, _ = fr.launch(u)
			return sol, err
		}
		sol.Iterations = it + 1

		h := math.Max(0.5, 1e-3*math.Abs(u[0]))
		clear(cache)
		probe := func(x []float64) float64 {
			v := loss(x)
			cache[key(x)] = v
			return v
		}
		lookup := func(x []float64) float64 {
			if v, ok := cache[key(x)]; ok {
				return v
			}
			return loss(x)
		}
		fd.Gradient(grad, probe, u, &fd.Settings{Formula: fd.Central, Step: h})

		step := make([]float64, 3)
		newton := true
		for i := range u {
			curv := (lookup(shifted(u, i, h)) + lookup(shifted(u, i, -h)) - 2*f) / (h * h)
			if !(curv > 0) || math.IsInf(curv, 0) {
				newton = false
				break
			}
			step[i] = -o.LearningRate * grad[i] / curv
		}
		if !newton {
			var ok bool
			if step, ok = fallbackStep(grad, u, o.LearningRate); !ok {
				sol.Converged = floats.Norm(grad, 2) == 0
				break
			}
		}

		accepted := false
		var gain, length float64
		for k := 0; k <= backtrackLimit; k++ {
			cand := []float64{u[0] + step[0], u[1] + step[1], u[2] + step[2]}
			if fc := loss(cand); fc < f {
				gain, f, u = f-fc, fc, cand
				length = math.Sqrt(step[0]*step[0] + step[1]*step[1] + step[2]*step[2])
				accepted = true
				break
			}
			for i := range step {
				step[i] /= 2
			}
		}
		if !accepted {
			sol.Converged = true
			break
		}
		sol.Trace = append(sol.Trace, t.step(fr, u, f))

		if length < o.Tolerance || gain < o.Tolerance*o.Tolerance {
			sol.Converged = true
			break
		}
	}

	sol.Launch, _ = fr.launch(u)
	return sol, nil
}

func (t *ThreePoint) step(fr trackFrame, u []float64, f float64) Step {
	launch, _ := fr.launch(u)
	return Step{P: r3.Norm(launch), Launch: launch, Loss: f}
}

func (o ThreePointOptions) combine(near, target float64) float64 {
	if math.IsInf(near, 1) || math.IsInf(target, 1) {
		return math.Inf(1)
	}
	if o.Weighting == WeightQuadrature {
		return (near*near + target*target) / (o.PDCSigma*o.PDCSigma + o.TargetSigma*o.TargetSigma)
	}
	rn, rt := near/o.PDCSigma, target/o.TargetSigma
	return rn*rn + rt*rt
}

// trackFrame spans launch space with the track direction and two
// perpendicular axes: bend lies in the horizontal plane, cross is the
// remaining axis.
type trackFrame struct {
	dir, bend, cross r3.Vec
}

func newTrackFrame(dir r3.Vec) trackFrame {
	bend := r3.Cross(dir, r3.Vec{Y: 1})
	if r3.Norm(bend) < 1e-9 {
		bend = r3.Cross(dir, r3.Vec{X: 1})
	}
	bend = r3.Unit(bend)
	return trackFrame{dir: dir, bend: bend, cross: r3.Unit(r3.Cross(bend, dir))}
}

// launch maps u = (|p|, p_bend, p_cross) onto a launch vector of magnitude
// u[0] pointing along dir + (u[1]·bend + u[2]·cross)/u[0].
func (fr trackFrame) launch(u []float64) (r3.Vec, bool) {
	if !(u[0] > 0) {
		return r3.Vec{}, false
	}
	d := r3.Add(fr.dir, r3.Scale(1/u[0], r3.Add(r3.Scale(u[1], fr.bend), r3.Scale(u[2], fr.cross))))
	return r3.Scale(u[0], r3.Unit(d)), true
}

// seed converts the configured starting momentum into frame coordinates.
// A forward momentum is reversed for backward launch; one pointing away
// from the track falls back to the track direction.
func (fr trackFrame) seed(o ThreePointOptions) []float64 {
	v := r3.Scale(-1, o.Initial)
	p := r3.Norm(v)
	if p == 0 {
		return []float64{o.PInit, 0, 0}
	}
	w := r3.Unit(v)
	along := r3.Dot(w, fr.dir)
	if along <= 1e-6 {
		return []float64{p, 0, 0}
	}
	t := r3.Sub(r3.Scale(1/along, w), fr.dir)
	return []float64{p, p * r3.Dot(t, fr.bend), p * r3.Dot(t, fr.cross)}
}

// fallbackStep is the steepest-descent step used where the loss is not
// locally convex: length fallbackFraction·lr·|u0| against the gradient. It
// reports false for a zero or non-finite gradient.
func fallbackStep(grad, u []float64, lr float64) ([]float64, bool) {
	gn := floats.Norm(grad, 2)
	if !(gn > 0) || math.IsInf(gn, 0) {
		return nil, false
	}
	step := make([]float64, len(grad))
	floats.ScaleTo(step, -fallbackFraction*lr*math.Abs(u[0])/gn, grad)
	return step, true
}

func shifted(u []float64, i int, h float64) []float64 {
	s := []float64{u[0], u[1], u[2]}
	s[i] += h
	return s
}

func key(u []float64) [3]float64 { return [3]float64{u[0], u[1], u[2]} }
