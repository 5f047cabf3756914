package reconstruct

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
)

// GradientOptions configure descent over |p| (MeV/c).
type GradientOptions struct {
	PInit        float64
	LearningRate float64
	Tolerance    float64
	MaxIteration int

	// PMin and PMax clamp every step.
	PMin float64
	PMax float64
}

func DefaultGradientOptions() GradientOptions {
	return GradientOptions{
		PInit:        1000,
		LearningRate: 50,
		Tolerance:    1e-3,
		MaxIteration: 100,
		PMin:         50,
		PMax:         5000,
	}
}

func (o GradientOptions) Validate() error {
	switch {
	case !(o.PMin > 0) || !(o.PMax > o.PMin):
		return fmt.Errorf("%w: gradient range [%g, %g]", ErrInvalidOptions, o.PMin, o.PMax)
	case !(o.LearningRate > 0):
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidOptions, o.LearningRate)
	case o.MaxIteration < 1:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidOptions, o.MaxIteration)
	case !(o.Tolerance >= 0):
		return fmt.Errorf("%w: gradient tolerance %g", ErrInvalidOptions, o.Tolerance)
	}
	return nil
}

// maxHalvings bounds the step-size backtracking in one descent iteration.
const maxHalvings = 10

// Gradient descends the distance metric along a central finite-difference
// derivative. A step that does not improve the distance is retried with the
// learning rate halved, and the halved rate is kept afterwards.
type Gradient struct {
	Options GradientOptions
}

func NewGradient(o GradientOptions) *Gradient { return &Gradient{Options: o} }

func (g *Gradient) Name() string { return "gd" }

func (g *Gradient) Solve(ctx context.Context, pr *Problem) (Solution, error) {
	var sol Solution
	o := g.Options
	if err := o.Validate(); err != nil {
		return sol, err
	}

	clamp := func(p float64) float64 { return math.Max(o.PMin, math.Min(o.PMax, p)) }
	p := clamp(o.PInit)
	loss := pr.Distance(p)
	lr := o.LearningRate
	sol.Trace = append(sol.Trace, Step{P: p, Launch: pr.Launch(p), Loss: loss})

	for it := 0; it < o.MaxIteration; it++ {
		if err := ctx.Err(); err != nil {
			sol.Launch = launchIfFinite(pr, p, loss)
			return sol, err
		}
		sol.Iterations = it + 1

		h := math.Max(10, 0.01*p)
		grad := fd.Derivative(pr.Distance, p, &fd.Settings{Formula: fd.Central, Step: h})
		if grad == 0 || math.IsNaN(grad) || math.IsInf(grad, 0) {
			sol.Converged = grad == 0
			break
		}

		accepted := false
		var step, gain float64
		for k := 0; k <= maxHalvings; k++ {
			next := clamp(p - lr*grad)
			if next == p {
				break
			}
			if l := pr.Distance(next); l < loss {
				step, gain = next-p, loss-l
				p, loss = next, l
				accepted = true
				break
			}
			lr /= 2
		}
		if !accepted {
			sol.Converged = true
			break
		}
		sol.Trace = append(sol.Trace, Step{P: p, Launch: pr.Launch(p), Loss: loss})

		if math.Abs(step) < o.Tolerance || gain < o.Tolerance {
			sol.Converged = true
			break
		}
	}

	sol.Launch = launchIfFinite(pr, p, loss)
	return sol, nil
}
