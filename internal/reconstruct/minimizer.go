package reconstruct

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/san-kum/tgtreco/internal/monitoring"
)

// MinimizerOptions configure the Nelder-Mead search over |p| (MeV/c).
type MinimizerOptions struct {
	PInit        float64
	Tolerance    float64
	MaxIteration int

	// PMin and PMax bound the search; trials outside are penalized.
	PMin float64
	PMax float64

	// RecordSteps appends every function evaluation to the result trace.
	RecordSteps bool
}

func DefaultMinimizerOptions() MinimizerOptions {
	return MinimizerOptions{
		PInit:        1000,
		Tolerance:    1e-3,
		MaxIteration: 100,
		PMin:         50,
		PMax:         5000,
	}
}

func (o MinimizerOptions) Validate() error {
	switch {
	case !(o.PMin > 0) || !(o.PMax > o.PMin):
		return fmt.Errorf("%w: minimizer range [%g, %g]", ErrInvalidOptions, o.PMin, o.PMax)
	case !(o.PInit >= o.PMin && o.PInit <= o.PMax):
		return fmt.Errorf("%w: initial momentum %g outside [%g, %g]", ErrInvalidOptions, o.PInit, o.PMin, o.PMax)
	case o.MaxIteration < 1:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidOptions, o.MaxIteration)
	case !(o.Tolerance >= 0):
		return fmt.Errorf("%w: minimizer tolerance %g", ErrInvalidOptions, o.Tolerance)
	}
	return nil
}

// outOfRangePenalty is added to the distance of any trial outside
// [PMin, PMax], scaled by how far outside it lies.
const outOfRangePenalty = 1e6

// Minimizer runs gonum's Nelder-Mead simplex on the distance metric. The best
// in-range evaluation is tracked independently of the simplex, so the answer
// does not depend on the method's final status or on step recording.
type Minimizer struct {
	Options MinimizerOptions
}

func NewMinimizer(o MinimizerOptions) *Minimizer { return &Minimizer{Options: o} }

func (m *Minimizer) Name() string { return "minimizer" }

func (m *Minimizer) Solve(ctx context.Context, pr *Problem) (Solution, error) {
	var sol Solution
	o := m.Options
	if err := o.Validate(); err != nil {
		return sol, err
	}
	if err := ctx.Err(); err != nil {
		return sol, err
	}

	bestP, bestD := 0.0, math.Inf(1)
	objective := func(x []float64) float64 {
		p := x[0]
		var d float64
		switch {
		case math.IsNaN(p):
			d = math.Inf(1)
		case p < o.PMin:
			d = outOfRangePenalty * (1 + o.PMin - p)
		case p > o.PMax:
			d = outOfRangePenalty * (1 + p - o.PMax)
		case ctx.Err() != nil:
			d = math.Inf(1)
		default:
			d = pr.Distance(p)
			if d < bestD {
				bestP, bestD = p, d
			}
		}
		if o.RecordSteps {
			sol.Trace = append(sol.Trace, Step{P: p, Launch: pr.Launch(p), Loss: d})
		}
		return d
	}

	settings := &optimize.Settings{
		MajorIterations: o.MaxIteration,
		FuncEvaluations: 4 * o.MaxIteration,
		Converger: &optimize.FunctionConverge{
			Absolute:   o.Tolerance,
			Iterations: 10,
		},
	}
	method := &optimize.NelderMead{SimplexSize: math.Max(10, 0.05*o.PInit)}

	res, err := optimize.Minimize(optimize.Problem{Func: objective}, []float64{o.PInit}, settings, method)
	if res != nil {
		sol.Iterations = res.Stats.MajorIterations
		sol.Converged = res.Status == optimize.FunctionConvergence || res.Status == optimize.MethodConverge
	}
	if err != nil && ctx.Err() == nil {
		monitoring.Logf("reconstruct: minimizer stopped early: %v", err)
	}

	sol.Launch = launchIfFinite(pr, bestP, bestD)
	return sol, ctx.Err()
}
