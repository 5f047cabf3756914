package reconstruct

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// GridOptions configure the coarse-to-fine scan over |p| (MeV/c).
type GridOptions struct {
	PMin      float64
	PMax      float64
	Samples   int
	MaxRounds int

	// Tolerance stops refinement once the best distance changes by less
	// than this many mm between rounds.
	Tolerance float64
}

func DefaultGridOptions() GridOptions {
	return GridOptions{
		PMin:      50,
		PMax:      3000,
		Samples:   25,
		MaxRounds: 6,
		Tolerance: 0.01,
	}
}

func (o GridOptions) Validate() error {
	switch {
	case !(o.PMin > 0) || !(o.PMax > o.PMin):
		return fmt.Errorf("%w: grid range [%g, %g]", ErrInvalidOptions, o.PMin, o.PMax)
	case o.Samples < 3:
		return fmt.Errorf("%w: grid needs at least 3 samples, got %d", ErrInvalidOptions, o.Samples)
	case o.MaxRounds < 1:
		return fmt.Errorf("%w: grid needs at least one round, got %d", ErrInvalidOptions, o.MaxRounds)
	case !(o.Tolerance >= 0):
		return fmt.Errorf("%w: grid tolerance %g", ErrInvalidOptions, o.Tolerance)
	}
	return nil
}

// Grid samples |p| on an even grid, then narrows the range to two spacings
// either side of the best sample and samples again. Every sample of every
// round is kept as a trial.
type Grid struct {
	Options GridOptions
}

func NewGrid(o GridOptions) *Grid { return &Grid{Options: o} }

func (g *Grid) Name() string { return "grid" }

func (g *Grid) Solve(ctx context.Context, pr *Problem) (Solution, error) {
	var sol Solution
	o := g.Options
	if err := o.Validate(); err != nil {
		return sol, err
	}

	lo, hi := o.PMin, o.PMax
	bestP, bestD := 0.0, math.Inf(1)
	prev := math.Inf(1)
	ps := make([]float64, o.Samples)
	ds := make([]float64, o.Samples)

	for round := 0; round < o.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			sol.Launch = launchIfFinite(pr, bestP, bestD)
			return sol, err
		}

		floats.Span(ps, lo, hi)
		trials := evaluate(pr, ps)
		for i, t := range trials {
			ds[i] = t.Distance
		}
		sol.Trials = append(sol.Trials, trials...)

		if i := floats.MinIdx(ds); ds[i] < bestD {
			bestP, bestD = ps[i], ds[i]
		}
		sol.Iterations = round + 1
		sol.Trace = append(sol.Trace, Step{P: bestP, Launch: pr.Launch(bestP), Loss: bestD})

		if math.IsInf(bestD, 1) {
			break
		}
		if math.Abs(prev-bestD) < o.Tolerance {
			sol.Converged = true
			break
		}
		prev = bestD

		spacing := (hi - lo) / float64(o.Samples-1)
		lo = math.Max(o.PMin, bestP-2*spacing)
		hi = math.Min(o.PMax, bestP+2*spacing)
		if !(hi > lo) {
			sol.Converged = true
			break
		}
	}

	sol.Launch = launchIfFinite(pr, bestP, bestD)
	return sol, ctx.Err()
}

func launchIfFinite(pr *Problem, p, d float64) (launch r3.Vec) {
	if p > 0 && !math.IsInf(d, 1) {
		launch = pr.Launch(p)
	}
	return launch
}
