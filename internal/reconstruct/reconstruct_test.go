package reconstruct

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/monitoring"
	"github.com/san-kum/tgtreco/internal/physics"
)

func newDipoleReconstructor(t *testing.T, opts Options) (*Reconstructor, dipole) {
	t.Helper()
	monitoring.SetLogger(nil)
	fix, err := uniformDipole()
	require.NoError(t, err)
	rec, err := New(fix.tracker, opts)
	require.NoError(t, err)
	return rec, fix
}

func TestTargetOnTrack(t *testing.T) {
	rec, fix := newDipoleReconstructor(t, DefaultOptions())

	res, err := rec.Reconstruct(context.Background(), NewGrid(DefaultGridOptions()), Track{Start: fix.target, End: fix.track.End}, fix.target)
	require.ErrorIs(t, err, ErrTargetOnTrack)
	assert.False(t, res.Success)
	assert.True(t, math.IsInf(res.FinalDistance, 1))
	assert.Zero(t, res.PMag())
	assert.ErrorIs(t, res.Err, ErrTargetOnTrack)
}

func TestFarPointIsLaunchPoint(t *testing.T) {
	rec, fix := newDipoleReconstructor(t, DefaultOptions())

	for _, track := range []Track{fix.track, {Start: fix.track.End, End: fix.track.Start}} {
		pr, err := newProblem(context.Background(), rec.tracker, rec.opts, track, fix.target)
		require.NoError(t, err)
		assert.Equal(t, fix.track.End, pr.Far)
		assert.Equal(t, fix.track.Start, pr.Near)
		assert.InDelta(t, 1, r3.Norm(pr.Dir), 1e-12)
		assert.Less(t, r3.Dot(pr.Dir, r3.Vec{Z: 1}), 0.0, "backward launch should head upstream")
	}
}

func TestMinimizerStepRecordingDoesNotChangeResult(t *testing.T) {
	rec, fix := newDipoleReconstructor(t, DefaultOptions())

	quiet := DefaultMinimizerOptions()
	traced := quiet
	traced.RecordSteps = true

	a, err := rec.Reconstruct(context.Background(), NewMinimizer(quiet), fix.track, fix.target)
	require.NoError(t, err)
	b, err := rec.Reconstruct(context.Background(), NewMinimizer(traced), fix.track, fix.target)
	require.NoError(t, err)

	assert.Empty(t, a.Trace)
	assert.NotEmpty(t, b.Trace)
	assert.Equal(t, a.P, b.P)
	assert.Equal(t, a.FinalDistance, b.FinalDistance)
	assert.Equal(t, a.Momentum, b.Momentum)
	assert.Equal(t, a.Evaluations, b.Evaluations)
	assert.GreaterOrEqual(t, len(b.Trace), b.Evaluations)
}

func TestGridIsIndependentOfWorkers(t *testing.T) {
	o := DefaultGridOptions()
	o.Samples = 9
	o.MaxRounds = 2

	var results []*Result
	for _, workers := range []int{1, 3} {
		opts := DefaultOptions()
		opts.Workers = workers
		rec, fix := newDipoleReconstructor(t, opts)
		res, err := rec.Reconstruct(context.Background(), NewGrid(o), fix.track, fix.target)
		require.NoError(t, err)
		results = append(results, res)
	}

	assert.Equal(t, results[0].P, results[1].P)
	assert.Equal(t, results[0].FinalDistance, results[1].FinalDistance)
	require.Len(t, results[1].Trials, len(results[0].Trials))
	for i := range results[0].Trials {
		assert.Equal(t, results[0].Trials[i].Distance, results[1].Trials[i].Distance, "trial %d", i)
	}
}

func TestGridKeepsTrialTrajectories(t *testing.T) {
	opts := DefaultOptions()
	opts.SaveTrajectories = true
	rec, fix := newDipoleReconstructor(t, opts)

	o := DefaultGridOptions()
	o.Samples = 5
	o.MaxRounds = 1
	res, err := rec.Reconstruct(context.Background(), NewGrid(o), fix.track, fix.target)
	require.NoError(t, err)

	require.Len(t, res.Trials, 5)
	for i, trial := range res.Trials {
		require.NotEmpty(t, trial.Trajectory, "trial %d", i)
		assert.Equal(t, fix.track.End, trial.Trajectory[0].Position)
		assert.InDelta(t, trial.P, r3.Norm(trial.Trajectory[0].Momentum), 1e-9)
	}
	assert.NotEmpty(t, res.Trajectory)
	assert.Equal(t, 1, res.Iterations)
}

func TestScanHasMinimumNearTruth(t *testing.T) {
	rec, fix := newDipoleReconstructor(t, DefaultOptions())

	trials, err := rec.Scan(context.Background(), fix.track, fix.target, 200, 3000, 57)
	require.NoError(t, err)
	require.Len(t, trials, 57)
	assert.Equal(t, 200.0, trials[0].P)
	assert.Equal(t, 3000.0, trials[56].P)

	best := 0
	for i, tr := range trials {
		if tr.Distance < trials[best].Distance {
			best = i
		}
	}
	spacing := trials[1].P - trials[0].P
	assert.InDelta(t, r3.Norm(fix.truth), trials[best].P, spacing)

	_, err = rec.Scan(context.Background(), fix.track, fix.target, 300, 100, 10)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestCancelledContext(t *testing.T) {
	rec, fix := newDipoleReconstructor(t, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, method := range Methods() {
		s, err := NewStrategy(method, DefaultMethodOptions())
		require.NoError(t, err)
		res, err := rec.Reconstruct(ctx, s, fix.track, fix.target)
		assert.ErrorIs(t, err, context.Canceled, method)
		assert.False(t, res.Success, method)
	}
}

func TestGradientStaysInRange(t *testing.T) {
	rec, fix := newDipoleReconstructor(t, DefaultOptions())

	o := DefaultGradientOptions()
	o.PInit = 20000
	o.MaxIteration = 5
	res, err := rec.Reconstruct(context.Background(), NewGradient(o), fix.track, fix.target)
	require.NoError(t, err)
	for _, st := range res.Trace {
		assert.GreaterOrEqual(t, st.P, o.PMin)
		assert.LessOrEqual(t, st.P, o.PMax)
	}
	assert.LessOrEqual(t, res.Iterations, o.MaxIteration)
}

func TestThreePointSeedFromMeasuredMomentum(t *testing.T) {
	rec, fix := newDipoleReconstructor(t, DefaultOptions())

	o := DefaultThreePointOptions()
	o.Initial = r3.Scale(-980, mustProblem(t, rec, fix).Dir)
	res, err := rec.Reconstruct(context.Background(), NewThreePoint(o), fix.track, fix.target)
	require.NoError(t, err)
	assert.True(t, res.Success, "final distance %.3f", res.FinalDistance)
	assert.Less(t, relativeError(res.MomentumVec(), fix.truth), 0.03)
	assert.InDelta(t, 980, res.Trace[0].P, 1e-9)
}

func mustProblem(t *testing.T, rec *Reconstructor, fix dipole) *Problem {
	t.Helper()
	pr, err := newProblem(context.Background(), rec.tracker, rec.opts, fix.track, fix.target)
	require.NoError(t, err)
	return pr
}

func TestTrackFrame(t *testing.T) {
	dir := r3.Unit(r3.Vec{X: 0.3, Z: -1})
	fr := newTrackFrame(dir)

	assert.InDelta(t, 0, r3.Dot(fr.dir, fr.bend), 1e-12)
	assert.InDelta(t, 0, r3.Dot(fr.dir, fr.cross), 1e-12)
	assert.InDelta(t, 0, fr.bend.Y, 1e-12)
	assert.InDelta(t, 1, math.Abs(fr.cross.Y), 1e-12)

	launch, ok := fr.launch([]float64{750, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(launch, r3.Scale(750, dir))), 1e-9)

	_, ok = fr.launch([]float64{-1, 0, 0})
	assert.False(t, ok)

	o := DefaultThreePointOptions()
	want := r3.Vec{X: 120, Y: 30, Z: -900}
	o.Initial = r3.Scale(-1, want)
	got, ok := fr.launch(fr.seed(o))
	require.True(t, ok)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(got, want)), 1e-9)

	vertical := newTrackFrame(r3.Vec{Y: 1})
	assert.InDelta(t, 1, r3.Norm(vertical.bend), 1e-12)
}

func TestWeighting(t *testing.T) {
	o := DefaultThreePointOptions()
	assert.InDelta(t, 4+1, o.combine(1, 5), 1e-12)

	o.Weighting = WeightQuadrature
	assert.InDelta(t, (1+25)/(0.25+25), o.combine(1, 5), 1e-12)
	assert.True(t, math.IsInf(o.combine(math.Inf(1), 0), 1))
}

func TestFallbackStep(t *testing.T) {
	grad := []float64{3, 0, -4}
	u := []float64{-800, 12, 5}

	step, ok := fallbackStep(grad, u, 2)
	require.True(t, ok)
	assert.InDelta(t, fallbackFraction*2*800, math.Sqrt(step[0]*step[0]+step[1]*step[1]+step[2]*step[2]), 1e-9)
	assert.InDelta(t, -16*0.6, step[0], 1e-9)
	assert.Zero(t, step[1])
	assert.InDelta(t, 16*0.8, step[2], 1e-9)
	assert.Equal(t, []float64{3, 0, -4}, grad, "gradient must not be modified")

	_, ok = fallbackStep([]float64{0, 0, 0}, u, 1)
	assert.False(t, ok)
	_, ok = fallbackStep([]float64{math.Inf(1), 0, 0}, u, 1)
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	if diff := cmp.Diff([]string{"gd", "grid", "minimizer", "threepoint"}, Methods()); diff != "" {
		t.Errorf("Methods() mismatch (-want +got):\n%s", diff)
	}

	s, err := NewStrategy("MINUIT", DefaultMethodOptions())
	require.NoError(t, err)
	assert.Equal(t, "minimizer", s.Name())

	_, err = NewStrategy("annealing", DefaultMethodOptions())
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestOptionValidation(t *testing.T) {
	bad := []error{
		Options{Particle: physics.Proton(), Acceptance: 0}.Validate(),
		Options{Particle: physics.Particle{Mass: -1}, Acceptance: 1}.Validate(),
		Options{Particle: physics.Proton(), Acceptance: 1, Workers: -2}.Validate(),
		GridOptions{PMin: 100, PMax: 50, Samples: 25, MaxRounds: 1}.Validate(),
		GridOptions{PMin: 50, PMax: 100, Samples: 2, MaxRounds: 1}.Validate(),
		GradientOptions{PMin: 50, PMax: 100, LearningRate: 0, MaxIteration: 1}.Validate(),
		ThreePointOptions{PInit: 100, LearningRate: 1, MaxIteration: 1, PDCSigma: 0, TargetSigma: 1, Weighting: WeightChi2}.Validate(),
		ThreePointOptions{PInit: 100, LearningRate: 1, MaxIteration: 1, PDCSigma: 1, TargetSigma: 1, Weighting: "l1"}.Validate(),
		MinimizerOptions{PInit: 10, PMin: 50, PMax: 100, MaxIteration: 1}.Validate(),
	}
	for i, err := range bad {
		assert.ErrorIs(t, err, ErrInvalidOptions, "case %d", i)
	}

	_, err := New(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidOptions)

	rec, fix := newDipoleReconstructor(t, DefaultOptions())
	o := DefaultGridOptions()
	o.Samples = 1
	res, err := rec.Reconstruct(context.Background(), NewGrid(o), fix.track, fix.target)
	assert.True(t, errors.Is(err, ErrInvalidOptions))
	assert.False(t, res.Success)
}
