package trajectory

import (
	"errors"
	"math"
	"sync"
	"testing"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/field"
	"github.com/san-kum/tgtreco/internal/physics"
)

func p4(px, py, pz, m float64) fmom.PxPyPzE {
	return fmom.NewPxPyPzE(px, py, pz, math.Sqrt(px*px+py*py+pz*pz+m*m))
}

func newTracker(t *testing.T, src physics.FieldSource, cfg Config) *Tracker {
	t.Helper()
	tr, err := New(src, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestUniformFieldCircle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDistance = 3000
	tr := newTracker(t, physics.UniformField{Y: 1}, cfg)

	traj, err := tr.Calculate(r3.Vec{}, p4(0, 0, 1000, physics.ProtonMass), 1, physics.ProtonMass)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	r := physics.GyroRadius(1000, 1, 1)
	center := r3.Vec{X: -r}
	for i, pt := range traj {
		d := r3.Norm(r3.Sub(pt.Position, center))
		if math.Abs(d-r)/r > 0.01 {
			t.Fatalf("sample %d off circle: got radius %.3f, expected %.3f", i, d, r)
		}
	}

	p0 := r3.Norm(traj[0].Momentum)
	p1 := r3.Norm(traj.Final().Momentum)
	if math.Abs(p1-p0)/p0 > 1e-3 {
		t.Errorf("momentum not conserved: got %.6f, expected %.6f", p1, p0)
	}
	if traj.Final().Momentum.X >= 0 {
		t.Errorf("proton should bend towards -x, got px=%.3f", traj.Final().Momentum.X)
	}
}

func TestNeutralStraightLine(t *testing.T) {
	tr := newTracker(t, physics.UniformField{Y: 2}, DefaultConfig())
	p := r3.Vec{X: 100, Y: 50, Z: 1000}

	traj, err := tr.Calculate(r3.Vec{X: 10, Y: -5, Z: -500}, p4(p.X, p.Y, p.Z, 939.565), 0, 939.565)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(traj) < 2 {
		t.Fatalf("expected a path, got %d samples", len(traj))
	}

	dir := r3.Unit(r3.Sub(traj.Final().Position, traj[0].Position))
	angle := math.Acos(math.Min(1, r3.Dot(dir, r3.Unit(p))))
	if angle >= 0.01 {
		t.Errorf("neutral direction off by %.6f rad", angle)
	}
	for _, pt := range traj {
		if pt.Momentum != p {
			t.Fatalf("neutral momentum changed: got %v, expected %v", pt.Momentum, p)
		}
		if pt.Field != (r3.Vec{}) {
			t.Fatalf("neutral track should not sample the field, got %v", pt.Field)
		}
	}
}

func TestNeutralTraceAllocationsIndependentOfLength(t *testing.T) {
	mom := p4(30, 0, 900, 939.565)
	allocs := func(maxDistance float64) float64 {
		cfg := DefaultConfig()
		cfg.MaxDistance = maxDistance
		tr := newTracker(t, physics.UniformField{Y: 1}, cfg)
		return testing.AllocsPerRun(20, func() {
			tr.Trace(r3.Vec{}, mom, 0, 939.565, func(Point) bool { return true })
		})
	}

	short, long := allocs(50), allocs(2000)
	if long != short {
		t.Errorf("allocations grow with path length: got %.0f for 2000 mm, expected %.0f as for 50 mm", long, short)
	}
}

func TestTrajectoryOrdering(t *testing.T) {
	tr := newTracker(t, physics.UniformField{Y: 1.2}, DefaultConfig())
	start := r3.Vec{Z: -500}

	traj, err := tr.Calculate(start, p4(200, 0, 1000, physics.ProtonMass), 1, physics.ProtonMass)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if traj[0].Position != start || traj[0].Time != 0 || traj[0].Path != 0 {
		t.Errorf("first sample should be the start state, got %+v", traj[0])
	}
	for i := 1; i < len(traj); i++ {
		if traj[i].Time <= traj[i-1].Time {
			t.Fatalf("sample %d not time ordered: %.6f after %.6f", i, traj[i].Time, traj[i-1].Time)
		}
		if traj[i].Path < traj[i-1].Path {
			t.Fatalf("sample %d path decreased", i)
		}
	}
}

func TestTermination(t *testing.T) {
	mom := p4(0, 0, 1000, physics.ProtonMass)

	tests := []struct {
		name  string
		mod   func(*Config)
		check func(t *testing.T, traj Trajectory, cfg Config)
	}{
		{
			name: "max distance",
			mod:  func(c *Config) { c.MaxDistance = 100 },
			check: func(t *testing.T, traj Trajectory, cfg Config) {
				if l := traj.Length(); l > cfg.MaxDistance || l < cfg.MaxDistance-2*cfg.StepSize {
					t.Errorf("path got %.4f, expected just under %.1f", l, cfg.MaxDistance)
				}
			},
		},
		{
			name: "max time",
			mod:  func(c *Config) { c.MaxTime = 1 },
			check: func(t *testing.T, traj Trajectory, cfg Config) {
				final := traj.Final().Time
				dt := traj[1].Time
				if final > cfg.MaxTime || final < cfg.MaxTime-dt {
					t.Errorf("time got %.4f, expected within one step of %.1f", final, cfg.MaxTime)
				}
			},
		},
		{
			name: "momentum floor",
			mod:  func(c *Config) { c.MinMomentum = 2000 },
			check: func(t *testing.T, traj Trajectory, cfg Config) {
				if len(traj) != 1 {
					t.Errorf("expected only the start sample, got %d", len(traj))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			tr := newTracker(t, physics.UniformField{Y: 1}, cfg)
			traj, err := tr.Calculate(r3.Vec{}, mom, 1, physics.ProtonMass)
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if len(traj) == 0 {
				t.Fatal("trajectory must never be empty")
			}
			tt.check(t, traj, cfg)
		})
	}
}

func TestTraceStopsOnVisitor(t *testing.T) {
	tr := newTracker(t, physics.UniformField{Y: 1}, DefaultConfig())
	calls := 0
	err := tr.Trace(r3.Vec{}, p4(0, 0, 500, physics.ProtonMass), 1, physics.ProtonMass, func(Point) bool {
		calls++
		return calls < 3
	})
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if calls != 3 {
		t.Errorf("visitor called %d times, expected 3", calls)
	}
}

func TestLeavingTheMapIsStraight(t *testing.T) {
	l := field.Lattice{N: [3]int{11, 5, 11}, Min: [3]float64{0, -100, 0}, Step: [3]float64{50, 50, 50}}
	m, err := field.Build(l, func(x, y, z float64) r3.Vec { return r3.Vec{Y: 1} })
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tr := newTracker(t, m, DefaultConfig())
	traj, err := tr.Calculate(r3.Vec{Z: -1000}, p4(0, 0, 800, physics.ProtonMass), 1, physics.ProtonMass)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	n := len(traj)
	if n < 1000 {
		t.Fatalf("trajectory too short: %d samples", n)
	}
	if traj.Final().Momentum.X >= 0 {
		t.Errorf("track should have been bent inside the map, px=%.4f", traj.Final().Momentum.X)
	}
	if traj.Final().Field != (r3.Vec{}) {
		t.Errorf("field beyond the map got %v, expected zero", traj.Final().Field)
	}
	if traj[n-1].Momentum != traj[n-300].Momentum {
		t.Errorf("momentum changed outside the map: %v vs %v", traj[n-1].Momentum, traj[n-300].Momentum)
	}

	a := r3.Unit(r3.Sub(traj[n-150].Position, traj[n-300].Position))
	b := r3.Unit(r3.Sub(traj[n-1].Position, traj[n-150].Position))
	if r3.Dot(a, b) < 1-1e-12 {
		t.Errorf("path beyond the map is not straight: cos=%.15f", r3.Dot(a, b))
	}
}

func TestRecordsFieldAlongPath(t *testing.T) {
	tr := newTracker(t, physics.UniformField{Y: 0.7}, DefaultConfig())
	traj, err := tr.Calculate(r3.Vec{}, p4(0, 0, 500, physics.ProtonMass), 1, physics.ProtonMass)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for _, pt := range traj {
		if pt.Field != (r3.Vec{Y: 0.7}) {
			t.Fatalf("recorded field got %v, expected (0, 0.7, 0)", pt.Field)
		}
	}
}

func TestInvalidInputs(t *testing.T) {
	bad := []Config{
		{StepSize: 0, MaxTime: 1, MaxDistance: 1, Integrator: "rk4"},
		{StepSize: 1, MaxTime: 0, MaxDistance: 1, Integrator: "rk4"},
		{StepSize: 1, MaxTime: 1, MaxDistance: -1, Integrator: "rk4"},
		{StepSize: 1, MaxTime: 1, MaxDistance: 1, MinMomentum: -1, Integrator: "rk4"},
		{StepSize: 1, MaxTime: 1, MaxDistance: 1, Integrator: "leapfrog"},
	}
	for i, cfg := range bad {
		if _, err := New(nil, cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("config %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}

	tr := newTracker(t, physics.UniformField{Y: 1}, DefaultConfig())
	_, err := tr.Calculate(r3.Vec{X: math.NaN()}, p4(0, 0, 100, physics.ProtonMass), 1, physics.ProtonMass)
	if !errors.Is(err, ErrInvalidStart) {
		t.Errorf("expected ErrInvalidStart, got %v", err)
	}
}

func TestEulerStepperSelectable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Integrator = "euler"
	cfg.MaxDistance = 500
	tr := newTracker(t, physics.UniformField{Y: 1}, cfg)

	traj, err := tr.Calculate(r3.Vec{}, p4(0, 0, 1000, physics.ProtonMass), 1, physics.ProtonMass)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(traj) < 400 {
		t.Errorf("euler trajectory too short: %d", len(traj))
	}
}

func TestConcurrentCalculate(t *testing.T) {
	tr := newTracker(t, physics.UniformField{Y: 1}, DefaultConfig())
	mom := p4(150, 20, 900, physics.ProtonMass)

	want, err := tr.Calculate(r3.Vec{}, mom, 1, physics.ProtonMass)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	var wg sync.WaitGroup
	finals := make([]Point, 8)
	for i := range finals {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			traj, _ := tr.Calculate(r3.Vec{}, mom, 1, physics.ProtonMass)
			finals[i] = traj.Final()
		}(i)
	}
	wg.Wait()

	for i, f := range finals {
		if f != want.Final() {
			t.Errorf("goroutine %d final sample differs: %+v vs %+v", i, f, want.Final())
		}
	}
}
