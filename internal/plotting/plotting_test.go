package plotting

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/reconstruct"
	"github.com/san-kum/tgtreco/internal/trajectory"
)

func arc(n int, bend float64) trajectory.Trajectory {
	traj := make(trajectory.Trajectory, n)
	for i := range traj {
		z := 2500 - 10*float64(i)
		traj[i] = trajectory.Point{Position: r3.Vec{X: bend * (2500 - z) * (2500 - z) / 1e4, Z: z}}
	}
	return traj
}

func nonEmptyFile(t *testing.T, path string) {
	t.Helper()
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if st.Size() == 0 {
		t.Errorf("%s is empty", path)
	}
}

func TestTrajectoryPNG(t *testing.T) {
	res := &reconstruct.Result{
		Method:        "grid",
		Momentum:      fmom.NewPxPyPzE(200, 0, 1000, 1385.8),
		FinalDistance: 0.8,
		Trajectory:    arc(300, 1),
	}
	for i := 0; i < 60; i++ {
		res.Trials = append(res.Trials, reconstruct.Trial{P: float64(100 + 10*i), Trajectory: arc(300, 0.5+float64(i)/60)})
	}
	res.Trials = append(res.Trials, reconstruct.Trial{P: 50})

	path := filepath.Join(t.TempDir(), "traj.png")
	track := reconstruct.Track{Start: r3.Vec{Z: 2000}, End: r3.Vec{Z: 2500}}
	if err := TrajectoryPNG(path, res, track, r3.Vec{Z: -500}); err != nil {
		t.Fatalf("TrajectoryPNG: %v", err)
	}
	nonEmptyFile(t, path)
}

func TestScanPNG(t *testing.T) {
	var trials []reconstruct.Trial
	for i := 0; i < 20; i++ {
		p := 500 + 50*float64(i)
		trials = append(trials, reconstruct.Trial{P: p, Distance: math.Abs(p - 1000)})
	}
	trials = append(trials, reconstruct.Trial{P: 2000, Distance: math.Inf(1)})

	path := filepath.Join(t.TempDir(), "scan.png")
	if err := ScanPNG(path, trials); err != nil {
		t.Fatalf("ScanPNG: %v", err)
	}
	nonEmptyFile(t, path)

	if err := ScanPNG(path, trials[:1]); !errors.Is(err, ErrNothingToPlot) {
		t.Errorf("expected ErrNothingToPlot, got %v", err)
	}
}

func TestHistogram(t *testing.T) {
	values := []float64{1, 2, 2, 3, 4, math.Inf(1), math.NaN()}
	h, err := Histogram(values, 3)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if got := h.Entries(); got != 5 {
		t.Errorf("entries got %d, expected 5", got)
	}
	if got := h.XMin(); got != 1 {
		t.Errorf("xmin got %g, expected 1", got)
	}

	single, err := Histogram([]float64{7, 7}, 4)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if single.XMin() != 6.5 {
		t.Errorf("single-value range got xmin %g, expected 6.5", single.XMin())
	}

	if _, err := Histogram([]float64{math.Inf(1)}, 4); !errors.Is(err, ErrNothingToPlot) {
		t.Errorf("expected ErrNothingToPlot, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "hist.png")
	if err := HistogramPNG(path, "final distance", values, 10); err != nil {
		t.Fatalf("HistogramPNG: %v", err)
	}
	nonEmptyFile(t, path)
}
