// Package plotting renders reconstruction results to PNG with gonum/plot.
package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/san-kum/tgtreco/internal/reconstruct"
	"github.com/san-kum/tgtreco/internal/trajectory"
)

var ErrNothingToPlot = errors.New("plotting: nothing to plot")

var (
	bestColor  = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	trialColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	pdcColor   = color.RGBA{B: 200, A: 255}
	tgtColor   = color.RGBA{G: 150, A: 255}
)

// maxTrialLines caps the trial trajectories drawn behind the best one.
const maxTrialLines = 40

// TrajectoryPNG draws the best and trial trajectories of res in the x-z
// plane together with the measured points and the target.
func TrajectoryPNG(path string, res *reconstruct.Result, track reconstruct.Track, target r3.Vec) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: |p| = %.1f MeV/c, d = %.2f mm", res.Method, res.PMag(), res.FinalDistance)
	p.X.Label.Text = "z (mm)"
	p.Y.Label.Text = "x (mm)"

	stride := 1
	if n := len(res.Trials); n > maxTrialLines {
		stride = (n + maxTrialLines - 1) / maxTrialLines
	}
	for i := 0; i < len(res.Trials); i += stride {
		if len(res.Trials[i].Trajectory) < 2 {
			continue
		}
		l, err := plotter.NewLine(xz(res.Trials[i].Trajectory))
		if err != nil {
			return err
		}
		l.Color = trialColor
		l.Width = vg.Points(0.5)
		p.Add(l)
	}

	if len(res.Trajectory) >= 2 {
		l, err := plotter.NewLine(xz(res.Trajectory))
		if err != nil {
			return err
		}
		l.Color = bestColor
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add("best", l)
	}

	pdc, err := plotter.NewScatter(plotter.XYs{{X: track.Start.Z, Y: track.Start.X}, {X: track.End.Z, Y: track.End.X}})
	if err != nil {
		return err
	}
	pdc.GlyphStyle.Shape = draw.BoxGlyph{}
	pdc.GlyphStyle.Color = pdcColor
	pdc.GlyphStyle.Radius = vg.Points(3)
	p.Add(pdc)
	p.Legend.Add("pdc", pdc)

	tgt, err := plotter.NewScatter(plotter.XYs{{X: target.Z, Y: target.X}})
	if err != nil {
		return err
	}
	tgt.GlyphStyle.Shape = draw.CrossGlyph{}
	tgt.GlyphStyle.Color = tgtColor
	tgt.GlyphStyle.Radius = vg.Points(5)
	p.Add(tgt)
	p.Legend.Add("target", tgt)

	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// ScanPNG draws distance against momentum for a scan. Trials that never
// produced a finite distance are left out.
func ScanPNG(path string, trials []reconstruct.Trial) error {
	pts := make(plotter.XYs, 0, len(trials))
	for _, t := range trials {
		if math.IsInf(t.Distance, 0) || math.IsNaN(t.Distance) {
			continue
		}
		pts = append(pts, plotter.XY{X: t.P, Y: t.Distance})
	}
	if len(pts) < 2 {
		return ErrNothingToPlot
	}

	p := plot.New()
	p.Title.Text = "closest approach scan"
	p.X.Label.Text = "|p| (MeV/c)"
	p.Y.Label.Text = "distance (mm)"

	l, s, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	l.Color = bestColor
	s.Color = bestColor
	p.Add(l, s, plotter.NewGrid())
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// HistogramPNG fills a histogram of values over their own range and saves
// it.
func HistogramPNG(path, title string, values []float64, bins int) error {
	h, err := Histogram(values, bins)
	if err != nil {
		return err
	}

	p := hplot.New()
	p.Title.Text = title
	p.Y.Label.Text = "entries"

	hh := hplot.NewH1D(h)
	hh.LineStyle.Color = bestColor
	hh.FillColor = nil
	hh.Infos.Style = hplot.HInfoSummary
	p.Add(hh)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// Histogram books values into bins spanning their finite range. A single
// distinct value gets a unit-wide range around it.
func Histogram(values []float64, bins int) (*hbook.H1D, error) {
	if bins < 1 {
		return nil, fmt.Errorf("plotting: %d bins", bins)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo > hi {
		return nil, ErrNothingToPlot
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	// Widen so the maximum lands inside the last bin.
	hi += (hi - lo) * 1e-9

	h := hbook.NewH1D(bins, lo, hi)
	for _, v := range values {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			h.Fill(v, 1)
		}
	}
	return h, nil
}

func xz(traj trajectory.Trajectory) plotter.XYs {
	pts := make(plotter.XYs, len(traj))
	for i, pt := range traj {
		pts[i] = plotter.XY{X: pt.Position.Z, Y: pt.Position.X}
	}
	return pts
}
