package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/trajectory"
)

// Metric accumulates a scalar over the samples of a trajectory.
type Metric interface {
	Name() string
	Observe(pt trajectory.Point)
	Value() float64
	Reset()
}

// Apply resets each metric, feeds it every sample of traj and collects the
// values by name.
func Apply(traj trajectory.Trajectory, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for _, pt := range traj {
			m.Observe(pt)
		}
		out[m.Name()] = m.Value()
	}
	return out
}

// PathLength is the distance travelled along the sampled polyline, in mm.
type PathLength struct {
	length float64
	last   r3.Vec
	seen   bool
}

func NewPathLength() *PathLength { return &PathLength{} }

func (p *PathLength) Name() string { return "path_length" }

func (p *PathLength) Observe(pt trajectory.Point) {
	if p.seen {
		p.length += r3.Norm(r3.Sub(pt.Position, p.last))
	}
	p.last = pt.Position
	p.seen = true
}

func (p *PathLength) Value() float64 { return p.length }

func (p *PathLength) Reset() { *p = PathLength{} }

// MomentumDrift is the largest relative change of |p| from the first sample.
// In a pure magnetic field it measures integration error only.
type MomentumDrift struct {
	initial  float64
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift { return &MomentumDrift{} }

func (m *MomentumDrift) Name() string { return "momentum_drift" }

func (m *MomentumDrift) Observe(pt trajectory.Point) {
	p := r3.Norm(pt.Momentum)
	if m.samples == 0 {
		m.initial = p
	}
	m.samples++
	if m.initial != 0 {
		m.maxDrift = math.Max(m.maxDrift, math.Abs(p-m.initial)/m.initial)
	}
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() { *m = MomentumDrift{} }

// PeakField is the largest |B| recorded along the path, in tesla.
type PeakField struct {
	peak float64
}

func NewPeakField() *PeakField { return &PeakField{} }

func (f *PeakField) Name() string { return "peak_field" }

func (f *PeakField) Observe(pt trajectory.Point) {
	f.peak = math.Max(f.peak, r3.Norm(pt.Field))
}

func (f *PeakField) Value() float64 { return f.peak }

func (f *PeakField) Reset() { f.peak = 0 }
