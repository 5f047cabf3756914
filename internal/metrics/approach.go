package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/trajectory"
)

// ClosestApproach tracks the minimum distance between a trajectory and a
// fixed point.
//
// By default only the samples themselves are considered, so the answer is
// as coarse as the step size. With Interpolate set, the point is projected
// onto every segment between consecutive samples instead, which makes the
// distance a smooth function of the launch parameters.
type ClosestApproach struct {
	Target      r3.Vec
	Interpolate bool

	best    float64
	index   int
	closest trajectory.Point
	prev    trajectory.Point
	n       int
}

func NewClosestApproach(target r3.Vec, interpolate bool) *ClosestApproach {
	c := &ClosestApproach{Target: target, Interpolate: interpolate}
	c.Reset()
	return c
}

func (c *ClosestApproach) Name() string { return "closest_approach" }

func (c *ClosestApproach) Observe(pt trajectory.Point) {
	i := c.n
	c.n++

	if d := r3.Norm(r3.Sub(pt.Position, c.Target)); d < c.best {
		c.best, c.index, c.closest = d, i, pt
	}

	if c.Interpolate && i > 0 {
		seg := r3.Sub(pt.Position, c.prev.Position)
		if l2 := r3.Norm2(seg); l2 > 0 {
			f := r3.Dot(r3.Sub(c.Target, c.prev.Position), seg) / l2
			if f > 0 && f < 1 {
				foot := r3.Add(c.prev.Position, r3.Scale(f, seg))
				if d := r3.Norm(r3.Sub(foot, c.Target)); d < c.best {
					c.best, c.index = d, i-1
					c.closest = lerp(c.prev, pt, f)
				}
			}
		}
	}
	c.prev = pt
}

// Value is the minimum distance in mm, +Inf before any sample.
func (c *ClosestApproach) Value() float64 { return c.best }

// Index is the sample at, or the segment start before, the closest approach.
func (c *ClosestApproach) Index() int { return c.index }

// Closest is the sample, or interpolated point, of closest approach.
func (c *ClosestApproach) Closest() trajectory.Point { return c.closest }

func (c *ClosestApproach) Reset() {
	c.best = math.Inf(1)
	c.index = -1
	c.closest = trajectory.Point{}
	c.prev = trajectory.Point{}
	c.n = 0
}

func lerp(a, b trajectory.Point, f float64) trajectory.Point {
	mix := func(u, v r3.Vec) r3.Vec { return r3.Add(u, r3.Scale(f, r3.Sub(v, u))) }
	return trajectory.Point{
		Position: mix(a.Position, b.Position),
		Momentum: mix(a.Momentum, b.Momentum),
		Field:    mix(a.Field, b.Field),
		Time:     a.Time + f*(b.Time-a.Time),
		Path:     a.Path + f*(b.Path-a.Path),
	}
}
