package field

import (
	"fmt"
	"math"
)

// edgeTolerance is how far, in cells, a query may fall outside the lattice
// and still be treated as lying on its boundary.
const edgeTolerance = 1e-9

// Lattice describes the regular grid a field map is sampled on. Axes are
// ordered x, y, z; Step is the node spacing in mm.
type Lattice struct {
	N    [3]int
	Min  [3]float64
	Step [3]float64
}

// NewLattice builds a lattice from per-axis node counts and extents.
func NewLattice(n [3]int, min, max [3]float64) (Lattice, error) {
	l := Lattice{N: n, Min: min}
	for axis := 0; axis < 3; axis++ {
		if n[axis] > 1 {
			l.Step[axis] = (max[axis] - min[axis]) / float64(n[axis]-1)
		}
	}
	if err := l.Validate(); err != nil {
		return Lattice{}, err
	}
	return l, nil
}

func (l Lattice) Validate() error {
	for axis := 0; axis < 3; axis++ {
		if l.N[axis] < 1 {
			return fmt.Errorf("%w: axis %d has %d nodes", ErrBadLattice, axis, l.N[axis])
		}
		if l.N[axis] > 1 && !(l.Step[axis] > 0) {
			return fmt.Errorf("%w: axis %d step %g", ErrBadLattice, axis, l.Step[axis])
		}
	}
	return nil
}

// Size is the number of lattice nodes.
func (l Lattice) Size() int {
	return l.N[0] * l.N[1] * l.N[2]
}

// Max returns the coordinate of the last node along axis.
func (l Lattice) Max(axis int) float64 {
	return l.Min[axis] + l.Step[axis]*float64(l.N[axis]-1)
}

// Coord returns the coordinate of node i along axis.
func (l Lattice) Coord(axis, i int) float64 {
	return l.Min[axis] + l.Step[axis]*float64(i)
}

// Index flattens node indices; z varies fastest.
func (l Lattice) Index(ix, iy, iz int) int {
	return (ix*l.N[1]+iy)*l.N[2] + iz
}

// locate finds the lower node index and fractional offset of v along axis.
// A point on the last node gets fraction 0 so the upper neighbour is never
// read; a single-node axis accepts only its own coordinate.
func (l Lattice) locate(axis int, v float64) (int, float64, bool) {
	n := l.N[axis]
	if n == 1 {
		return 0, 0, math.Abs(v-l.Min[axis]) <= edgeTolerance
	}

	u := (v - l.Min[axis]) / l.Step[axis]
	last := float64(n - 1)
	if u < -edgeTolerance || u > last+edgeTolerance || math.IsNaN(u) {
		return 0, 0, false
	}

	i := int(math.Floor(u))
	switch {
	case i < 0:
		return 0, 0, true
	case i >= n-1:
		return n - 1, 0, true
	}
	return i, u - float64(i), true
}

// snap maps a sample coordinate onto its node, rejecting coordinates more
// than tol cells away from one.
func (l Lattice) snap(axis int, v, tol float64) (int, bool) {
	if l.N[axis] == 1 {
		return 0, math.Abs(v-l.Min[axis]) <= tol*math.Max(1, math.Abs(v))
	}
	u := (v - l.Min[axis]) / l.Step[axis]
	i := int(math.Round(u))
	if i < 0 || i >= l.N[axis] || math.Abs(u-float64(i)) > tol {
		return 0, false
	}
	return i, true
}
