package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var yAxis = r3.Vec{Y: 1}

// Map is a dipole field map sampled on one quadrant (x>=0, z>=0) of the magnet
// aperture. Queries at negative x or z are folded onto the measured quadrant
// using the magnet's mirror symmetry.
//
// A Map is populated once by one of the load methods or by Build and is then
// read-only; concurrent queries are safe. SetRotationAngle and SetScale must
// be called before the map is shared.
type Map struct {
	lattice    Lattice
	bx, by, bz []float64

	scale    float64
	angleDeg float64
	toLocal  r3.Rotation
	toLab    r3.Rotation
	rotated  bool

	ready bool
}

// New returns an empty, unloaded map.
func New() *Map {
	return &Map{scale: 1}
}

// Build samples fn at every lattice node. fn receives local-frame coordinates
// on the measured quadrant.
func Build(l Lattice, fn func(x, y, z float64) r3.Vec) (*Map, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	m := New()
	m.allocate(l)
	for ix := 0; ix < l.N[0]; ix++ {
		x := l.Coord(0, ix)
		for iy := 0; iy < l.N[1]; iy++ {
			y := l.Coord(1, iy)
			for iz := 0; iz < l.N[2]; iz++ {
				b := fn(x, y, l.Coord(2, iz))
				idx := l.Index(ix, iy, iz)
				m.bx[idx], m.by[idx], m.bz[idx] = b.X, b.Y, b.Z
			}
		}
	}
	m.ready = true
	return m, nil
}

func (m *Map) allocate(l Lattice) {
	n := l.Size()
	m.lattice = l
	m.bx = make([]float64, n)
	m.by = make([]float64, n)
	m.bz = make([]float64, n)
}

func (m *Map) reset() {
	m.lattice = Lattice{}
	m.bx, m.by, m.bz = nil, nil, nil
	m.ready = false
}

// Ready reports whether the map holds a lattice. Queries on an unloaded map
// return the zero vector.
func (m *Map) Ready() bool { return m != nil && m.ready }

func (m *Map) Lattice() Lattice { return m.lattice }

// SetRotationAngle sets the magnet rotation about the vertical axis. Only
// Field is affected; FieldRaw always answers in the magnet frame.
func (m *Map) SetRotationAngle(deg float64) {
	m.angleDeg = deg
	// lab to magnet: x_m = x cos + z sin, z_m = -x sin + z cos
	theta := deg * math.Pi / 180
	m.toLocal = r3.NewRotation(theta, yAxis)
	m.toLab = r3.NewRotation(-theta, yAxis)
	m.rotated = deg != 0
}

func (m *Map) RotationAngle() float64 { return m.angleDeg }

// SetScale multiplies every returned component by s.
func (m *Map) SetScale(s float64) { m.scale = s }

func (m *Map) Scale() float64 { return m.scale }

// FieldRaw returns the field at (x, y, z) in the magnet frame, in tesla.
// Points outside the mapped aperture have zero field.
func (m *Map) FieldRaw(x, y, z float64) r3.Vec {
	if !m.Ready() {
		return r3.Vec{}
	}

	flipX, flipZ := x < 0, z < 0
	if flipX {
		x = -x
	}
	if flipZ {
		z = -z
	}

	ix, fx, ok := m.lattice.locate(0, x)
	if !ok {
		return r3.Vec{}
	}
	iy, fy, ok := m.lattice.locate(1, y)
	if !ok {
		return r3.Vec{}
	}
	iz, fz, ok := m.lattice.locate(2, z)
	if !ok {
		return r3.Vec{}
	}

	b := m.trilinear(ix, iy, iz, fx, fy, fz)
	if flipX {
		b.X = -b.X
	}
	if flipZ {
		b.Z = -b.Z
	}
	if m.scale != 1 {
		b = r3.Scale(m.scale, b)
	}
	return b
}

// trilinear blends the eight nodes around (ix, iy, iz). A zero fraction pins
// the axis to its lower node so the last lattice plane needs no neighbour.
func (m *Map) trilinear(ix, iy, iz int, fx, fy, fz float64) r3.Vec {
	jx, jy, jz := ix, iy, iz
	if fx > 0 {
		jx++
	}
	if fy > 0 {
		jy++
	}
	if fz > 0 {
		jz++
	}

	var b r3.Vec
	corners := [8]struct {
		i, j, k int
		w       float64
	}{
		{ix, iy, iz, (1 - fx) * (1 - fy) * (1 - fz)},
		{jx, iy, iz, fx * (1 - fy) * (1 - fz)},
		{ix, jy, iz, (1 - fx) * fy * (1 - fz)},
		{jx, jy, iz, fx * fy * (1 - fz)},
		{ix, iy, jz, (1 - fx) * (1 - fy) * fz},
		{jx, iy, jz, fx * (1 - fy) * fz},
		{ix, jy, jz, (1 - fx) * fy * fz},
		{jx, jy, jz, fx * fy * fz},
	}
	for _, c := range corners {
		if c.w == 0 {
			continue
		}
		idx := m.lattice.Index(c.i, c.j, c.k)
		b.X += c.w * m.bx[idx]
		b.Y += c.w * m.by[idx]
		b.Z += c.w * m.bz[idx]
	}
	return b
}

// Field returns the field at a lab-frame point, in the lab frame.
func (m *Map) Field(x, y, z float64) r3.Vec {
	return m.FieldAt(r3.Vec{X: x, Y: y, Z: z})
}

// FieldAt is Field for a vector argument.
func (m *Map) FieldAt(p r3.Vec) r3.Vec {
	if !m.rotated {
		return m.FieldRaw(p.X, p.Y, p.Z)
	}
	local := m.toLocal.Rotate(p)
	return m.toLab.Rotate(m.FieldRaw(local.X, local.Y, local.Z))
}

// ToLocal converts a lab-frame point to the magnet frame.
func (m *Map) ToLocal(p r3.Vec) r3.Vec {
	if !m.rotated {
		return p
	}
	return m.toLocal.Rotate(p)
}

// IsInRange reports whether the lab point p lies inside the aperture covered
// by the map and its mirror images.
func (m *Map) IsInRange(p r3.Vec) bool {
	if !m.Ready() {
		return false
	}
	local := m.ToLocal(p)
	for axis, v := range [3]float64{math.Abs(local.X), local.Y, math.Abs(local.Z)} {
		if _, _, ok := m.lattice.locate(axis, v); !ok {
			return false
		}
	}
	return true
}

// Info summarizes a loaded map.
type Info struct {
	Lattice  Lattice
	Extent   [3][2]float64
	PeakB    float64
	NonZero  int
	AngleDeg float64
	Scale    float64
}

func (m *Map) Info() (Info, error) {
	if !m.Ready() {
		return Info{}, ErrNotLoaded
	}
	info := Info{Lattice: m.lattice, AngleDeg: m.angleDeg, Scale: m.scale}
	for axis := 0; axis < 3; axis++ {
		info.Extent[axis] = [2]float64{m.lattice.Min[axis], m.lattice.Max(axis)}
	}
	for i := range m.bx {
		b := math.Sqrt(m.bx[i]*m.bx[i] + m.by[i]*m.by[i] + m.bz[i]*m.bz[i])
		if b > 0 {
			info.NonZero++
		}
		info.PeakB = math.Max(info.PeakB, b*math.Abs(m.scale))
	}
	return info, nil
}

func (i Info) String() string {
	return fmt.Sprintf("%dx%dx%d nodes, x[%g,%g] y[%g,%g] z[%g,%g] mm, |B|max=%.4f T, angle=%g deg",
		i.Lattice.N[0], i.Lattice.N[1], i.Lattice.N[2],
		i.Extent[0][0], i.Extent[0][1], i.Extent[1][0], i.Extent[1][1], i.Extent[2][0], i.Extent[2][1],
		i.PeakB, i.AngleDeg)
}
