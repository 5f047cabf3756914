package field

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/tgtreco/internal/monitoring"
)

// DefaultHeaderSkip is the number of lines between the lattice header and the
// first data row in a measured table: six column titles and a terminator.
const DefaultHeaderSkip = 7

// snapTolerance is the largest distance from a node, in cells, that a table
// sample may have.
const snapTolerance = 1e-3

var columnTitles = []string{"1 X [MM]", "2 Y [MM]", "3 Z [MM]", "4 BX [T]", "5 BY [T]", "6 BZ [T]", "0"}

type sample struct {
	pos [3]float64
	b   [3]float64
}

// LoadTable reads an ASCII field table from path. On failure the map is left
// unloaded and the error is logged.
func (m *Map) LoadTable(path string, headerSkip int) error {
	f, err := os.Open(path)
	if err != nil {
		m.reset()
		monitoring.Logf("field: cannot open table %s: %v", path, err)
		return fmt.Errorf("field: open table: %w", err)
	}
	defer f.Close()

	if err := m.ReadTable(f, headerSkip); err != nil {
		monitoring.Logf("field: table %s rejected: %v", path, err)
		return err
	}
	return nil
}

// ReadTable parses a field table:
//
//	Nx Ny Nz NFields
//	<headerSkip lines>
//	x y z bx by bz
//	...
//
// The lattice extent is taken from the data. Rows may come in any order;
// nodes without a row keep zero field. A negative headerSkip selects
// DefaultHeaderSkip.
func (m *Map) ReadTable(r io.Reader, headerSkip int) error {
	m.reset()
	if headerSkip < 0 {
		headerSkip = DefaultHeaderSkip
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	n, err := readHeader(sc)
	if err != nil {
		return err
	}
	for i := 0; i < headerSkip; i++ {
		if !sc.Scan() {
			break
		}
	}

	total := n[0] * n[1] * n[2]
	samples := make([]sample, 0, total)
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}

	line := 1 + headerSkip
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		s, err := parseRow(text)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		for axis := 0; axis < 3; axis++ {
			lo[axis] = math.Min(lo[axis], s.pos[axis])
			hi[axis] = math.Max(hi[axis], s.pos[axis])
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("field: read table: %w", err)
	}

	if len(samples) == 0 {
		return ErrEmptySource
	}
	if len(samples) > total {
		return fmt.Errorf("%w: %d rows for %d nodes", ErrBadHeader, len(samples), total)
	}

	l, err := NewLattice(n, lo, hi)
	if err != nil {
		return err
	}

	m.allocate(l)
	for _, s := range samples {
		var idx [3]int
		for axis := 0; axis < 3; axis++ {
			i, ok := l.snap(axis, s.pos[axis], snapTolerance)
			if !ok {
				m.reset()
				return fmt.Errorf("%w: (%g, %g, %g)", ErrOffLattice, s.pos[0], s.pos[1], s.pos[2])
			}
			idx[axis] = i
		}
		k := l.Index(idx[0], idx[1], idx[2])
		m.bx[k], m.by[k], m.bz[k] = s.b[0], s.b[1], s.b[2]
	}

	if len(samples) < total {
		monitoring.Logf("field: %d of %d nodes absent from table, treated as zero field", total-len(samples), total)
	}
	m.ready = true
	return nil
}

func readHeader(sc *bufio.Scanner) ([3]int, error) {
	var n [3]int
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return n, fmt.Errorf("%w: %q", ErrBadHeader, sc.Text())
		}
		for axis := 0; axis < 3; axis++ {
			v, err := strconv.Atoi(fields[axis])
			if err != nil || v < 1 {
				return n, fmt.Errorf("%w: %q", ErrBadHeader, sc.Text())
			}
			n[axis] = v
		}
		return n, nil
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("field: read table: %w", err)
	}
	return n, ErrEmptySource
}

func parseRow(text string) (sample, error) {
	var s sample
	fields := strings.Fields(text)
	if len(fields) < 6 {
		return s, fmt.Errorf("want 6 columns, got %d", len(fields))
	}
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return s, err
		}
		if i < 3 {
			s.pos[i] = v
		} else {
			s.b[i-3] = v
		}
	}
	return s, nil
}

// WriteTable emits the map in the format ReadTable accepts, one row per
// lattice node. Values are written unscaled and at full precision.
func (m *Map) WriteTable(w io.Writer) error {
	if !m.Ready() {
		return ErrNotLoaded
	}

	bw := bufio.NewWriter(w)
	l := m.lattice
	fmt.Fprintf(bw, "%d %d %d 2\n", l.N[0], l.N[1], l.N[2])
	for _, title := range columnTitles {
		fmt.Fprintln(bw, title)
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for ix := 0; ix < l.N[0]; ix++ {
		for iy := 0; iy < l.N[1]; iy++ {
			for iz := 0; iz < l.N[2]; iz++ {
				k := l.Index(ix, iy, iz)
				fmt.Fprintf(bw, "%s %s %s %s %s %s\n",
					format(l.Coord(0, ix)), format(l.Coord(1, iy)), format(l.Coord(2, iz)),
					format(m.bx[k]), format(m.by[k]), format(m.bz[k]))
			}
		}
	}
	return bw.Flush()
}
