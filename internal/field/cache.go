package field

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/san-kum/tgtreco/internal/monitoring"
)

const (
	cacheMagic   = "tgtreco-field"
	cacheVersion = 1
)

// cacheFile is the serialized form of a map. It holds no maps or pointers, so
// gob output is identical for identical contents.
type cacheFile struct {
	Magic    string
	Version  int
	Lattice  Lattice
	Scale    float64
	AngleDeg float64
	Bx       []float64
	By       []float64
	Bz       []float64
}

// SaveSerialized writes the map cache to path.
func (m *Map) SaveSerialized(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("field: create cache: %w", err)
	}
	if err := m.WriteSerialized(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteSerialized encodes the map. Writing, reading back and writing again
// yields the same bytes.
func (m *Map) WriteSerialized(w io.Writer) error {
	if !m.Ready() {
		return ErrNotLoaded
	}
	bw := bufio.NewWriter(w)
	c := cacheFile{
		Magic:    cacheMagic,
		Version:  cacheVersion,
		Lattice:  m.lattice,
		Scale:    m.scale,
		AngleDeg: m.angleDeg,
		Bx:       m.bx,
		By:       m.by,
		Bz:       m.bz,
	}
	if err := gob.NewEncoder(bw).Encode(&c); err != nil {
		return fmt.Errorf("field: encode cache: %w", err)
	}
	return bw.Flush()
}

// LoadSerialized reads a cache written by SaveSerialized. On failure the map
// is left unloaded and the error is logged.
func (m *Map) LoadSerialized(path string) error {
	f, err := os.Open(path)
	if err != nil {
		m.reset()
		monitoring.Logf("field: cannot open cache %s: %v", path, err)
		return fmt.Errorf("field: open cache: %w", err)
	}
	defer f.Close()

	if err := m.ReadSerialized(f); err != nil {
		monitoring.Logf("field: cache %s rejected: %v", path, err)
		return err
	}
	return nil
}

func (m *Map) ReadSerialized(r io.Reader) error {
	m.reset()

	var c cacheFile
	if err := gob.NewDecoder(bufio.NewReader(r)).Decode(&c); err != nil {
		if err == io.EOF {
			return ErrEmptySource
		}
		return fmt.Errorf("%w: %v", ErrBadCache, err)
	}
	if c.Magic != cacheMagic || c.Version != cacheVersion {
		return fmt.Errorf("%w: magic %q version %d", ErrBadCache, c.Magic, c.Version)
	}
	if err := c.Lattice.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadCache, err)
	}
	n := c.Lattice.Size()
	if len(c.Bx) != n || len(c.By) != n || len(c.Bz) != n {
		return fmt.Errorf("%w: %d nodes but %d/%d/%d values", ErrBadCache, n, len(c.Bx), len(c.By), len(c.Bz))
	}

	m.lattice = c.Lattice
	m.bx, m.by, m.bz = c.Bx, c.By, c.Bz
	m.scale = c.Scale
	m.SetRotationAngle(c.AngleDeg)
	m.ready = true
	return nil
}
