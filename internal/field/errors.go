package field

import "errors"

var (
	// ErrNotLoaded is returned by operations that need a populated map.
	ErrNotLoaded = errors.New("field: map not loaded")

	// ErrEmptySource indicates a table or cache with no samples.
	ErrEmptySource = errors.New("field: empty source")

	// ErrBadHeader indicates a table header that does not describe a lattice.
	ErrBadHeader = errors.New("field: malformed table header")

	// ErrMalformedRow indicates a data row that is not six numbers.
	ErrMalformedRow = errors.New("field: malformed table row")

	// ErrOffLattice indicates a sample that does not sit on a lattice node.
	ErrOffLattice = errors.New("field: sample off lattice")

	// ErrBadCache indicates a serialized map that fails validation.
	ErrBadCache = errors.New("field: invalid serialized map")

	// ErrBadLattice indicates lattice dimensions or steps that cannot hold data.
	ErrBadLattice = errors.New("field: invalid lattice")
)
