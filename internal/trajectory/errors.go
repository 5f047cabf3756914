package trajectory

import "errors"

var (
	// ErrInvalidConfig indicates a tracking configuration that cannot run.
	ErrInvalidConfig = errors.New("trajectory: invalid configuration")

	// ErrInvalidStart indicates a start position or momentum with NaN/Inf, or a negative mass.
	ErrInvalidStart = errors.New("trajectory: invalid start state")
)
