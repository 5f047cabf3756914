package reconstruct

import "errors"

var (
	// ErrDegenerateTrack indicates a track whose two points coincide, so no
	// direction can be derived from it.
	ErrDegenerateTrack = errors.New("reconstruct: degenerate track (start and end coincide)")

	// ErrTargetOnTrack indicates a target that coincides with a track point.
	ErrTargetOnTrack = errors.New("reconstruct: target coincides with a track point")

	// ErrInvalidOptions indicates strategy or reconstructor options that cannot run.
	ErrInvalidOptions = errors.New("reconstruct: invalid options")

	// ErrUnknownMethod indicates a strategy name with no registered constructor.
	ErrUnknownMethod = errors.New("reconstruct: unknown method")
)
