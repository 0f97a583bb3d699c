package smurfemu

import "github.com/pkg/errors"

// Errors reported by the emulator stage and its collaborators. Wrapped errors
// keep these as their cause, so test them with errors.Cause.
var (
	// ErrInvalidSignalType is returned when a signal type tag is outside the known set.
	ErrInvalidSignalType = errors.New("invalid signal type")

	// ErrInvalidConfig is returned when a configuration value is outside its storage width.
	ErrInvalidConfig = errors.New("invalid configuration value")

	// ErrMalformedFrame means a frame's size is inconsistent with its declared layout.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrFrameLocked means a frame was already locked when handed to a stage.
	ErrFrameLocked = errors.New("frame is locked by another owner")

	// ErrOutOfRange is returned by FrameAccessor for an index outside the view.
	ErrOutOfRange = errors.New("sample index out of range")
)
