package memory

import "errors"

// Sentinel errors identifying bus-level fatal conditions. Every one
// of these is fatal to the whole process; wrapping with
// fmt.Errorf("%w: ...") lets callers still errors.Is against these.
var (
	// ErrUnmapped is returned when no registered region covers an
	// address the CPU tried to read or write.
	ErrUnmapped = errors.New("bus: unmapped address")
	// ErrWriteToROM is returned when a write lands on an immutable
	// ROM region (or a bank-switched ROM at a non-magic address).
	ErrWriteToROM = errors.New("bus: write to read-only region")
)
