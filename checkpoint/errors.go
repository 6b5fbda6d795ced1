package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCheckpoint is returned by Load when no checkpoint has been saved.
	ErrNoCheckpoint = errors.New("no checkpoint")

	// ErrChecksum is returned when a frame payload does not match its CRC.
	ErrChecksum = errors.New("checkpoint checksum mismatch")

	// ErrInvalidFrame is returned when a frame header cannot be parsed.
	ErrInvalidFrame = errors.New("invalid checkpoint frame")
)

func invalidFrame(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFrame, fmt.Sprintf(format, args...))
}
