package celltrie

import (
	"errors"
	"fmt"

	"github.com/hupe1980/celltrie/cell"
)

var (
	// ErrMalformedKey is returned when a cell address violates the layout.
	ErrMalformedKey = cell.ErrMalformedKey

	// ErrReadOnly is returned by any mutation of a read-only map.
	ErrReadOnly = errors.New("read-only map")

	// ErrIllegalIteratorState is returned by Iterator.Remove when there is no
	// current entry to remove.
	ErrIllegalIteratorState = errors.New("illegal iterator state")

	// ErrUnsupportedOperation is returned by mutating calls on a read-only
	// iterator.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrCorruptStream is returned when a persisted map cannot be decoded.
	ErrCorruptStream = errors.New("corrupt stream")
)

// ReadOnlyError reports the operation that was attempted on a read-only map.
//
// It unwraps to ErrReadOnly.
type ReadOnlyError struct {
	Op string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrReadOnly)
}

func (e *ReadOnlyError) Unwrap() error { return ErrReadOnly }

// unsupported is returned by read-only iterators. It matches both
// ErrUnsupportedOperation and ErrReadOnly.
var unsupported = fmt.Errorf("%w: %w", ErrUnsupportedOperation, ErrReadOnly)

func corrupt(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrCorruptStream, err)
}
