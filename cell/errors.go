package cell

import (
	"errors"
	"fmt"
)

// ErrMalformedKey is returned when an address violates the cell layout.
var ErrMalformedKey = errors.New("malformed cell key")

// MalformedKeyError describes why an address was rejected.
//
// It matches ErrMalformedKey with errors.Is.
type MalformedKeyError struct {
	Address uint64
	Reason  string
	cause   error
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("%s %#x: %s", ErrMalformedKey, e.Address, e.Reason)
}

func (e *MalformedKeyError) Is(target error) bool { return target == ErrMalformedKey }

func (e *MalformedKeyError) Unwrap() error { return e.cause }
