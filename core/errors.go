package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrServiceNotConfigured = errors.New("service not configured")
	ErrNotFound             = errors.New("not found")
	ErrInvalidConfig        = errors.New("invalid config")
	ErrUnsupportedModality  = errors.New("unsupported modality")
)

// Error wraps an error kind with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError wraps err with operation context. A nil err stays nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// DimensionError reports a vector of the wrong length.
func DimensionError(op string, want, got int) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, got)}
}
