package models

import "github.com/pkg/errors"

// ErrInvalidInput marks caller mistakes detected before any I/O: blank query
// text, blank connection string, non-positive iteration count. Always fatal
// to the call.
var ErrInvalidInput = errors.New("invalid input")

// IsInvalidInput reports whether err originates from input validation.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
