package utils

import (
	"github.com/cockroachdb/errors"
)

// Violation builds the error reported when a caller breaks a documented precondition: sentinel
// wrapped with the formatted detail and flagged as an assertion failure. In builds with the
// debug_hearth tag the violation panics instead of returning.
func Violation(sentinel error, format string, args ...interface{}) error {
	err := errors.WithAssertionFailure(errors.Wrapf(sentinel, format, args...))
	debugPanic(err)
	return err
}
