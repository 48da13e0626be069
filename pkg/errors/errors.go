// Package errors wraps github.com/pkg/errors so call sites get printf-style
// constructors and stack traces without importing two error packages.
package errors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

type StackTrace = errors.StackTrace

// New returns an error with the supplied message, formatted when args are given.
func New(format string, args ...interface{}) error {
	if len(args) == 0 {
		return errors.New(format)
	}
	return errors.Errorf(format, args...)
}

// Wrap annotates err with a stack trace and message, formatted when args are given.
// Returns nil if err is nil.
func Wrap(err error, format string, args ...interface{}) error {
	if len(args) == 0 {
		return errors.Wrap(err, format)
	}
	return errors.Wrapf(err, format, args...)
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Cause returns the underlying cause of the error, if possible.
func Cause(err error) error { return errors.Cause(err) }

// WithStack annotates err with a stack trace at the point WithStack was called.
func WithStack(err error) error { return errors.WithStack(err) }
