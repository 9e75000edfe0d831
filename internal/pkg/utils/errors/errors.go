// Package errors extends the standard "errors" package with stack traces,
// wrapped errors with a custom message, multi errors and a configurable formatter.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

const stackDepth = 32

// StackTrace contains program counters of the error origin.
type StackTrace []uintptr

type stackTracer interface {
	StackTrace() StackTrace
}

// withStack is an error with the origin stack trace.
type withStack struct {
	error
	trace StackTrace
}

// wrappedError replaces the message of the original error, the original error is still available via Unwrap.
type wrappedError struct {
	msg   string
	cause error
	trace StackTrace
}

func New(msg string) error {
	return &withStack{error: errors.New(msg), trace: callers()}
}

func Errorf(format string, a ...any) error {
	return &withStack{error: fmt.Errorf(format, a...), trace: callers()} // nolint: goerr113
}

func Wrap(err error, msg string) error {
	return &wrappedError{msg: msg, cause: err, trace: callers()}
}

func Wrapf(err error, format string, a ...any) error {
	return &wrappedError{msg: fmt.Sprintf(format, a...), cause: err, trace: callers()}
}

// WithStack adds stack trace to the error, if it is not present.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	var tracer stackTracer
	if errors.As(err, &tracer) {
		return err
	}
	return &withStack{error: err, trace: callers()}
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func (e *withStack) Unwrap() error {
	return e.error
}

func (e *withStack) StackTrace() StackTrace {
	return e.trace
}

func (e *wrappedError) Error() string {
	return e.msg
}

func (e *wrappedError) Unwrap() error {
	return e.cause
}

func (e *wrappedError) StackTrace() StackTrace {
	return e.trace
}

func callers() StackTrace {
	var pcs [stackDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}
