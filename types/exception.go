package types

import (
	"errors"
	"fmt"
	"slices"
)

// ExceptionKind names a class of error raised by a test body.
type ExceptionKind string

const (
	KindAssertion  ExceptionKind = "assertion"
	KindPanic      ExceptionKind = "panic"
	KindTimeout    ExceptionKind = "timeout"
	KindExitStatus ExceptionKind = "exit-status"
)

// Kinded is implemented by errors that carry an explicit kind.
type Kinded interface {
	error
	Kind() ExceptionKind
}

// Exception is the error a body returns to signal a failure of a given kind.
type Exception struct {
	ExceptionKind ExceptionKind
	Message       string
	Cause         error
}

var _ Kinded = (*Exception)(nil)

// Throw creates an Exception of the given kind.
func Throw(kind ExceptionKind, format string, args ...any) *Exception {
	return &Exception{ExceptionKind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Exception) Error() string {
	return e.Message
}

func (e *Exception) Kind() ExceptionKind {
	return e.ExceptionKind
}

func (e *Exception) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of the outermost kinded error in err's chain, so an
// exception annotated with fmt.Errorf("...: %w") keeps its kind. Errors that
// carry no kind are identified by their dynamic type name.
func KindOf(err error) ExceptionKind {
	if err == nil {
		return ""
	}
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return ExceptionKind(fmt.Sprintf("%T", err))
}

// ExpectedException declares which failures a body is expected to raise.
type ExpectedException struct {
	Kinds []ExceptionKind
	// MessageMatch is checked as a literal substring first and as a regular
	// expression second. Empty means any message.
	MessageMatch string
	// Enforce fails the unit when none of Kinds was raised.
	Enforce bool
}

// Declared reports whether any exception kind is expected.
func (e ExpectedException) Declared() bool {
	return len(e.Kinds) > 0
}

// Expects reports whether kind is one of the declared kinds.
func (e ExpectedException) Expects(kind ExceptionKind) bool {
	return slices.Contains(e.Kinds, kind)
}
