// Package apperrors defines the error taxonomy shared by the dispatch
// engine. Every error that can reach a client is classified here so the
// session gateway can translate it into a single error event with a
// stable code.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the gateway boundary.
type Kind int

const (
	// KindValidation marks malformed or missing request fields,
	// rejected before any state mutation.
	KindValidation Kind = iota + 1
	// KindNotFound marks an unknown ride, driver or rider identifier.
	KindNotFound
	// KindNotAssociated marks an actor that is not the assigned
	// counterpart of the ride it is acting on.
	KindNotAssociated
	// KindInvalidTransition marks a transition that is illegal from the
	// ride's current state.
	KindInvalidTransition
	// KindConflict marks a lost atomic accept/cancel race.
	KindConflict
	// KindUpstream marks an unreachable store or routing service.
	KindUpstream
)

// Error is a classified error with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the classification of err, or 0 when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Convenience constructors matching the taxonomy.

func Validation(format string, args ...interface{}) *Error {
	return Newf(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return Newf(KindNotFound, format, args...)
}

func NotAssociated(format string, args ...interface{}) *Error {
	return Newf(KindNotAssociated, format, args...)
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return Newf(KindInvalidTransition, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return Newf(KindConflict, format, args...)
}

func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}
