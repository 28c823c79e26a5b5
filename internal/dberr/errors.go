// Package dberr defines the backend-agnostic error taxonomy shared by the
// retry controller, the validation protocol and both database backends.
package dberr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindQuery Kind = iota
	KindConnection
	KindQueryRetriesExceeded
	KindOverloaded
	KindTimeout
	KindValidation
	KindArgument
	KindCustom
	KindLookup
	KindSerialization
)

var kindNames = map[Kind]string{
	KindQuery:                "QueryError",
	KindConnection:           "ConnectionError",
	KindQueryRetriesExceeded: "QueryRetriesExceeded",
	KindOverloaded:           "Overloaded",
	KindTimeout:              "Timeout",
	KindValidation:           "ValidationError",
	KindArgument:             "ArgumentError",
	KindCustom:               "CustomError",
	KindLookup:               "LookupError",
	KindSerialization:        "SerializationError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Retryable reports whether errors of this kind are transient.
func (k Kind) Retryable() bool {
	return k == KindOverloaded || k == KindTimeout
}

// Error is the displayable error returned to workloads.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Kind == KindCustom {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, dberr.ErrLookup)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrQuery                = &Error{Kind: KindQuery}
	ErrConnection           = &Error{Kind: KindConnection}
	ErrQueryRetriesExceeded = &Error{Kind: KindQueryRetriesExceeded}
	ErrOverloaded           = &Error{Kind: KindOverloaded}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrValidation           = &Error{Kind: KindValidation}
	ErrArgument             = &Error{Kind: KindArgument}
	ErrCustom               = &Error{Kind: KindCustom}
	ErrLookup               = &Error{Kind: KindLookup}
	ErrSerialization        = &Error{Kind: KindSerialization}
)

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a native cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Argument(format string, args ...any) *Error { return New(KindArgument, format, args...) }

func Lookup(format string, args ...any) *Error { return New(KindLookup, format, args...) }

func Custom(message string) *Error { return &Error{Kind: KindCustom, Message: message} }

// RetriesExceeded reports that every attempt of an operation failed.
func RetriesExceeded(retryNumber int, last error) *Error {
	return &Error{
		Kind:    KindQueryRetriesExceeded,
		Message: fmt.Sprintf("max retry attempts (%d) reached", retryNumber),
		Err:     last,
	}
}

// KindOf returns the kind of err, or KindQuery for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindQuery
}

// IsRetryable reports whether err was classified transient by a backend.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind.Retryable()
}
