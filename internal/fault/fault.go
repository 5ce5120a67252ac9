// Package fault defines the error taxonomy shared across the service.
//
// Every error that crosses a package boundary carries a Kind; the HTTP
// layer translates kinds to transport status codes exactly once. Raw
// storage and library errors never travel past the layer that produced
// them — they are wrapped here with a safe, client-facing message.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary translation.
type Kind int

const (
	// Internal is the default for unclassified failures. The cause is
	// logged server-side; clients only see a generic message.
	Internal Kind = iota
	AlreadyExists
	InvalidArgument
	Unavailable
	PermissionDenied
	Unimplemented
	Unauthenticated
)

func (k Kind) String() string {
	switch k {
	case AlreadyExists:
		return "already_exists"
	case InvalidArgument:
		return "invalid_argument"
	case Unavailable:
		return "unavailable"
	case PermissionDenied:
		return "permission_denied"
	case Unimplemented:
		return "unimplemented"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with the given message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause. The cause is
// preserved for logging and errors.Is/As but Message is what clients see.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, walking the wrap chain. Unclassified
// errors report Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Message returns the client-safe message for err. Unclassified errors get
// a generic message so internals never leak.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Msg
	}
	return "internal error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
