package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the orchestration core can return.
type ErrorKind string

const (
	KindNotFound             ErrorKind = "not_found"
	KindPermissionDenied     ErrorKind = "permission_denied"
	KindConflict             ErrorKind = "conflict"
	KindInvalidState         ErrorKind = "invalid_state"
	KindAuthenticationFailed ErrorKind = "authentication_failed"
)

// Error is the typed error returned by all mutating operations. Callers
// branch on Kind via errors.As or KindOf.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// E builds a typed error with a formatted message.
func E(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
