package store

import (
	"errors"
	"fmt"
)

// Kind classifies a Store Client failure.
type Kind int

const (
	// KindTransport covers every failure reported by the remote table.
	KindTransport Kind = iota
	// KindAuth means no session was present for a scoped call.
	KindAuth
	// KindNotFound means an update matched no row owned by the caller.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "transport"
	}
}

const (
	msgNotAuthenticated = "User not authenticated"
	msgNotFound         = "Task not found"
)

// Error is the single failure type returned by Client. Message is safe to
// show to the user.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can test against the
// exported sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotAuthenticated = &Error{Kind: KindAuth, Message: msgNotAuthenticated}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: msgNotFound}
)

// KindOf reports the kind of err, or KindTransport for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

func authError(op string, err error) *Error {
	return &Error{Kind: KindAuth, Op: op, Message: msgNotAuthenticated, Err: err}
}

func transportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: transportMessage(err), Err: fmt.Errorf("%s: %w", op, err)}
}

// transportMessage keeps the innermost cause, which is the part the remote
// table wrote for humans.
func transportMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
