package languagemodel

import (
	"errors"
	"fmt"
)

// Kind classifies session API failures.
type Kind int

const (
	// KindInternal is anything not covered by a more specific kind.
	KindInternal Kind = iota
	// KindInvalidArgument: out-of-range sampling options, malformed input or
	// response constraint, or a completion that violates its constraint.
	KindInvalidArgument
	// KindCapability: content type not declared in the session's expected inputs.
	KindCapability
	// KindAborted: the caller's context was canceled.
	KindAborted
	// KindDisposed: the session was destroyed.
	KindDisposed
	// KindUnavailable: the model is unknown, missing or failed to download.
	KindUnavailable
	// KindQuotaExceeded: the input would push usage past the session quota.
	KindQuotaExceeded
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindCapability:
		return "capability"
	case KindAborted:
		return "aborted"
	case KindDisposed:
		return "disposed"
	case KindUnavailable:
		return "unavailable"
	case KindQuotaExceeded:
		return "quota_exceeded"
	default:
		return "internal"
	}
}

// Error is returned by Service and Session operations.
type Error struct {
	Kind Kind
	// Op names the failing operation ("create", "prompt", ...).
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind, so sentinel comparisons like
// errors.Is(err, &Error{Kind: KindDisposed}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsInvalidArgument(err error) bool { return err != nil && KindOf(err) == KindInvalidArgument }
func IsCapability(err error) bool      { return err != nil && KindOf(err) == KindCapability }
func IsAborted(err error) bool         { return err != nil && KindOf(err) == KindAborted }
func IsDisposed(err error) bool        { return err != nil && KindOf(err) == KindDisposed }
func IsUnavailable(err error) bool     { return err != nil && KindOf(err) == KindUnavailable }
func IsQuotaExceeded(err error) bool   { return err != nil && KindOf(err) == KindQuotaExceeded }
