package model

import (
	"errors"
	"fmt"
)

// Kind classifies why a request failed.
type Kind string

// Failure kinds.
const (
	KindInterrupted Kind = "interrupted"
	KindRejected    Kind = "rejected"
	KindUnknown     Kind = "unknown"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrInterrupted = errors.New("work interrupted")
	ErrRejected    = errors.New("work rejected")
	ErrUnknown     = errors.New("work failed")
)

// Error is a failure attributed to a single request.
type Error struct {
	Kind      Kind
	RequestID uint64
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("request %d: %s", e.RequestID, e.Kind)
	}
	return fmt.Sprintf("request %d: %s: %v", e.RequestID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInterrupted:
		return e.Kind == KindInterrupted
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrUnknown:
		return e.Kind == KindUnknown
	}
	return false
}

// KindOf classifies err. Errors that are not a *Error are classified by the
// sentinels they wrap, and otherwise as KindUnknown.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	switch {
	case errors.Is(err, ErrInterrupted):
		return KindInterrupted
	case errors.Is(err, ErrRejected):
		return KindRejected
	default:
		return KindUnknown
	}
}

// WrapError attaches requestID to err, preserving an existing kind.
func WrapError(requestID uint64, err error) error {
	if err == nil {
		return nil
	}
	var we *Error
	if errors.As(err, &we) && we.RequestID == requestID {
		return err
	}
	return &Error{Kind: KindOf(err), RequestID: requestID, Err: err}
}
