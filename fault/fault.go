package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide between reporting, retrying
// and escalating without string matching.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindInvalid marks malformed caller input.
	KindInvalid
	KindNotFound
	KindForbidden
	// KindPrecondition marks an operation rejected by the current state of a record.
	KindPrecondition
	// KindConflict marks a lost optimistic-concurrency race. Retry the whole operation.
	KindConflict
	// KindUnavailable marks a transient store failure. Retry the whole operation.
	KindUnavailable
	// KindIntegrity marks corrupt or inconsistent stored data.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindPrecondition:
		return "precondition"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Error is a kinded error. Package-level sentinels are *Error values so that
// errors.Is keeps working through fmt.Errorf("%w") chains.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

// New returns a sentinel of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, reason string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	if e.Reason == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether re-running the whole operation may succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindUnavailable:
		return true
	default:
		return false
	}
}
