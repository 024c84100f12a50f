// Package fault classifies failures from external collaborators so the
// scheduler can apply one skip-and-continue policy.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an operation.
type Kind int

const (
	Unknown Kind = iota
	TransientIO
	Persistence
	MalformedSnapshot
	InsufficientHistory
)

func (k Kind) String() string {
	switch k {
	case TransientIO:
		return "transient-io"
	case Persistence:
		return "persistence"
	case MalformedSnapshot:
		return "malformed-snapshot"
	case InsufficientHistory:
		return "insufficient-history"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IO is shorthand for New(TransientIO, ...).
func IO(op string, err error) error { return New(TransientIO, op, err) }

// KindOf returns the kind of the first fault.Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
