// Package corevcs is the repository root package: shared error taxonomy and
// the small values shared by the layers that import it (blobstore, manifest,
// crosslink, checkin, workdir).
package corevcs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error the way §7 classifies failures: a taxonomy, not a
// set of Go types. Callers branch on Kind via Is, never on error strings.
type Kind int

const (
	// Usage marks a malformed invocation; the operation aborts and the
	// caller should print a help hint.
	Usage Kind = iota
	// NotFound marks an artifact, path, or symbolic name that does not
	// resolve.
	NotFound
	// Ambiguous marks a hash prefix that matches more than one artifact.
	Ambiguous
	// Conflict marks a failed pre-commit guard or a selection that breaks
	// an invariant (fork, closed leaf, empty commit, split rename pair).
	Conflict
	// Integrity marks a checksum or self-check failure. Always fatal.
	Integrity
	// IO marks a filesystem or database error propagated from the host.
	IO
	// Interrupted marks a signal received during a sleep or a prompt.
	Interrupted
)

func (k Kind) String() string {
	switch k {
	case Usage:
		return "usage"
	case NotFound:
		return "not-found"
	case Ambiguous:
		return "ambiguous"
	case Conflict:
		return "conflict"
	case Integrity:
		return "integrity"
	case IO:
		return "io"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error is the single error type shared across packages, carrying a Kind and
// the operation name that raised it. Callers unwrap with errors.As/errors.Is.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Newf builds an *Error, wrapping an underlying cause.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap builds an *Error around an existing error without reformatting it.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given Kind, anywhere in its
// wrap chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it (or something it wraps) is a *Error,
// and ok=false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
