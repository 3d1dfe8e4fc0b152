package contracts

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure classes the core distinguishes. Callers
// inspect the kind to decide skip-vs-abort instead of swallowing
// failures for control flow.
type Kind string

const (
	// KindDataUnavailable: empty or missing series/fundamentals.
	// Recovered locally by skipping the symbol.
	KindDataUnavailable Kind = "data_unavailable"

	// KindInsufficientHistory: fewer bars than a component's minimum.
	// Signal generation returns empty, not an error.
	KindInsufficientHistory Kind = "insufficient_history"

	// KindConnectionFailure: external collaborator unreachable after
	// bounded retries. The cycle for that symbol is skipped.
	KindConnectionFailure Kind = "connection_failure"

	// KindConfigError: malformed or missing required parameter. Fatal
	// at construction time.
	KindConfigError Kind = "config_error"

	// KindComputationError: indicator needs more history or received
	// non-finite inputs. Produces an absent value, never propagates.
	KindComputationError Kind = "computation_error"
)

// Error carries a failure kind plus the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and operation name.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
