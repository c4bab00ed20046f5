// Package errs defines the error-kind taxonomy shared across the detection
// and response pipeline, so callers that need to branch on failure class
// (the control-plane adapter mapping a kind to an HTTP status, for example)
// don't have to parse error strings.
package errs

import "errors"

// Kind classifies a failure the way the pipeline's components need to react
// to it: most kinds are non-fatal to the pipeline as a whole, even when they
// are fatal to the single operation that produced them.
type Kind int

const (
	// Unknown is the zero value; Kind should always be set explicitly.
	Unknown Kind = iota
	// IOUnavailable marks a transient I/O failure; the caller treats the
	// result as "unavailable" and the pipeline keeps running.
	IOUnavailable
	// PersistenceFailure marks a durable-store write that failed; the
	// triggering event is still processed in memory.
	PersistenceFailure
	// ProcessControlFailure marks a failed suspend/terminate/resume call;
	// recorded on the action log, the response cycle continues.
	ProcessControlFailure
	// IntegrityFailure marks a hash mismatch during restore; fatal for
	// that restore, the destination is left untouched.
	IntegrityFailure
	// ValidationFailure marks a rejected request at a boundary (bad PID,
	// bad backup id, unknown restore selector).
	ValidationFailure
)

func (k Kind) String() string {
	switch k {
	case IOUnavailable:
		return "io_unavailable"
	case PersistenceFailure:
		return "persistence_failure"
	case ProcessControlFailure:
		return "process_control_failure"
	case IntegrityFailure:
		return "integrity_failure"
	case ValidationFailure:
		return "validation_failure"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can type-switch
// without string matching.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. If err is nil, New returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, returning Unknown if err does not
// carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
