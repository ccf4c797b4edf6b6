package task

import "fmt"

// JoinKind distinguishes why a task did not produce a value.
type JoinKind uint8

const (
	// Cancelled means the task was shut down before it completed.
	Cancelled JoinKind = iota + 1
	// Panic means the task's future panicked while being polled.
	Panic
)

func (k JoinKind) String() string {
	switch k {
	case Cancelled:
		return "cancelled"
	case Panic:
		return "panic"
	default:
		return "unknown"
	}
}

// JoinError is returned in place of a task's output when it did not
// complete normally. Its Kind distinguishes cancellation from panic;
// for a panic, Payload returns whatever value was passed to panic().
type JoinError struct {
	kind    JoinKind
	payload any
}

// NewCancelledError builds a JoinError describing a cancelled task.
func NewCancelledError() *JoinError {
	return &JoinError{kind: Cancelled}
}

// NewPanicError builds a JoinError wrapping a recovered panic value.
func NewPanicError(payload any) *JoinError {
	return &JoinError{kind: Panic, payload: payload}
}

// Kind reports whether this is a cancellation or a panic.
func (e *JoinError) Kind() JoinKind { return e.kind }

// Payload returns the recovered panic value, or nil for a
// cancellation.
func (e *JoinError) Payload() any { return e.payload }

// Error implements the error interface.
func (e *JoinError) Error() string {
	switch e.kind {
	case Cancelled:
		return "task: cancelled"
	case Panic:
		return fmt.Sprintf("task: panic: %v", e.payload)
	default:
		return "task: join error"
	}
}

// Unwrap lets errors.Is/errors.As see through to a panic payload that
// is itself an error — mirroring how a task recovering a wrapped
// error should let callers match against it.
func (e *JoinError) Unwrap() error {
	if err, ok := e.payload.(error); ok {
		return err
	}
	return nil
}

// Is reports whether target is a payload-free *JoinError of the same
// Kind, such as ErrCancelled or ErrPanic, so errors.Is(err,
// task.ErrCancelled) works; this error's own payload is ignored, but
// a target that carries a payload never matches.
func (e *JoinError) Is(target error) bool {
	other, ok := target.(*JoinError)
	if !ok {
		return false
	}
	return other.payload == nil && other.kind == e.kind
}

// ErrCancelled and ErrPanic are sentinel *JoinError values usable with
// errors.Is(err, task.ErrCancelled).
var (
	ErrCancelled = &JoinError{kind: Cancelled}
	ErrPanic     = &JoinError{kind: Panic}
)
