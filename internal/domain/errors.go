package domain

import "fmt"

// ValidationError rejects bad operator input before any state mutation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConsistencyError marks data-integrity problems inside historical records,
// such as a match referencing member ids that no longer resolve. Replay
// logs these and skips the record instead of failing.
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string { return e.Msg }

func Consistencyf(format string, args ...any) error {
	return &ConsistencyError{Msg: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps store read/write failures. In-memory state is
// retained by the caller so the operation can be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
