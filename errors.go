package ptrc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned by operations that require a running
	// session, when no session is running.
	ErrInvalidState = errors.New("no session running")

	// ErrDuplicateKey is returned when adding a metadata key that already
	// exists in the current session.
	ErrDuplicateKey = errors.New("duplicate metadata key")

	// ErrPoolExhausted is returned when every handle of a kind is in use.
	ErrPoolExhausted = errors.New("handle pool exhausted")

	// ErrNotSupported is returned by Flush and friends when the active sink
	// can't serialize to a stream.
	ErrNotSupported = errors.New("sink does not support stream serialization")

	// ErrNotWritable is returned when the flush destination rejects writes.
	ErrNotWritable = errors.New("destination not writable")
)

// PoolExhaustedError describes a failed handle acquisition. It matches
// [ErrPoolExhausted] via errors.Is.
type PoolExhaustedError struct {
	Kind     Kind
	Capacity int
}

// Error implements the error interface.
func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("%s pool exhausted (capacity %d), consider raising Options.PoolSizes[%s]", e.Kind, e.Capacity, e.Kind)
}

// Unwrap returns ErrPoolExhausted.
func (e *PoolExhaustedError) Unwrap() error {
	return ErrPoolExhausted
}
