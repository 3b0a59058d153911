package objectstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key does not exist
	ErrNotFound = errors.New("object not found")

	// ErrStoreUnavailable marks transient faults the caller may retry
	ErrStoreUnavailable = errors.New("object store unavailable")
)

// StoreError wraps a failed store call with the operation and key involved
type StoreError struct {
	Op        string
	Key       string
	Retryable bool
	Err       error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both the underlying cause and, for transient faults,
// ErrStoreUnavailable so errors.Is works against either.
func (e *StoreError) Unwrap() []error {
	if e.Retryable {
		return []error{ErrStoreUnavailable, e.Err}
	}
	return []error{e.Err}
}

// IsNotFound reports whether err represents a missing object
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether err is a transient store fault
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
