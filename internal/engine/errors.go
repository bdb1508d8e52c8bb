package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound marks storage lookups that matched nothing.
var ErrNotFound = errors.New("memory not found")

// ValidationError reports rejected input. Raised before any decay or dedup
// logic runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateError is raised under the REJECT resolution strategy when a save
// collides with an existing record.
type DuplicateError struct {
	ExistingID string
	Similarity float64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of memory %s", e.ExistingID)
}

// ImmutableRecordError is raised when an update targets an immutable record.
type ImmutableRecordError struct {
	ID string
}

func (e *ImmutableRecordError) Error() string {
	return fmt.Sprintf("memory %s is immutable", e.ID)
}

// StorageError wraps a failure from the persistence layer. Never retried here;
// propagated unchanged to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
