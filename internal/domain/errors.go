package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller-side validation. These are checked before any
// network call is made.
var (
	ErrEmptyContent = errors.New("content is empty")
	ErrNotConnected = errors.New("document store is not connected")
)

// ProviderError wraps a failed or malformed embedding provider call. Fatal
// to the current operation; never retried at this layer.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConnectionError wraps a store connectivity failure. Retry policy belongs
// to the caller, not the store.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("document store connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CollectionError wraps a collection lifecycle failure, surfaced verbatim
// from the backing store (e.g. creating a collection that already exists).
type CollectionError struct {
	Collection string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection %q: %v", e.Collection, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// IndexError wraps a vector index lifecycle failure.
type IndexError struct {
	Index string
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("vector index %q: %v", e.Index, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }
