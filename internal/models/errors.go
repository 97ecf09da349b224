package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicate marks an identity key that is already persisted. A
	// normal outcome, counted separately, never logged as a failure.
	ErrDuplicate = errors.New("document already ingested")

	// ErrStoreUnavailable means the persistence backend cannot be
	// reached at all. Fatal: it aborts the whole run.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("document not found")
)

// FetchError reports a retrieval that failed after all allowed attempts,
// or a non-retryable client rejection.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempt(s)", e.URL, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError reports a document that could not be turned into pages.
type ExtractionError struct {
	Key    string
	Type   ContentType
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %s", e.Key, e.Type, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
