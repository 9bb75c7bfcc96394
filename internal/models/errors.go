package models

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("book not found")

	// ErrSuperseded is returned by a load whose result was discarded because a newer load started.
	ErrSuperseded = errors.New("load superseded by a newer request")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("collection store is closed")
)

// FetchError is a failed read: transport failure, non-2xx status or malformed JSON.
type FetchError struct {
	Op     string // e.g. "list books"
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s failed (status %d): %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s failed (status %d)", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	default:
		return e.Op + " failed"
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MutationError is a failed create or delete. Message is the server-provided
// text when there was one, and is what the user sees.
type MutationError struct {
	Op      string // "upload" or "delete"
	Status  int
	Message string
	Err     error
}

func (e *MutationError) Error() string {
	return e.Message
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// ValidationError is a client-side input error raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
