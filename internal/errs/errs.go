/*
Package errs defines the error taxonomy shared by kimo components.

None of these errors are meant to reach the user: every component boundary
catches them and degrades (plain result order, no cache, truncated summary).
*/
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable means the local store could not be opened or has
	// been disabled. History and cache become no-ops.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrModelUnavailable means a summarization backend cannot serve requests.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInvalidInput rejects malformed input immediately, without retry.
	ErrInvalidInput = errors.New("invalid input")
)

// HistoryReadError is a transient failure reading the interaction log.
type HistoryReadError struct {
	Op  string
	Err error
}

func (e *HistoryReadError) Error() string {
	return fmt.Sprintf("history read failed (%s): %v", e.Op, e.Err)
}

func (e *HistoryReadError) Unwrap() error {
	return e.Err
}

// SummarizerInitError reports that a summarization model failed to initialize.
type SummarizerInitError struct {
	Backend string
	Err     error
}

func (e *SummarizerInitError) Error() string {
	return fmt.Sprintf("summarizer init failed (%s): %v", e.Backend, e.Err)
}

// Unwrap exposes both the cause and ErrModelUnavailable to errors.Is.
func (e *SummarizerInitError) Unwrap() []error {
	return []error{ErrModelUnavailable, e.Err}
}

// Invalid wraps ErrInvalidInput with a description of what was wrong.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
