// Package models holds the shared domain types for streamgate.
package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a stream error for HTTP translation and status reporting.
type ErrorKind string

// Error kinds surfaced on session records and HTTP responses.
const (
	KindBadRequest          ErrorKind = "BadRequest"
	KindNotFound            ErrorKind = "NotFound"
	KindStorageError        ErrorKind = "StorageError"
	KindNoPlayableFile      ErrorKind = "NoPlayableFile"
	KindExternalToolMissing ErrorKind = "ExternalToolMissing"
	KindExternalToolFailed  ErrorKind = "ExternalToolFailed"
	KindTranscoderError     ErrorKind = "TranscoderError"
	KindTorrentError        ErrorKind = "TorrentError"
	KindOutOfRange          ErrorKind = "OutOfRange"
	KindAccessDenied        ErrorKind = "AccessDenied"
)

// StreamError is a session-scoped error with a classification kind.
// Once recorded on a session it is terminal for that session.
type StreamError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// NewStreamError creates a StreamError with the given kind and message.
func NewStreamError(kind ErrorKind, message string) *StreamError {
	return &StreamError{Kind: kind, Message: message}
}

// WrapStreamError creates a StreamError wrapping an underlying cause.
func WrapStreamError(kind ErrorKind, err error) *StreamError {
	if err == nil {
		return nil
	}
	return &StreamError{Kind: kind, Message: err.Error(), cause: err}
}

// Error implements the error interface as "<kind>: <message>".
func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StreamError) Unwrap() error {
	return e.cause
}

// Common sentinel errors.
var (
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTransition indicates a disallowed session state change.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNoSourceFile indicates the session has no resolved source yet.
	ErrNoSourceFile = errors.New("source file not resolved")
)
