package services

import (
	"errors"

	"github.com/Ansab-Sultan/DocQuery-AI/internal/ai"
)

// Pipeline errors. Handlers map these onto HTTP codes: validation and state
// errors are client errors with specific messages; everything else is a
// server error with a generic message (full detail is logged server-side
// only).
var (
	// Validation errors
	ErrEmptyDocumentSet  = errors.New("no documents provided")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyQuestion     = errors.New("question must not be empty")

	// Extraction / indexing errors
	ErrExtractionFailed  = errors.New("no text could be extracted from the provided documents")
	ErrDimensionMismatch = errors.New("chunks and vectors do not correspond")
	ErrEmptyIndex        = errors.New("vector index is empty")

	// State errors
	ErrNoActiveSession   = errors.New("no documents have been processed yet")
	ErrSessionRebuilding = errors.New("document processing is in progress")
	ErrSessionReplaced   = errors.New("session was replaced by a newer document set")

	// Stage failures wrapping an underlying model error
	ErrRewriteFailed   = errors.New("query rewriting failed")
	ErrSynthesisFailed = errors.New("answer synthesis failed")
)

// IsValidationError reports whether err should surface as a client-input error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyDocumentSet) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptyQuestion) ||
		errors.Is(err, ErrExtractionFailed)
}

// IsStateError reports whether err is a session-state error.
func IsStateError(err error) bool {
	return errors.Is(err, ErrNoActiveSession) ||
		errors.Is(err, ErrSessionRebuilding) ||
		errors.Is(err, ErrSessionReplaced)
}

// IsExternalError reports whether err originates from the AI provider.
func IsExternalError(err error) bool {
	return errors.Is(err, ai.ErrServiceUnavailable)
}
