// Package errors provides centralized error definitions for the application.
//
// Naming conventions:
//   - Exported errors (Err*): for callers that check with errors.Is
//   - Sentinel errors are variables, never inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinels with context
package errors

import "errors"

// Ingest and fetch errors.
var (
	// ErrDuplicate indicates a raw signal with the same content hash already
	// exists. Counted, not treated as a failure.
	ErrDuplicate = errors.New("duplicate content hash")

	// ErrNotImplemented indicates no connector can handle a source config.
	ErrNotImplemented = errors.New("no connector for source")
)

// LLM errors.
var (
	// ErrRateLimited indicates the LLM provider returned a rate limit error.
	ErrRateLimited = errors.New("llm rate limited")

	// ErrValidation indicates the LLM response failed shape validation.
	ErrValidation = errors.New("llm response validation failed")

	// ErrBadJSON indicates the LLM response was not parseable JSON at all.
	ErrBadJSON = errors.New("llm response is not valid json")
)

// Storage errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")

	// ErrUniqueViolation indicates an insert hit a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// API errors.
var (
	// ErrBadCursor indicates a feed cursor could not be decoded.
	ErrBadCursor = errors.New("malformed cursor")
)
