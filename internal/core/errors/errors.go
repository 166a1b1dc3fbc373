// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Record-level ingestion errors. These are recovered locally: the offending
// record is skipped and the ingestion run continues.
var (
	// ErrMalformedRecord indicates a fetched record failed required-field
	// validation or timestamp parsing.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrStaleRecord indicates a news record is older than the cutoff window.
	ErrStaleRecord = errors.New("record older than cutoff")

	// ErrDuplicateRecord indicates the record's natural key is already stored.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrIntegrityViolation indicates a fact row referenced a dimension that
	// does not exist.
	ErrIntegrityViolation = errors.New("referenced dimension does not exist")
)

// Lookup errors.
var (
	// ErrNotFound indicates a row could not be found by its natural key.
	ErrNotFound = errors.New("not found")
)

// Source fetcher errors.
var (
	// ErrEmptyResponse indicates an empty response was received from a source.
	ErrEmptyResponse = errors.New("empty response")

	// ErrNoResults indicates a source returned no usable entries.
	ErrNoResults = errors.New("no results")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
