package domain

import "errors"

// Engine failures. They are deterministic validation errors: re-running the same
// input produces the same error, so callers must not retry or substitute a result.
var (
	ErrInsufficientData     = errors.New("insufficient data")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMalformedInput       = errors.New("malformed input")
)

// Signal record store failures.
var (
	ErrRecordNotFound  = errors.New("signal record not found")
	ErrAlreadyResolved = errors.New("signal record already resolved")
)
