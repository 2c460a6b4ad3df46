// Package errors provides error handling for loreweave.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Typed sentinels with errors.Is/Mark for the resolution taxonomy
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Tag a throttling response so the rate limiter retries it
//	return errors.Mark(err, errors.ErrThrottled)
//
//	// Check errors
//	if errors.Is(err, errors.ErrThrottled) {
//	    // back off and retry
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New           = crdb.New
	Newf          = crdb.Newf
	Wrap          = crdb.Wrap
	Wrapf         = crdb.Wrapf
	WithStack     = crdb.WithStack
	WithMessage   = crdb.WithMessage
	WithMessagef  = crdb.WithMessagef
	Mark          = crdb.Mark
	Join          = crdb.Join
	CombineErrors = crdb.CombineErrors
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is         = crdb.Is
	IsAny      = crdb.IsAny
	As         = crdb.As
	Unwrap     = crdb.Unwrap
	UnwrapOnce = crdb.UnwrapOnce
	UnwrapAll  = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the resolution error taxonomy.
// Tag upstream failures with errors.Mark() so callers can dispatch with
// errors.Is() without string matching.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrThrottled indicates the upstream endpoint signalled "too many
	// requests"; the rate limiter backs off and retries the same call
	ErrThrottled = New("throttled")

	// ErrTimeout indicates an outbound call timed out; resolvers treat
	// this as a transient failure and advance the cascade
	ErrTimeout = New("operation timed out")

	// ErrMalformed indicates an upstream response could not be decoded;
	// treated as "not found" for the attempting stage
	ErrMalformed = New("malformed response")

	// ErrServiceUnavailable indicates a source-wide outage
	ErrServiceUnavailable = New("service unavailable")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// IsThrottled reports whether err is or wraps ErrThrottled.
func IsThrottled(err error) bool {
	return err != nil && Is(err, ErrThrottled)
}

// IsTransient reports whether err is a transient network-class failure
// that should advance the cascade rather than abort it.
func IsTransient(err error) bool {
	return err != nil && IsAny(err, ErrTimeout, ErrServiceUnavailable)
}
