// Package errors provides error handling for composels.
//
// It re-exports github.com/cockroachdb/errors so every package creates,
// wraps and inspects errors the same way, and defines the sentinels the
// language server and the registry client share.
//
//	if err := hub.Search(ctx, q); err != nil {
//	    return errors.Wrapf(err, "image search for %q", q)
//	}
//
//	if errors.Is(err, errors.ErrServiceUnavailable) {
//	    // registry is down, offer nothing
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithStack   = crdb.WithStack
	WithMessage = crdb.WithMessage
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Inspection
var (
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Sentinels. Wrap them to add context; test with errors.Is.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates malformed input from a client or the user
	ErrInvalidRequest = New("invalid request")

	// ErrServiceUnavailable indicates a remote service (the image registry) failed
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation ran out of time or was cancelled
	ErrTimeout = New("operation timed out")
)

// IsServiceUnavailableError reports whether err is or wraps ErrServiceUnavailable.
func IsServiceUnavailableError(err error) bool {
	return err != nil && Is(err, ErrServiceUnavailable)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message.
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewServiceUnavailableError creates a service-unavailable error with a formatted message.
func NewServiceUnavailableError(format string, args ...interface{}) error {
	return Wrap(ErrServiceUnavailable, Newf(format, args...).Error())
}
