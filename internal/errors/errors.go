// Package errors provides error handling for quarry.
//
// This package re-exports github.com/cockroachdb/errors so that every
// package wraps, annotates and inspects errors the same way:
//
//	if err := reg.Register(spec); err != nil {
//	    return errors.Wrapf(err, "register %s", spec.Domain)
//	}
//
//	if errors.Is(err, errors.ErrNotFound) {
//	    // empty dataset under error-on-empty policy
//	}
//
// The sentinels below classify failures. Wrap them to add context while
// keeping them detectable with Is.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinels shared across packages.
var (
	// ErrNotFound marks an empty dataset when the criteria demands results.
	ErrNotFound = New("not found")

	// ErrInvalidRequest marks malformed caller input (bad limit, unknown input type).
	ErrInvalidRequest = New("invalid request")

	// ErrInvalidDomain marks a domain name without a feature/global separator.
	ErrInvalidDomain = New("invalid domain name")

	// ErrInvalidCriteria marks a criteria that cannot be executed.
	ErrInvalidCriteria = New("invalid criteria")

	// ErrUnknownEntity marks a domain with no registered storage map.
	ErrUnknownEntity = New("entity not registered")

	// ErrUnknownAttribute marks a domain attribute with no mapping entry.
	ErrUnknownAttribute = New("attribute not registered")

	// ErrCrossRoot marks an attempt to resolve a storage map owned by another application root.
	ErrCrossRoot = New("storage map belongs to a different application root")

	// ErrRegistrySealed marks registration after the boot phase ended.
	ErrRegistrySealed = New("mapping registry is sealed")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest.
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message.
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}
