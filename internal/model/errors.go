package model

import (
	"errors"
	"fmt"
)

// ErrorKind tags a domain error so callers can distinguish "do not retry"
// conditions from transient ones without inspecting error text.
type ErrorKind string

const (
	// KindInvalidCurrency covers malformed and excluded currency codes.
	KindInvalidCurrency ErrorKind = "INVALID_CURRENCY"
	// KindInvalidAmount covers non-positive or unparseable amounts.
	KindInvalidAmount ErrorKind = "INVALID_AMOUNT"
	// KindRateUnavailable means the provider returned no data for the request.
	KindRateUnavailable ErrorKind = "RATE_UNAVAILABLE"
	// KindTransientUpstream covers timeouts, connection failures and 5xx
	// responses. Eligible for retry and counted by the circuit breaker.
	KindTransientUpstream ErrorKind = "TRANSIENT_UPSTREAM"
	// KindCircuitOpen is the fail-fast short-circuit while a provider's
	// breaker is open. Distinct from a live upstream failure.
	KindCircuitOpen ErrorKind = "CIRCUIT_OPEN"
	// KindUnknownProvider is a configuration error, fatal at startup.
	KindUnknownProvider ErrorKind = "UNKNOWN_PROVIDER"
)

// Error is the typed domain error carried across the core.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed error with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying cause.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the error kind, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsTransient reports whether err is eligible for retry. Circuit-open
// failures are not transient: retrying them would defeat the breaker.
func IsTransient(err error) bool {
	return IsKind(err, KindTransientUpstream)
}
