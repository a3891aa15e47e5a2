// Package apperr classifies domain failures so that callers at the flow
// boundary can decide how to report them and whether a retry makes sense.
package apperr

import "errors"

type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindExternal      Kind = "external_failure"
	KindInconsistency Kind = "internal_inconsistency"
)

// Error is a classified failure with a caller-facing reason.
type Error struct {
	Kind      Kind
	Reason    string
	Retryable bool
}

func (e *Error) Error() string { return e.Reason }

func Validation(reason string) *Error { return &Error{Kind: KindValidation, Reason: reason} }

func NotFound(reason string) *Error { return &Error{Kind: KindNotFound, Reason: reason} }

func Conflict(reason string) *Error { return &Error{Kind: KindConflict, Reason: reason} }

// External failures are retryable unless built with ExternalFinal.
func External(reason string) *Error {
	return &Error{Kind: KindExternal, Reason: reason, Retryable: true}
}

// ExternalFinal is a definitive answer from an outside system that retrying
// will not change, e.g. a declined payment.
func ExternalFinal(reason string) *Error {
	return &Error{Kind: KindExternal, Reason: reason}
}

func Inconsistency(reason string) *Error { return &Error{Kind: KindInconsistency, Reason: reason} }

// RetryableConflict is a conflict that resolves on its own, e.g. a concurrent
// attempt on the same payment reference.
func RetryableConflict(reason string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Retryable: true}
}

// From returns the first classified error in err's chain.
func From(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}

	return nil, false
}

// KindOf returns the kind of err, or "" when err is unclassified.
func KindOf(err error) Kind {
	ae, ok := From(err)
	if !ok {
		return ""
	}

	return ae.Kind
}
