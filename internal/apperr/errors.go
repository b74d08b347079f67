// Package apperr defines the structured failures surfaced by the booking core.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindSlotUnavailable   Kind = "slot_unavailable"
	KindInvalidTransition Kind = "invalid_transition"
	KindMissingReason     Kind = "missing_reason"
	KindConflict          Kind = "conflict"
	KindForbidden         Kind = "forbidden"
)

// Error carries a machine readable kind and a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrSlotUnavailable   = &Error{Kind: KindSlotUnavailable, Message: "this time was just booked by someone else"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrMissingReason     = &Error{Kind: KindMissingReason, Message: "a reason is required to cancel or reject"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "not allowed for this caller"}
)

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return New(KindConflict, format, args...)
}

func Forbidden(format string, args ...any) error {
	return New(KindForbidden, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the human readable part of err for API responses.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
