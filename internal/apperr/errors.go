// Package apperr holds the error kinds shared by the storefront packages.
// Transport layers (HTTP, gRPC) translate a Kind into their own status codes.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindAuth                Kind = "auth_error"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindPaymentNotConfirmed Kind = "payment_not_confirmed"
	KindProductNotFound     Kind = "product_not_found"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindGatewayUnavailable  Kind = "gateway_unavailable"
	KindPersistence         Kind = "persistence_error"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrInsufficientStock) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrAuth                = &Error{Kind: KindAuth}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrPaymentNotConfirmed = &Error{Kind: KindPaymentNotConfirmed}
	ErrProductNotFound     = &Error{Kind: KindProductNotFound}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrGatewayUnavailable  = &Error{Kind: KindGatewayUnavailable}
	ErrPersistence         = &Error{Kind: KindPersistence}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }

func Auth(msg string) *Error { return New(KindAuth, "%s", msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, "%s", msg) }

func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

func Conflict(format string, args ...any) *Error { return New(KindConflict, format, args...) }

func Persistence(err error, msg string) *Error { return Wrap(KindPersistence, err, msg) }

func Gateway(err error, msg string) *Error { return Wrap(KindGatewayUnavailable, err, msg) }

// KindOf reports the kind of err. Errors that carry no kind are treated as
// persistence failures: they are never shown to callers verbatim.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// Message returns the caller-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindPersistence {
		return e.Msg
	}
	return "an internal error occurred, please try again"
}
