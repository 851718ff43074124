// Package apperr defines the error kinds surfaced by the dispatch core.
//
// Every failure the core reports carries a stable Kind and a human-readable
// reason. Callers branch on the kind with errors.Is against the sentinel
// values, e.g. errors.Is(err, apperr.ErrConflict).
package apperr

import "errors"

type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindBadRequest   Kind = "bad_request"
)

type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Is matches any *Error of the same kind, so sentinels compare by kind only.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound, Reason: "not found"}
	ErrConflict     = &Error{Kind: KindConflict, Reason: "conflict"}
	ErrForbidden    = &Error{Kind: KindForbidden, Reason: "forbidden"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Reason: "unauthorized"}
	ErrBadRequest   = &Error{Kind: KindBadRequest, Reason: "bad request"}
)

func NotFound(reason string) error     { return &Error{Kind: KindNotFound, Reason: reason} }
func Conflict(reason string) error     { return &Error{Kind: KindConflict, Reason: reason} }
func Forbidden(reason string) error    { return &Error{Kind: KindForbidden, Reason: reason} }
func Unauthorized(reason string) error { return &Error{Kind: KindUnauthorized, Reason: reason} }
func BadRequest(reason string) error   { return &Error{Kind: KindBadRequest, Reason: reason} }

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
