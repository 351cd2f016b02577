// Package apperr models the booking engine's failures as a tagged variant
// instead of ad hoc string-matched errors. The HTTP layer is the only code
// that maps a Kind to a status code; every other layer propagates the
// error unwrapped.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure. The zero value is Internal, the Kind that
// KindOf reports for errors that carry no Kind of their own.
type Kind int

const (
	Internal Kind = iota
	BadRequest
	Forbidden
	NotFound
	Conflict
	Unavailable
)

// ConflictDetails accompanies a Conflict error when the caller benefits
// from knowing who holds the resource.
type ConflictDetails struct {
	BookedBy  string    `json:"bookedBy,omitempty"`
	ClubName  string    `json:"clubName,omitempty"`
	UserType  string    `json:"userType,omitempty"`
	StartsAt  time.Time `json:"starts_at,omitempty"`
	EndsAt    time.Time `json:"ends_at,omitempty"`
}

// Error is the concrete type carried by every failure the core produces.
type Error struct {
	Kind    Kind
	Message string
	Details *ConflictDetails
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func NewBadRequest(msg string) *Error { return newErr(BadRequest, msg) }
func NewForbidden(msg string) *Error  { return newErr(Forbidden, msg) }
func NewNotFound(msg string) *Error   { return newErr(NotFound, msg) }

// NewConflict builds a Conflict error, optionally carrying details about
// the incumbent booking.
func NewConflict(msg string, details *ConflictDetails) *Error {
	return &Error{Kind: Conflict, Message: msg, Details: details}
}

func NewInternal(msg string, cause error) *Error {
	return &Error{Kind: Internal, Message: msg, cause: cause}
}

func NewUnavailable(msg string, cause error) *Error {
	return &Error{Kind: Unavailable, Message: msg, cause: cause}
}

// KindOf recovers the Kind of err, defaulting to Internal when err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As is a small convenience for handlers that want the full *Error,
// including conflict details.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
