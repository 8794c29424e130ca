package user

import (
	"fmt"
	"net/http"
)

// DomainError is a structured, self-describing domain error used across the user module.
// It carries HTTP/RFC7807-friendly metadata so a shared formatter can convert any domain
// error into a Problem response without enumerating error types.
type DomainError struct {
	// Code is a stable, machine-readable business code (e.g., "ErrInvalidOrExpiredToken").
	Code string

	// HTTPStatus is the HTTP status suggested for this error.
	HTTPStatus int

	// Title is a short human summary; if empty the formatter defaults to StatusText(HTTPStatus).
	Title string

	// Message is the public detail unless Detail is set.
	Message string

	// Detail is a user-friendly, safe explanation for clients.
	Detail string

	// TypeURI is an RFC7807 type URI, e.g. "urn:problem:user/err-invalid-credentials".
	TypeURI string

	// Context is an optional extension payload for clients.
	Context any

	// cause is kept for logs and never rendered to clients.
	cause error
}

func (e *DomainError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is compares by Code so copies made with WithCause still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e wrapping err.
func (e *DomainError) WithCause(err error) *DomainError {
	if err == nil {
		return e
	}
	cp := *e
	cp.cause = err
	return &cp
}

// WithDetail sets a public-friendly detail message for clients.
func (e *DomainError) WithDetail(detail string) *DomainError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// --- RFC7807 mapping accessors (satisfy httpx.DomainProblem) ---

func (e *DomainError) ProblemCode() string { return e.Code }

func (e *DomainError) ProblemStatus() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

func (e *DomainError) ProblemTitle() string { return e.Title }

func (e *DomainError) ProblemDetail() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

func (e *DomainError) ProblemTypeURI() string { return e.TypeURI }
func (e *DomainError) ProblemContext() any    { return e.Context }

// --- Pre-defined Domain Errors ---

var (
	ErrInvalidCredentials = &DomainError{
		Code:       "ErrInvalidCredentials",
		HTTPStatus: http.StatusUnauthorized,
		Title:      "Unauthorized",
		Message:    "The email, password or phone number is incorrect.",
		TypeURI:    "urn:problem:user/err-invalid-credentials",
	}

	// ErrInvalidOrExpiredToken covers every code and token rejection, including
	// codes that were already used.
	ErrInvalidOrExpiredToken = &DomainError{
		Code:       "ErrInvalidOrExpiredToken",
		HTTPStatus: http.StatusBadRequest,
		Title:      "Bad Request",
		Message:    "The code or link is invalid or has expired.",
		TypeURI:    "urn:problem:user/err-invalid-or-expired-token",
	}

	ErrServiceUnavailable = &DomainError{
		Code:       "ErrServiceUnavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Title:      "Service Unavailable",
		Message:    "The service is temporarily unavailable. Please try again.",
		TypeURI:    "urn:problem:user/err-service-unavailable",
	}

	ErrUnauthorized = &DomainError{
		Code:       "ErrUnauthorized",
		HTTPStatus: http.StatusUnauthorized,
		Title:      "Unauthorized",
		Message:    "Please sign in to continue.",
		TypeURI:    "urn:problem:user/err-unauthorized",
	}

	ErrForbidden = &DomainError{
		Code:       "ErrForbidden",
		HTTPStatus: http.StatusForbidden,
		Title:      "Forbidden",
		Message:    "You do not have access to this resource.",
		TypeURI:    "urn:problem:user/err-forbidden",
	}

	ErrEmailExists = &DomainError{
		Code:       "ErrEmailExists",
		HTTPStatus: http.StatusConflict,
		Title:      "Conflict",
		Message:    "An account with this email already exists.",
		TypeURI:    "urn:problem:user/err-email-exists",
	}

	ErrResendTooSoon = &DomainError{
		Code:       "ErrResendTooSoon",
		HTTPStatus: http.StatusTooManyRequests,
		Title:      "Too Many Requests",
		Message:    "Please wait before requesting another code.",
		TypeURI:    "urn:problem:user/err-resend-too-soon",
	}

	ErrNotFound = &DomainError{
		Code:       "ErrNotFound",
		HTTPStatus: http.StatusNotFound,
		Title:      "Not Found",
		Message:    "User not found.",
		TypeURI:    "urn:problem:user/err-not-found",
	}

	ErrInternal = &DomainError{
		Code:       "ErrInternal",
		HTTPStatus: http.StatusInternalServerError,
		Title:      "Internal Server Error",
		Message:    "Something went wrong. Please try again later.",
		TypeURI:    "urn:problem:user/err-internal",
	}
)
