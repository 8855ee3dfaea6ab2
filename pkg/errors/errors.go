// Package errors carries the typed error used across services and handlers.
// Each Code maps to one Class that decides the HTTP status, the public message
// and whether the failure is worth retrying.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeNotConnected  Code = "REMOTE_NOT_CONNECTED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Class describes how a Code surfaces to callers.
type Class struct {
	Status    int
	Retryable bool
	// Public is shown when the error's own message must stay internal.
	Public      string
	ShowMessage bool
	ShowDetails bool
}

var classes = map[Code]Class{
	CodeValidation:    {Status: http.StatusBadRequest, Public: "validation failed", ShowMessage: true, ShowDetails: true},
	CodeUnauthorized:  {Status: http.StatusUnauthorized, Public: "authentication required", ShowMessage: true},
	CodeForbidden:     {Status: http.StatusForbidden, Public: "access denied", ShowMessage: true},
	CodeNotFound:      {Status: http.StatusNotFound, Public: "resource not found", ShowMessage: true},
	CodeConflict:      {Status: http.StatusConflict, Public: "conflict detected", ShowMessage: true},
	CodeStateConflict: {Status: http.StatusUnprocessableEntity, Public: "state transition disallowed", ShowMessage: true, ShowDetails: true},
	CodeNotConnected:  {Status: http.StatusPreconditionFailed, Public: "inventory account not connected", ShowMessage: true},
	CodeRateLimit:     {Status: http.StatusTooManyRequests, Public: "rate limit exceeded", Retryable: true, ShowMessage: true},
	CodeInternal:      {Status: http.StatusInternalServerError, Public: "internal server error", Retryable: true},
	CodeDependency:    {Status: http.StatusServiceUnavailable, Public: "dependency unavailable", Retryable: true, ShowDetails: true},
}

// ClassOf returns the class for code; unknown codes are treated as internal.
func ClassOf(code Code) Class {
	if class, ok := classes[code]; ok {
		return class
	}
	return classes[CodeInternal]
}

// Error is a coded error with an optional cause and public details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets the payload returned to callers when the class allows it.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.message == "" {
		return string(e.code)
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether the failure is worth another attempt on the next
// scheduled run. Untyped errors are not.
func IsRetryable(err error) bool {
	typed := As(err)
	return typed != nil && ClassOf(typed.code).Retryable
}
