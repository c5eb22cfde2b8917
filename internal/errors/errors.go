// Package errors defines the coded error taxonomy shared by the service layer.
// Every client-visible rejection carries a machine-readable code so callers can
// distinguish authorization failures from validation failures from rule
// conflicts without parsing message text.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class.
type Code string

const (
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeValidation        Code = "VALIDATION"
	CodeBoundaryViolation Code = "BOUNDARY_VIOLATION"
	CodePolicyStamp       Code = "POLICY_STAMP"
	CodeRuleConflict      Code = "RULE_CONFLICT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInternal          Code = "INTERNAL"
)

// Error is a coded error with an HTTP status mapping and optional field detail.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// WithField records field-level detail for validation responses.
func (e *Error) WithField(field, detail string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = detail
	return e
}

// HTTPStatus maps the error code to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation, CodeBoundaryViolation, CodePolicyStamp:
		return http.StatusBadRequest
	case CodeRuleConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized indicates a missing or insufficient identity.
func Unauthorized(format string, args ...any) *Error {
	return newError(CodeUnauthorized, format, args...)
}

// Forbidden indicates an authenticated actor lacking the required authority.
func Forbidden(format string, args ...any) *Error {
	return newError(CodeForbidden, format, args...)
}

// Validation indicates a malformed request or missing required fields.
func Validation(format string, args ...any) *Error {
	return newError(CodeValidation, format, args...)
}

// BoundaryViolation indicates recommendation or work-order content smuggled
// into the ingestion path. It is a validation error to the client but logged
// distinctly because it signals a client bug or a policy-evasion attempt.
func BoundaryViolation(format string, args ...any) *Error {
	return newError(CodeBoundaryViolation, format, args...)
}

// PolicyStamp indicates an advisory missing or failing its authenticity stamp.
func PolicyStamp(format string, args ...any) *Error {
	return newError(CodePolicyStamp, format, args...)
}

// RuleConflict indicates the rule engine demands compliance but the caller's
// disposition disagrees.
func RuleConflict(format string, args ...any) *Error {
	return newError(CodeRuleConflict, format, args...)
}

// NotFound indicates a missing resource.
func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

// Internal indicates an unexpected server-side failure.
func Internal(format string, args ...any) *Error {
	return newError(CodeInternal, format, args...)
}

// CodeOf extracts the code from an error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// StatusOf extracts the HTTP status from an error, defaulting to 500.
func StatusOf(err error) int {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
