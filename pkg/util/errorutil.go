package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes exposed to the request layer.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_FAILED"
	CodeConflict     = "CONFLICT"
	CodeUnavailable  = "UNAVAILABLE"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError reports a malformed field. The field name is always
// carried in Details so clients can point at it.
func NewValidationError(field, message string) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, map[string]any{"field": field})
}

// NewNotFound is returned both for absent resources and for resources outside
// the caller's visibility. Details are deliberately left empty.
func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewUnavailable wraps a backing store failure.
func NewUnavailable(err error) error {
	return &DomainError{
		Code:       CodeUnavailable,
		Message:    "backing store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// KindOf returns the error code, or "" for nil.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

func IsNotFound(err error) bool    { return KindOf(err) == CodeNotFound }
func IsForbidden(err error) bool   { return KindOf(err) == CodeForbidden }
func IsValidation(err error) bool  { return KindOf(err) == CodeValidation }
func IsConflict(err error) bool    { return KindOf(err) == CodeConflict }
func IsUnavailable(err error) bool { return KindOf(err) == CodeUnavailable }

// FieldOf returns the offending field of a validation error.
func FieldOf(err error) string {
	de := ToDomainError(err)
	if de == nil || de.Details == nil {
		return ""
	}
	field, _ := de.Details["field"].(string)
	return field
}
