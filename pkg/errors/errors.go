// Package errors defines the error values shared by the search service and
// maps them onto the codes and statuses of the HTTP error envelope.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried in the envelope.
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeRateLimited       = "RATE_LIMITED"
	CodeSearchUnavailable = "SEARCH_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Sentinels. Stores and engines wrap these so callers can branch with
// errors.Is without knowing the backend.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrRateLimited    = errors.New("rate limited")
)

// AppError is an error that already knows its envelope code and status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// NotFound reports a missing resource by kind and id.
func NotFound(resource, id string) *AppError {
	return newAppError(CodeNotFound, http.StatusNotFound,
		fmt.Sprintf("%s with id %s not found", resource, id), ErrNotFound)
}

// InvalidInput reports a malformed request.
func InvalidInput(message string) *AppError {
	return newAppError(CodeInvalidInput, http.StatusBadRequest, message, ErrInvalidInput)
}

// InvalidParameter reports a bad path or query parameter.
func InvalidParameter(name, value string) *AppError {
	return newAppError(CodeInvalidParameter, http.StatusBadRequest,
		fmt.Sprintf("invalid %s: %s", name, value), ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return newAppError(CodeUnauthorized, http.StatusUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return newAppError(CodeForbidden, http.StatusForbidden, message, ErrForbidden)
}

func RateLimited(message string) *AppError {
	return newAppError(CodeRateLimited, http.StatusTooManyRequests, message, ErrRateLimited)
}

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return newAppError(CodeInternal, http.StatusInternalServerError, "an internal error occurred", err)
}

// ServiceUnavailable reports that the search backend cannot serve the
// request. The cause stays reachable through errors.Is.
func ServiceUnavailable(message string, cause error) *AppError {
	err := ErrServiceUnavail
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrServiceUnavail, cause)
	}
	return newAppError(CodeSearchUnavailable, http.StatusServiceUnavailable, message, err)
}

// Classify returns the envelope code, status and client-safe message for
// err. Messages of unexpected errors are never exposed.
func Classify(err error) (code string, status int, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, appErr.Status, appErr.Message
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound, http.StatusNotFound, "resource not found"
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput, http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized, http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return CodeForbidden, http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited, http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, ErrServiceUnavail):
		return CodeSearchUnavailable, http.StatusServiceUnavailable, "search backend unavailable"
	default:
		return CodeInternal, http.StatusInternalServerError, "an internal error occurred"
	}
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	_, status, _ := Classify(err)
	return status
}
