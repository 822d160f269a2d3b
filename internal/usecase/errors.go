package usecase

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrorRateLimited  ErrorCode = "RATE_LIMITED"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is the classified failure returned by the use cases. Message is safe
// to show to the caller; Err keeps the underlying cause for logs only.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatus maps the error to the status returned to the caller. Upstream
// errors keep the upstream status when it is an error status.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case ErrorInvalidInput:
		return http.StatusBadRequest
	case ErrorUnauthorized:
		return http.StatusUnauthorized
	case ErrorRateLimited:
		return http.StatusTooManyRequests
	case ErrorUpstream:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func newError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}

// ClassifyStatus maps an upstream HTTP status to an error kind. Zero means no
// status was available (transport failure, malformed body).
func ClassifyStatus(status int) ErrorCode {
	switch status {
	case http.StatusUnauthorized:
		return ErrorUnauthorized
	case http.StatusTooManyRequests:
		return ErrorRateLimited
	default:
		return ErrorUpstream
	}
}
