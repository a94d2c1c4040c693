// Package apierrors provides the console's unified error taxonomy.
//
// Per the error handling design, every failure surfaced across component
// boundaries collapses into one of four categories: BadRequest (caller-visible
// precondition failure), UpstreamError (an external dependency failed),
// NotConfigured (a dependency is intentionally disabled -- never raised as an
// error, only recorded as a delivery reason), and Internal (everything else).
// A fifth code, RateLimited (429), is used only by the HTTP API's
// per-client rate limiter.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode names one of the console error categories.
type ErrorCode string

const (
	// CodeBadRequest marks a caller-visible precondition failure: unknown
	// execution id, invalid recipient, empty upload, threshold parse
	// failure, unconfigured endpoint.
	CodeBadRequest ErrorCode = "BAD_REQUEST"
	// CodeUpstreamError marks a failed external dependency call: metrics
	// fetch, chat call, action simulator call.
	CodeUpstreamError ErrorCode = "UPSTREAM_ERROR"
	// CodeNotConfigured marks a dependency that is intentionally disabled.
	// It is never returned as an error from a handler; it is only used to
	// tag a "missing" reason inside a delivery report.
	CodeNotConfigured ErrorCode = "NOT_CONFIGURED"
	// CodeInternal is everything else.
	CodeInternal ErrorCode = "INTERNAL"
	// CodeRateLimited marks a caller that exceeded the per-client request
	// budget on the HTTP API.
	CodeRateLimited ErrorCode = "RATE_LIMITED"
)

// ServiceError is a structured error carrying an HTTP mapping and optional
// details. Handlers type-assert through apierrors.AsServiceError instead of
// switching on concrete error types.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a detail key/value pair and returns the receiver.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func httpStatusFor(code ErrorCode) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUpstreamError:
		return http.StatusBadGateway
	case CodeNotConfigured:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// New creates a ServiceError with the standard HTTP mapping for code.
func New(code ErrorCode, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatusFor(code)}
}

// Wrap creates a ServiceError carrying the causing error.
func Wrap(code ErrorCode, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatusFor(code), Err: err}
}

// BadRequest builds a CodeBadRequest error.
func BadRequest(message string) *ServiceError {
	return New(CodeBadRequest, message)
}

// BadRequestf builds a CodeBadRequest error with a formatted message.
func BadRequestf(format string, args ...interface{}) *ServiceError {
	return New(CodeBadRequest, fmt.Sprintf(format, args...))
}

// Upstream builds a CodeUpstreamError error wrapping the transport/parse failure.
func Upstream(dependency string, err error) *ServiceError {
	return Wrap(CodeUpstreamError, fmt.Sprintf("%s request failed", dependency), err).
		WithDetails("dependency", dependency)
}

// Internal builds a CodeInternal error wrapping an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return Wrap(CodeInternal, message, err)
}

// NotFoundRecipient is the one spot the console uses HTTP 404 for a business
// error: an unknown notification recipient id.
func NotFoundRecipient(id string) *ServiceError {
	err := &ServiceError{
		Code:       CodeBadRequest,
		Message:    "unknown recipient",
		HTTPStatus: http.StatusNotFound,
	}
	return err.WithDetails("recipient_id", id)
}

// RateLimited builds a CodeRateLimited error naming the window in which the
// caller's request budget was exhausted.
func RateLimited(retryAfter string) *ServiceError {
	return New(CodeRateLimited, "rate limit exceeded").WithDetails("retry_after", retryAfter)
}

// AsServiceError extracts a *ServiceError from err, wrapping it as Internal
// when err is not already one. Never returns nil.
func AsServiceError(err error) *ServiceError {
	if err == nil {
		return New(CodeInternal, "unknown error")
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return Internal("unexpected error", err)
}

// IsBadRequest reports whether err is a CodeBadRequest ServiceError.
func IsBadRequest(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Code == CodeBadRequest
}

// IsUpstream reports whether err is a CodeUpstreamError ServiceError.
func IsUpstream(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Code == CodeUpstreamError
}
