package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorizes chat pipeline failures.
type ErrorCode string

const (
	ErrValidation  ErrorCode = "validation_error"
	ErrAuth        ErrorCode = "auth_error"
	ErrRateLimited ErrorCode = "rate_limit_error"
	ErrTimeout     ErrorCode = "timeout_error"
	ErrQuota       ErrorCode = "quota_error"
	ErrUpstream    ErrorCode = "upstream_error"
	ErrInternal    ErrorCode = "internal_error"
)

// ChatError carries a classified failure through the request cycle.
type ChatError struct {
	Code       ErrorCode
	Message    string
	Status     int
	Retryable  bool
	RetryAfter int64
	wrapped    error
}

func (e *ChatError) Error() string {
	if e == nil {
		return ""
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *ChatError) Unwrap() error { return e.wrapped }

// HTTPStatus returns the response status for the error, falling back to
// the default status for its code when none was set explicitly.
func (e *ChatError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrAuth:
		return http.StatusUnauthorized
	case ErrRateLimited, ErrQuota:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusRequestTimeout
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError builds a ChatError explicitly.
func NewError(code ErrorCode, message string, opts ...ErrorOption) *ChatError {
	e := &ChatError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WrapError classifies err under code, preserving an existing ChatError.
func WrapError(err error, code ErrorCode) *ChatError {
	if err == nil {
		return nil
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce
	}
	return &ChatError{Code: code, Message: err.Error(), wrapped: err}
}

// ErrorOption mutates a ChatError during construction.
type ErrorOption func(*ChatError)

// WithStatus sets the HTTP status code.
func WithStatus(status int) ErrorOption {
	return func(e *ChatError) { e.Status = status }
}

// WithRetryable marks whether retry is recommended.
func WithRetryable(retryable bool) ErrorOption {
	return func(e *ChatError) { e.Retryable = retryable }
}

// WithRetryAfter sets retry-after seconds.
func WithRetryAfter(seconds int64) ErrorOption {
	return func(e *ChatError) { e.RetryAfter = seconds }
}

// WithWrapped attaches an underlying error.
func WithWrapped(err error) ErrorOption {
	return func(e *ChatError) { e.wrapped = err }
}

func classify(code ErrorCode) func(error) bool {
	return func(err error) bool {
		if err == nil {
			return false
		}
		var ce *ChatError
		if errors.As(err, &ce) {
			return ce.Code == code
		}
		return false
	}
}

// Helper predicates for common error handling patterns.
var (
	IsValidation   = classify(ErrValidation)
	IsUnauthorized = classify(ErrAuth)
	IsRateLimited  = classify(ErrRateLimited)
	IsTimeout      = classify(ErrTimeout)
	IsQuotaError   = classify(ErrQuota)
	IsUpstream     = classify(ErrUpstream)
)

// GetRetryAfter extracts the retry-after hint, zero when absent.
func GetRetryAfter(err error) int64 {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.RetryAfter
	}
	return 0
}
