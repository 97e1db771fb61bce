package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies client errors.
type ErrorCode int

const (
	ErrCodeConnection ErrorCode = iota
	ErrCodeRateLimit
	ErrCodeValidation
	ErrCodeServer
	ErrCodeDecode
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeConnection:
		return "connection"
	case ErrCodeRateLimit:
		return "rate_limit"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeServer:
		return "server"
	case ErrCodeDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a classified client error.
type Error struct {
	// StatusCode is 0 for connection-level errors.
	StatusCode int
	Code       ErrorCode
	Message    string
	Retryable  bool
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewConnectionError wraps a transport failure. It is retryable.
func NewConnectionError(err error) *Error {
	return &Error{Code: ErrCodeConnection, Message: err.Error(), Retryable: true, Err: err}
}

// NewValidationError reports a request that could not be built or was
// rejected with a 4xx status.
func NewValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

// NewDecodeError reports a response body that is not the expected JSON.
func NewDecodeError(err error, body []byte) *Error {
	return &Error{Code: ErrCodeDecode, Message: err.Error(), Body: body, Err: err}
}

// ClassifyStatusCode converts a status code into an error, or nil for 2xx.
// Rate limiting and server errors are retryable.
func ClassifyStatusCode(statusCode int, body []byte) *Error {
	msg := fmt.Sprintf("HTTP %d", statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests:
		return &Error{StatusCode: statusCode, Code: ErrCodeRateLimit, Message: msg, Retryable: true, Body: body}
	case statusCode >= 400 && statusCode < 500:
		return &Error{StatusCode: statusCode, Code: ErrCodeValidation, Message: msg, Body: body}
	default:
		return &Error{StatusCode: statusCode, Code: ErrCodeServer, Message: msg, Retryable: statusCode >= 500, Body: body}
	}
}

// IsRetryable reports whether err is a retryable client error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
