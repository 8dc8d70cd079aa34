package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// -----------------------------
// NetworkError
// -----------------------------

// NetworkError is a transport level failure: connection refused, DNS,
// TLS or a timeout while talking to the Flare service.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func NewNetworkError(op string, timeout bool, err error) *NetworkError {
	return &NetworkError{Op: op, Timeout: timeout, Err: err}
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network error during %s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a NetworkError caused by a timeout.
func IsTimeout(err error) bool {
	var target *NetworkError
	return errors.As(err, &target) && target.Timeout
}

// -----------------------------
// APIError
// -----------------------------

// APIError means the service answered with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Message: message}
}

// NewAPIErrorFromResponse builds the message for a rejected request.
// body is the raw response body, possibly empty.
func NewAPIErrorFromResponse(statusCode int, body string) *APIError {
	var message string
	switch statusCode {
	case http.StatusBadRequest:
		message = "Bad request: " + orDefault(body, "Invalid request format")
	case http.StatusUnauthorized:
		message = "Unauthorized: Invalid or missing API key"
	case http.StatusNotFound:
		message = "Not found: " + orDefault(body, "Resource not found")
	default:
		message = fmt.Sprintf("API error (%d): %s", statusCode, orDefault(body, http.StatusText(statusCode)))
	}
	return NewAPIError(statusCode, message)
}

func (e *APIError) Error() string {
	return e.Message
}

func IsAPI(err error) bool {
	var target *APIError
	return errors.As(err, &target)
}

// -----------------------------
// ParseError
// -----------------------------

// ParseError means the response did not match the expected shape.
type ParseError struct {
	Message string
	Cause   error
}

func NewParseError(message string, cause error) *ParseError {
	return &ParseError{Message: message, Cause: cause}
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// -----------------------------
// InvalidArgumentError
// -----------------------------

// InvalidArgumentError means the caller supplied an unusable flag key
// or a context without a resolvable scope.
type InvalidArgumentError struct {
	Argument string
	Message  string
}

func NewInvalidArgumentError(argument, message string) *InvalidArgumentError {
	return &InvalidArgumentError{Argument: argument, Message: message}
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Message)
}

func IsInvalidArgument(err error) bool {
	var target *InvalidArgumentError
	return errors.As(err, &target)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
