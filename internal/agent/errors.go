package agent

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a transport failure.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates the service rejected the request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates missing or invalid credentials.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypePermission indicates the caller may not invoke the agent.
	ErrorTypePermission ErrorType = "permission"

	// ErrorTypeNotFound indicates the agent or alias does not exist.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeRateLimit indicates throttling.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeOverloaded indicates the service is unavailable.
	ErrorTypeOverloaded ErrorType = "overloaded"

	// ErrorTypeServer indicates an internal service error.
	ErrorTypeServer ErrorType = "server"

	// ErrorTypeNetwork indicates the call never reached the service or the
	// stream broke.
	ErrorTypeNetwork ErrorType = "network"
)

// TransportError reports that the remote call could not be completed. The
// turn is aborted; no retry happens in this package.
type TransportError struct {
	// Type is the category of failure.
	Type ErrorType

	// Code is the service error code, if any.
	Code string

	// Op is the failed operation, such as "invoke" or "stream".
	Op string

	Err error
}

// NewTransportError creates a TransportError wrapping err.
func NewTransportError(errType ErrorType, op string, err error) *TransportError {
	return &TransportError{Type: errType, Op: op, Err: err}
}

// WithCode adds a service error code.
func (e *TransportError) WithCode(code string) *TransportError {
	e.Code = code
	return e
}

func (e *TransportError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agent %s: %s (%s): %v", e.Op, e.Type, e.Code, e.Err)
	}
	return fmt.Sprintf("agent %s: %s: %v", e.Op, e.Type, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status an HTTP front-end should report.
func (e *TransportError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeOverloaded:
		return http.StatusServiceUnavailable
	case ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// IsTransportError reports whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// asTransportError returns err unchanged when it already is a
// TransportError, otherwise wraps it as a network failure of op.
func asTransportError(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return NewTransportError(ErrorTypeNetwork, op, err)
}
