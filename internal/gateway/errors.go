package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed backend call. The gateway is the only
// place raw transport and status details are interpreted; callers branch
// on Kind and show Message.
type ErrorKind string

const (
	// KindUnauthorized is HTTP 401: the session has expired or the token
	// was rejected. The gateway has already torn the session down.
	KindUnauthorized ErrorKind = "UNAUTHORIZED"

	// KindServer is any other non-2xx response. Message carries the
	// server-provided detail when present.
	KindServer ErrorKind = "SERVER"

	// KindTransport means the request never completed: DNS failure,
	// connection refused, offline. Implies misconfiguration or an
	// unreachable backend rather than a rejected request.
	KindTransport ErrorKind = "TRANSPORT"

	// KindValidation is a client-detected input problem. It never reaches
	// the network.
	KindValidation ErrorKind = "VALIDATION"
)

// RequestError is the gateway's uniform failure value.
type RequestError struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 for transport/validation
	Field   string // offending field for validation errors
	Message string // display-ready
	Err     error  // underlying cause, if any
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Unauthorized builds the 401 error.
func Unauthorized() *RequestError {
	return &RequestError{
		Kind:    KindUnauthorized,
		Status:  401,
		Message: "session expired, please log in again",
	}
}

// ServerFailure builds a non-2xx error, preferring the server's own
// message over a generic one.
func ServerFailure(status int, message string) *RequestError {
	if message == "" {
		message = fmt.Sprintf("server error %d", status)
	}
	return &RequestError{Kind: KindServer, Status: status, Message: message}
}

// TransportFailure wraps a request that never completed.
func TransportFailure(baseURL string, err error) *RequestError {
	return &RequestError{
		Kind:    KindTransport,
		Message: fmt.Sprintf("cannot reach backend at %s: check base_url and that the server is running", baseURL),
		Err:     err,
	}
}

// ValidationFailure reports a client-side input problem for a field.
func ValidationFailure(field, message string) *RequestError {
	return &RequestError{Kind: KindValidation, Field: field, Message: message}
}

// KindOf extracts the ErrorKind from any error. Non-gateway errors report
// KindTransport's sibling "" so callers can distinguish.
func KindOf(err error) ErrorKind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
