package core

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a request failure.
type ErrorKind string

const (
	KindUnresolvedModel ErrorKind = "unresolved_model"
	KindBadRequest      ErrorKind = "bad_request"
	KindBackend         ErrorKind = "backend_error"
	KindTransport       ErrorKind = "transport_failure"
	KindInternal        ErrorKind = "internal_error"
	KindRateLimited     ErrorKind = "rate_limited"
)

// StatusError is a classified failure. Status is the explicit HTTP status to
// answer with; zero means none was attached.
type StatusError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Cause   error
}

func (e *StatusError) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

// NewStatusError creates a classified error.
func NewStatusError(kind ErrorKind, status int, message string, cause error) *StatusError {
	return &StatusError{
		Kind:    kind,
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

// ErrUnresolvedModel reports an alias missing from the model mapping.
func ErrUnresolvedModel(alias string) *StatusError {
	return NewStatusError(
		KindUnresolvedModel,
		http.StatusNotFound,
		fmt.Sprintf("model not mapped: %s. Add it to MODEL_MAP", alias),
		nil,
	)
}

// ErrBadRequest reports an inbound body that could not be decoded.
func ErrBadRequest(cause error) *StatusError {
	return NewStatusError(KindBadRequest, http.StatusBadRequest, "invalid request body", cause)
}

// ErrRateLimited reports a client over the configured per-minute limit.
func ErrRateLimited(perMinute int) *StatusError {
	return NewStatusError(
		KindRateLimited,
		http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded: %d requests per minute", perMinute),
		nil,
	)
}

// ErrInternal reports an unexpected fault inside the proxy.
func ErrInternal(message string, cause error) *StatusError {
	return NewStatusError(KindInternal, http.StatusInternalServerError, message, cause)
}

// ProxyError is the uniform failure response.
type ProxyError struct {
	Status        int       `json:"-"`
	Kind          ErrorKind `json:"-"`
	Message       string    `json:"error"`
	Detail        any       `json:"detail,omitempty"`
	TotalDuration int64     `json:"total_duration"`
}
