// Package proxyerr converts request failures into the uniform client error body.
package proxyerr

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"ollamabridge/internal/core"
)

// statusCarrier is implemented by errors that surface a transport-level
// status, such as a backend HTTP reply.
type statusCarrier interface {
	HTTPStatus() int
}

// detailCarrier is implemented by errors that carry an opaque payload worth
// echoing to the client.
type detailCarrier interface {
	ErrorDetail() any
}

// Normalize builds the ProxyError for err. Status precedence: an explicit
// status on a *core.StatusError, then a status surfaced by the transport,
// then 500.
func Normalize(err error, elapsed time.Duration) core.ProxyError {
	if elapsed < 0 {
		elapsed = 0
	}
	out := core.ProxyError{
		Status:        http.StatusInternalServerError,
		Kind:          core.KindInternal,
		Message:       core.GenericErrorMessage,
		TotalDuration: elapsed.Nanoseconds(),
	}
	if err == nil {
		return out
	}

	if msg := err.Error(); msg != "" {
		out.Message = msg
	}

	var se *core.StatusError
	hasStatusError := errors.As(err, &se)
	if hasStatusError {
		out.Kind = se.Kind
	}

	var sc statusCarrier
	switch {
	case hasStatusError && se.Status > 0:
		out.Status = se.Status
	case errors.As(err, &sc) && sc.HTTPStatus() > 0:
		out.Status = sc.HTTPStatus()
		if !hasStatusError {
			out.Kind = core.KindBackend
		}
	}

	var dc detailCarrier
	if errors.As(err, &dc) {
		out.Detail = dc.ErrorDetail()
	}
	return out
}

// FromPanic wraps a recovered panic value as an internal error.
func FromPanic(recovered any) error {
	if err, ok := recovered.(error); ok {
		return core.ErrInternal(fmt.Sprintf("internal error: %v", err), err)
	}
	return core.ErrInternal(fmt.Sprintf("internal error: %v", recovered), nil)
}
