// Package backend sends chat-completion requests to the remote OpenAI-style API.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ollamabridge/internal/convert"
	"ollamabridge/internal/core"
	"ollamabridge/internal/util"

	"github.com/bytedance/sonic"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Metrics    core.MetricsCollector
	Logger     core.Logger
}

// Client calls POST <BaseURL>/chat/completions. It is safe for concurrent use.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	metrics    core.MetricsCollector
	logger     core.Logger
}

// NewClient creates a backend client
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = core.BackendRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &core.NopMetrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NopLogger{}
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + core.ChatCompletionsPath,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		timeout:    timeout,
		metrics:    metrics,
		logger:     logger,
	}
}

// Endpoint returns the full chat-completions URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ChatCompletion performs one non-streaming call. It never retries. Failures
// are *HTTPError for non-2xx replies, and *core.StatusError of kind
// KindTransport or KindBackend otherwise.
func (c *Client) ChatCompletion(ctx context.Context, req *core.BackendRequest) (core.BackendResult, error) {
	payload, err := util.MarshalJSON(req)
	if err != nil {
		return core.BackendResult{}, core.ErrInternal("failed to encode backend request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return core.BackendResult{}, core.ErrInternal("failed to create backend request", err)
	}
	httpReq.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	httpReq.Header.Set(core.HeaderAccept, core.ContentTypeJSON)
	httpReq.Header.Set(core.HeaderAuthorization, core.AuthBearerPrefix+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordBackendCall(0, time.Since(start))
		return core.BackendResult{}, c.transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	c.metrics.RecordBackendCall(resp.StatusCode, time.Since(start))
	if err != nil {
		return core.BackendResult{}, c.transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Backend API error: status=%d, body=%s", resp.StatusCode, util.TruncateString(string(body), 256, 0, "..."))
		return core.BackendResult{}, newHTTPError(resp.StatusCode, body)
	}

	result, err := convert.DecodeBackendResult(body)
	if err != nil {
		return core.BackendResult{}, core.NewStatusError(core.KindBackend, 0, "malformed backend response", err)
	}
	return result, nil
}

func (c *Client) transportError(err error) error {
	if isTimeout(err) {
		return core.NewStatusError(core.KindTransport, 0,
			fmt.Sprintf("backend request timed out after %s", c.timeout), err)
	}
	return core.NewStatusError(core.KindTransport, 0,
		fmt.Sprintf("backend request failed: %v", err), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// HTTPError is a non-2xx reply from the backend. Payload holds the (size
// limited) response body.
type HTTPError struct {
	StatusCode int
	Payload    []byte
	message    string
}

func newHTTPError(status int, payload []byte) *HTTPError {
	if len(payload) > core.MaxErrorDetailSize {
		payload = payload[:core.MaxErrorDetailSize]
	}
	return &HTTPError{
		StatusCode: status,
		Payload:    payload,
		message:    backendErrorMessage(status, payload),
	}
}

func (e *HTTPError) Error() string {
	return e.message
}

// HTTPStatus returns the backend status code.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// ErrorDetail returns the backend payload, decoded when it is JSON.
func (e *HTTPError) ErrorDetail() any {
	if len(e.Payload) == 0 {
		return nil
	}
	var decoded any
	if err := sonic.Unmarshal(e.Payload, &decoded); err == nil {
		return decoded
	}
	return string(e.Payload)
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func backendErrorMessage(status int, payload []byte) string {
	msg := fmt.Sprintf("backend request failed with status code %d", status)
	var env errorEnvelope
	if err := sonic.Unmarshal(payload, &env); err == nil && env.Error.Message != "" {
		msg += ": " + env.Error.Message
	}
	return msg
}
