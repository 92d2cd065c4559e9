package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ollamabridge/internal/core"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "test-key",
		Timeout: timeout,
	}), srv
}

func TestChatCompletion_SendsBackendDialect(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}, time.Second)

	maxTokens := 256
	result, err := client.ChatCompletion(context.Background(), &core.BackendRequest{
		Model:     "llama-3.3-70b-instruct",
		Messages:  core.Messages(core.ChatMessage{Role: core.RoleUser, Content: "ping"}),
		MaxTokens: &maxTokens,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "llama-3.3-70b-instruct", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	assert.EqualValues(t, 256, gotBody["max_tokens"])
	assert.Len(t, gotBody["messages"], 1)

	assert.Equal(t, core.ResultMessage, result.Kind)
	assert.Equal(t, "pong", result.Text)
}

func TestChatCompletion_OmitsMaxTokensWhenUnset(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}, time.Second)

	result, err := client.ChatCompletion(context.Background(), &core.BackendRequest{Model: "m", Messages: core.Messages()})
	require.NoError(t, err)

	_, present := gotBody["max_tokens"]
	assert.False(t, present)
	assert.Equal(t, core.ResultEmpty, result.Kind)
}

func TestChatCompletion_NonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}, time.Second)

	_, err := client.ChatCompletion(context.Background(), &core.BackendRequest{Model: "m"})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.HTTPStatus())
	assert.Contains(t, httpErr.Error(), "429")
	assert.Contains(t, httpErr.Error(), "slow down")

	detail, ok := httpErr.ErrorDetail().(map[string]any)
	require.True(t, ok, "JSON payload should be decoded")
	assert.NotNil(t, detail["error"])
}

func TestChatCompletion_NonJSONErrorPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}, time.Second)

	_, err := client.ChatCompletion(context.Background(), &core.BackendRequest{Model: "m"})

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "upstream exploded", httpErr.ErrorDetail())
}

func TestChatCompletion_MalformedSuccessBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}, time.Second)

	_, err := client.ChatCompletion(context.Background(), &core.BackendRequest{Model: "m"})
	require.Error(t, err)

	var se *core.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, core.KindBackend, se.Kind)
	assert.Zero(t, se.Status)
}

func TestChatCompletion_Timeout(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := client.ChatCompletion(context.Background(), &core.BackendRequest{Model: "m"})
	require.Error(t, err)

	var se *core.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, core.KindTransport, se.Kind)
	assert.Contains(t, se.Error(), "timed out")
}

func TestChatCompletion_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(ClientConfig{BaseURL: url, APIKey: "k", Timeout: time.Second})
	_, err := client.ChatCompletion(context.Background(), &core.BackendRequest{Model: "m"})
	require.Error(t, err)

	var se *core.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, core.KindTransport, se.Kind)
}

type countingMetrics struct {
	core.NopMetrics
	calls  atomic.Int32
	status atomic.Int32
}

func (m *countingMetrics) RecordBackendCall(status int, _ time.Duration) {
	m.calls.Add(1)
	m.status.Store(int32(status))
}

func TestChatCompletion_RecordsBackendCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"delta":{"content":"x"}}]}`))
	}))
	defer srv.Close()

	m := &countingMetrics{}
	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Metrics: m})

	result, err := client.ChatCompletion(context.Background(), &core.BackendRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, core.ResultDelta, result.Kind)
	assert.EqualValues(t, 1, m.calls.Load())
	assert.EqualValues(t, http.StatusOK, m.status.Load())
}

func TestNewClient_Endpoint(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "https://api.vikey.ai/v1/"})
	assert.Equal(t, "https://api.vikey.ai/v1/chat/completions", c.Endpoint())
	assert.Equal(t, core.BackendRequestTimeout, c.timeout)
}
