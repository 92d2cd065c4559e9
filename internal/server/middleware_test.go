package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ollamabridge/internal/config"
	"ollamabridge/internal/core"
	"ollamabridge/internal/synth"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if !rl.allow("1.2.3.4", now) {
			t.Fatalf("第 %d 个请求应被允许", i+1)
		}
	}
	if rl.allow("1.2.3.4", now) {
		t.Error("超过限额的请求应被拒绝")
	}
	if !rl.allow("5.6.7.8", now) {
		t.Error("不同 IP 应独立计数")
	}
	if !rl.allow("1.2.3.4", now.Add(core.RateLimitWindow+time.Second)) {
		t.Error("窗口过期后应重新允许")
	}
}

func TestRateLimiter_EvictStale(t *testing.T) {
	rl := newRateLimiter(1)
	defer rl.stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.allow("1.2.3.4", now)
	rl.evictStale(now.Add(2 * core.RateLimitWindow))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.visitors) != 0 {
		t.Errorf("过期访客应被清理, 剩余 %d", len(rl.visitors))
	}
}

func TestRateLimiter_StopIdempotent(t *testing.T) {
	rl := newRateLimiter(1)
	rl.stop()
	rl.stop()
}

func newMiddlewareTestServer(cfg config.ServerConfig) *Server {
	gin.SetMode(gin.TestMode)
	if cfg.CORSAllowOrigin == "" {
		cfg.CORSAllowOrigin = "*"
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NopLogger{}
	}
	return &Server{config: cfg, synth: synth.New(0, nil)}
}

func TestRateLimitMiddleware_Rejects(t *testing.T) {
	s := newMiddlewareTestServer(config.ServerConfig{})
	s.rateLimiter = newRateLimiter(1)
	defer s.rateLimiter.stop()

	router := gin.New()
	router.Use(s.rateLimitMiddleware())
	router.GET("/api/tags", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/api/tags", nil))
		codes = append(codes, last.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("期望 [200 429], 实际 %v", codes)
	}

	var body map[string]any
	if err := sonic.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析 429 响应失败: %v", err)
	}
	if _, ok := body["total_duration"]; !ok {
		t.Errorf("429 响应应使用统一错误体并包含 total_duration: %v", body)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "rate limit") {
		t.Errorf("错误信息不正确: %v", body["error"])
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	s := newMiddlewareTestServer(config.ServerConfig{})
	router := gin.New()
	router.Use(s.requestIDMiddleware())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(core.ContextKeyRequestID)) })

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"沿用客户端 ID", "client-abc", true},
		{"缺失时生成", "", false},
		{"过长时重新生成", strings.Repeat("x", maxRequestIDLength+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(core.HeaderRequestID, tt.incoming)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			got := w.Header().Get(core.HeaderRequestID)
			if got == "" || got != w.Body.String() {
				t.Fatalf("响应头与上下文中的 ID 应一致: header=%q body=%q", got, w.Body.String())
			}
			if (got == tt.incoming) != tt.keep {
				t.Errorf("沿用客户端 ID=%v, 实际 ID=%q", tt.keep, got)
			}
		})
	}
}

func TestCORSMiddleware_CustomOrigin(t *testing.T) {
	s := newMiddlewareTestServer(config.ServerConfig{CORSAllowOrigin: "https://app.example"})
	router := gin.New()
	router.Use(s.corsMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin 错误: %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != core.HeaderRequestID {
		t.Errorf("应暴露 X-Request-ID, 实际 %q", got)
	}
}
