package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"ollamabridge/internal/core"
	"ollamabridge/internal/util"

	"github.com/gin-gonic/gin"
)

// maxRequestIDLength bounds client-supplied X-Request-ID values.
const maxRequestIDLength = 128

func (s *Server) maxBodySizeMiddleware() gin.HandlerFunc {
	limit := s.config.MaxBodyBytes
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitorInfo
	rate     int
	window   time.Duration
	cleanup  time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

type visitorInfo struct {
	count       int
	windowStart time.Time
}

func newRateLimiter(ratePerMinute int) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitorInfo),
		rate:     ratePerMinute,
		window:   core.RateLimitWindow,
		cleanup:  core.RateLimitCleanupInterval,
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictStale(time.Now())
		case <-rl.done:
			return
		}
	}
}

func (rl *rateLimiter) evictStale(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.windowStart) > rl.window {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow counts a request from ip in a fixed one-minute window.
func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.windowStart) > rl.window {
		rl.visitors[ip] = &visitorInfo{count: 1, windowStart: now}
		return true
	}
	v.count++
	return v.count <= rl.rate
}

// rateLimitMiddleware is only installed when RATE_LIMIT is set. Rejections
// use the uniform error body.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sw := s.synth.Start()
		if !s.rateLimiter.allow(c.ClientIP(), time.Now()) {
			s.respondWithError(c, c.FullPath(), sw, core.ErrRateLimited(s.rateLimiter.rate))
			return
		}
		c.Next()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowOrigin := s.config.CORSAllowOrigin

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+core.HeaderRequestID)
		c.Header("Access-Control-Expose-Headers", core.HeaderRequestID)
		c.Header("Access-Control-Max-Age", core.CORSMaxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware keeps a sane client-supplied X-Request-ID or mints a new one.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(core.HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLength {
			id = util.NewRequestID()
		}
		c.Set(core.ContextKeyRequestID, id)
		c.Header(core.HeaderRequestID, id)
		c.Next()
	}
}

// requestMetricsMiddleware records every API request once it has been answered.
func (s *Server) requestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = core.UnmatchedRouteLabel
		}
		s.metricsService.RecordRequest(core.RequestRecord{
			Timestamp:    start,
			Route:        route,
			Model:        c.GetString(core.ContextKeyModel),
			Status:       c.Writer.Status(),
			ResponseTime: time.Since(start).Milliseconds(),
		})
	}
}
