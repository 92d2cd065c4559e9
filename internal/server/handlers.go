package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ollamabridge/internal/core"
	"ollamabridge/internal/metrics"
	"ollamabridge/internal/proxyerr"
	"ollamabridge/internal/synth"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

func (s *Server) root(c *gin.Context) {
	c.String(http.StatusOK, core.RootBanner)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func (s *Server) listTags(c *gin.Context) {
	modifiedAt := s.synth.Now().UTC().Format(time.RFC3339)
	aliases := s.config.Models.Aliases()

	models := make([]core.TagModel, 0, len(aliases))
	for _, alias := range aliases {
		models = append(models, core.TagModel{
			Name:       alias,
			Model:      alias,
			ModifiedAt: modifiedAt,
			Details: core.TagDetails{
				Family: core.TagFamily,
			},
		})
	}
	c.JSON(http.StatusOK, core.TagsResponse{Models: models})
}

func (s *Server) generate(c *gin.Context) {
	sw := s.synth.Start()
	defer s.recoverHandler(c, core.RouteGenerate, sw)

	var req core.GenerateRequest
	if err := decodeBody(c, &req); err != nil {
		s.respondWithError(c, core.RouteGenerate, sw, err)
		return
	}
	c.Set(core.ContextKeyModel, req.Model)

	resp, err := s.pipeline.Generate(c.Request.Context(), &req, sw)
	if err != nil {
		s.respondWithError(c, core.RouteGenerate, sw, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) chat(c *gin.Context) {
	sw := s.synth.Start()
	defer s.recoverHandler(c, core.RouteChat, sw)

	var req core.ChatRequest
	if err := decodeBody(c, &req); err != nil {
		s.respondWithError(c, core.RouteChat, sw, err)
		return
	}
	c.Set(core.ContextKeyModel, req.Model)

	resp, err := s.pipeline.Chat(c.Request.Context(), &req, sw)
	if err != nil {
		s.respondWithError(c, core.RouteChat, sw, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// decodeBody reads the JSON body into v. An empty body leaves v untouched,
// so a request without a model is rejected by resolution rather than here.
func decodeBody(c *gin.Context, v any) error {
	if c.Request.Body == nil {
		return nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.NewStatusError(core.KindBadRequest, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), err)
		}
		return core.ErrBadRequest(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return core.ErrBadRequest(err)
	}
	return nil
}

// respondWithError answers with the uniform error body.
func (s *Server) respondWithError(c *gin.Context, route string, sw synth.Stopwatch, err error) {
	pe := proxyerr.Normalize(err, sw.Elapsed())
	s.config.Logger.Error("[proxy] %s failed request_id=%s model=%s status=%d kind=%s duration_ns=%d: %v",
		route, c.GetString(core.ContextKeyRequestID), c.GetString(core.ContextKeyModel),
		pe.Status, pe.Kind, pe.TotalDuration, err)
	c.AbortWithStatusJSON(pe.Status, pe)
}

func (s *Server) recoverHandler(c *gin.Context, route string, sw synth.Stopwatch) {
	if r := recover(); r != nil {
		s.respondWithError(c, route, sw, proxyerr.FromPanic(r))
	}
}

func (s *Server) getStatsData(c *gin.Context) {
	stats := s.metricsService.GetRequestStats()
	now := time.Now()
	periodStats := metrics.GetPeriodStats(stats.RequestHistory, now, 24, 24*7, 24*30)

	var successRate float64
	var avgResponseTime int64
	if stats.TotalRequests > 0 {
		successRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests) * 100
		avgResponseTime = stats.TotalResponseTime / stats.TotalRequests
	}

	c.JSON(http.StatusOK, gin.H{
		"currentTime":       now.Format(core.TimeFormatDateTime),
		"currentQPS":        fmt.Sprintf("%.3f", s.metricsService.GetQPS()),
		"totalRequests":     stats.TotalRequests,
		"successfulReqs":    stats.SuccessfulRequests,
		"failedRequests":    stats.FailedRequests,
		"successRate":       successRate,
		"avgResponseTime":   avgResponseTime,
		"totalEvalCount":    stats.TotalEvalCount,
		"inflatedResponses": stats.InflatedResponses,
		"totalRecords":      len(stats.RequestHistory),
		"stats24h":          periodStats[24],
		"stats7d":           periodStats[24*7],
		"stats30d":          periodStats[24*30],
		"minTPS":            s.synth.MinTPS(),
		"models":            s.config.Models.Len(),
	})
}
