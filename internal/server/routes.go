package server

import (
	"ollamabridge/internal/core"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.ginMode)
	s.router = gin.New()

	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())

	// Probes and monitoring
	s.router.GET(core.RouteRoot, s.root)
	s.router.HEAD(core.RouteRoot, s.root)
	s.router.GET(core.RouteHealth, s.healthCheck)
	s.router.GET(core.RouteStats, s.getStatsData)
	s.router.GET(core.RouteMetrics, gin.WrapH(promhttp.Handler()))

	// Client dialect API
	api := s.router.Group("/")
	api.Use(s.requestMetricsMiddleware())
	if s.rateLimiter != nil {
		api.Use(s.rateLimitMiddleware())
	}
	{
		api.GET(core.RouteTags, s.listTags)
		api.POST(core.RouteGenerate, s.generate)
		api.POST(core.RouteChat, s.chat)
	}

	s.router.NoRoute(s.notFound)
}
