package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ollamabridge/internal/backend"
	"ollamabridge/internal/config"
	"ollamabridge/internal/core"
	"ollamabridge/internal/metrics"
	"ollamabridge/internal/process"
	"ollamabridge/internal/synth"

	"github.com/gin-gonic/gin"
)

// Server application server
type Server struct {
	port    string
	ginMode string

	httpClient *http.Client
	router     *gin.Engine

	metricsService *metrics.MetricsService
	backend        *backend.Client
	synth          *synth.Synthesizer
	pipeline       *process.Pipeline

	config config.ServerConfig

	rateLimiter *rateLimiter

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	closeOnce      sync.Once
	closeErr       error
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required in ServerConfig")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required in ServerConfig")
	}
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required in ServerConfig")
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = core.DefaultMaxBodyBytes
	}
	if cfg.CORSAllowOrigin == "" {
		cfg.CORSAllowOrigin = core.DefaultCORSAllowOrigin
	}

	cfg.Logger.Info("Initializing server with %d model aliases", cfg.Models.Len())

	httpClient := createOptimizedHTTPClient(cfg.HTTPClientSettings)

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		SaveInterval: core.MinSaveInterval,
		HistorySize:  core.HistoryBufferSize,
		Storage:      cfg.Storage,
		Logger:       cfg.Logger,
	})

	if err := metricsService.LoadStats(); err != nil {
		cfg.Logger.Warn("Failed to load historical stats: %v", err)
	}

	backendClient := backend.NewClient(backend.ClientConfig{
		BaseURL:    cfg.Backend.BaseURL,
		APIKey:     cfg.Backend.APIKey,
		HTTPClient: httpClient,
		Timeout:    cfg.HTTPClientSettings.RequestTimeout,
		Metrics:    metricsService,
		Logger:     cfg.Logger,
	})

	synthesizer := synth.New(cfg.MinTPS, cfg.Clock)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	server := &Server{
		port:           cfg.Port,
		ginMode:        cfg.GinMode,
		httpClient:     httpClient,
		metricsService: metricsService,
		backend:        backendClient,
		synth:          synthesizer,
		pipeline: process.NewPipeline(process.PipelineConfig{
			Models:  cfg.Models,
			Backend: backendClient,
			Synth:   synthesizer,
			Metrics: metricsService,
			Logger:  cfg.Logger,
		}),
		config:         cfg,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	if cfg.RateLimit > 0 {
		server.rateLimiter = newRateLimiter(cfg.RateLimit)
		cfg.Logger.Info("Per-IP rate limit enabled: %d requests/minute", cfg.RateLimit)
	}

	server.setupRoutes()

	cfg.Logger.Info("Forwarding to %s", backendClient.Endpoint())
	return server, nil
}

func createOptimizedHTTPClient(settings config.HTTPClientSettings) *http.Client {
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = core.BackendRequestTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          settings.MaxIdleConns,
		MaxIdleConnsPerHost:   settings.MaxIdleConnsPerHost,
		MaxConnsPerHost:       settings.MaxConnsPerHost,
		IdleConnTimeout:       settings.IdleConnTimeout,
		TLSHandshakeTimeout:   settings.TLSHandshakeTimeout,
		ExpectContinueTimeout: core.HTTPExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: settings.RequestTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   settings.RequestTimeout,
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run runs the server
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: core.ServerReadHeaderTimeout,
		ReadTimeout:       core.ServerReadTimeout,
		WriteTimeout:      core.ServerWriteTimeout, // must outlast the backend timeout
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), core.ServerShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.config.Logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.config.Logger.Info("Server starting on port %s (min TPS %g)", s.port, s.synth.MinTPS())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-quit:
			s.config.Logger.Info("Shutdown signal received, shutting down gracefully...")
			s.shutdownCancel()
		case <-s.shutdownCtx.Done():
		}
		signal.Stop(quit)
	}()
}

// Close stops background work and flushes stats. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.shutdownCancel != nil {
			s.shutdownCancel()
		}

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		if s.metricsService != nil {
			if err := s.metricsService.Close(); err != nil {
				s.closeErr = errors.Join(s.closeErr, fmt.Errorf("close metrics service: %w", err))
			}
		}

		if s.httpClient != nil {
			s.httpClient.CloseIdleConnections()
		}
	})
	return s.closeErr
}
