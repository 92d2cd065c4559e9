// Package process runs one proxied generation: resolve the alias, adapt the
// request, call the backend, extract the text and synthesize metrics.
package process

import (
	"context"

	"ollamabridge/internal/convert"
	"ollamabridge/internal/core"
	"ollamabridge/internal/resolve"
	"ollamabridge/internal/synth"
)

// Backend performs a non-streaming chat completion.
type Backend interface {
	ChatCompletion(ctx context.Context, req *core.BackendRequest) (core.BackendResult, error)
}

// PipelineConfig configuration for Pipeline
type PipelineConfig struct {
	Models  resolve.ModelMapping
	Backend Backend
	Synth   *synth.Synthesizer
	Metrics core.MetricsCollector
	Logger  core.Logger
}

// Pipeline handles generate and chat requests. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	models  resolve.ModelMapping
	backend Backend
	synth   *synth.Synthesizer
	metrics core.MetricsCollector
	logger  core.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(config PipelineConfig) *Pipeline {
	if config.Synth == nil {
		config.Synth = synth.New(core.DefaultMinTPS, nil)
	}
	if config.Metrics == nil {
		config.Metrics = &core.NopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = &core.NopLogger{}
	}
	return &Pipeline{
		models:  config.Models,
		backend: config.Backend,
		synth:   config.Synth,
		metrics: config.Metrics,
		logger:  config.Logger,
	}
}

// Generate serves /api/generate. The stopwatch must have been started when
// the request arrived.
func (p *Pipeline) Generate(ctx context.Context, req *core.GenerateRequest, sw synth.Stopwatch) (*core.GenerateResponse, error) {
	if req.Stream != nil && *req.Stream {
		p.logger.Debug("stream=true requested for %s, answering with a single object", core.RouteGenerate)
	}

	text, res, err := p.run(ctx, core.RouteGenerate, req.Model, sw, func(backendModel string) *core.BackendRequest {
		return convert.GenerateToBackend(backendModel, req)
	})
	if err != nil {
		return nil, err
	}

	return &core.GenerateResponse{
		Model:             req.Model,
		CreatedAt:         p.createdAt(),
		Response:          text,
		Done:              true,
		GenerationMetrics: res.Metrics,
	}, nil
}

// Chat serves /api/chat.
func (p *Pipeline) Chat(ctx context.Context, req *core.ChatRequest, sw synth.Stopwatch) (*core.ChatResponse, error) {
	if req.Stream != nil && *req.Stream {
		p.logger.Debug("stream=true requested for %s, answering with a single object", core.RouteChat)
	}

	text, res, err := p.run(ctx, core.RouteChat, req.Model, sw, func(backendModel string) *core.BackendRequest {
		return convert.ChatToBackend(backendModel, req)
	})
	if err != nil {
		return nil, err
	}

	return &core.ChatResponse{
		Model:     req.Model,
		CreatedAt: p.createdAt(),
		Message: core.ResponseMessage{
			Role:    core.RoleAssistant,
			Content: text,
		},
		Done:              true,
		GenerationMetrics: res.Metrics,
	}, nil
}

// run resolves before building anything so an unmapped alias never reaches
// the backend. The backend call is detached from ctx cancellation: a client
// disconnect does not abort an in-flight completion.
func (p *Pipeline) run(ctx context.Context, route, alias string, sw synth.Stopwatch, build func(string) *core.BackendRequest) (string, synth.Result, error) {
	backendModel, err := p.models.Resolve(alias)
	if err != nil {
		p.logger.Debug("%s rejected: %v", route, err)
		return "", synth.Result{}, err
	}
	if p.backend == nil {
		return "", synth.Result{}, core.ErrInternal("no backend configured", nil)
	}

	result, err := p.backend.ChatCompletion(context.WithoutCancel(ctx), build(backendModel))
	if err != nil {
		return "", synth.Result{}, err
	}

	text := convert.ExtractText(result)
	if result.Kind == core.ResultEmpty {
		p.logger.Debug("%s backend reply for %s carried no content", route, backendModel)
	}

	res := p.synth.Synthesize(sw.Elapsed(), text)
	p.metrics.RecordSynthesis(alias, res.Metrics.EvalCount, res.Inflated)
	p.logger.Info("[proxy] %s model=%s tokens=%d duration_ns=%d tps=%.3f (min %g)",
		route, alias, res.Metrics.EvalCount, res.Metrics.TotalDuration, res.TPS, p.synth.MinTPS())

	return text, res, nil
}

func (p *Pipeline) createdAt() string {
	return p.synth.Now().UTC().Format(core.CreatedAtFormat)
}
