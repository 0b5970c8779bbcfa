// Package pipeline runs one prompt end to end: generation, optional quality
// evaluation and derived metrics. It also fronts the optimization capability.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teilomillet/promptpilot/evaluator"
	"github.com/teilomillet/promptpilot/llm"
	"github.com/teilomillet/promptpilot/optimizer"
	"github.com/teilomillet/promptpilot/telemetry"
	"github.com/teilomillet/promptpilot/utils"
)

// Generation is what the generation capability returns.
type Generation struct {
	Text       string
	TokenUsage int64
}

// Generator is the generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (*Generation, error)
}

// LLMGenerator adapts an llm.LLM to Generator. Token usage is the total the
// provider reported.
type LLMGenerator struct {
	LLM llm.LLM
}

func (g LLMGenerator) Generate(ctx context.Context, prompt, model string) (*Generation, error) {
	resp, err := g.LLM.Generate(ctx, prompt, llm.WithModel(model))
	if err != nil {
		return nil, err
	}
	return &Generation{Text: resp.String(), TokenUsage: resp.TotalTokens()}, nil
}

// Pipeline holds the capabilities. The evaluator and optimizer are optional.
type Pipeline struct {
	generator Generator
	evaluator evaluator.Evaluator
	optimizer optimizer.Optimizer
	logger    utils.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
}

type Option func(*Pipeline)

func WithEvaluator(e evaluator.Evaluator) Option {
	return func(p *Pipeline) { p.evaluator = e }
}

func WithOptimizer(o optimizer.Optimizer) Option {
	return func(p *Pipeline) { p.optimizer = o }
}

func WithLogger(logger utils.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

func New(gen Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		generator: gen,
		logger:    utils.NewNopLogger(),
		tracer:    telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute generates text for prompt on model and, when criteria is set and
// the text is non-empty, grades it. Any capability failure fails the whole
// run; no partial result is returned.
func (p *Pipeline) Execute(ctx context.Context, prompt, model, criteria string) (*ExecutionResult, error) {
	if strings.TrimSpace(prompt) == "" {
		p.metrics.ObserveRun(model, telemetry.OutcomeRejected, 0, 0)
		return nil, ErrEmptyInput
	}
	if criteria != "" && p.evaluator == nil {
		p.metrics.ObserveRun(model, telemetry.OutcomeFailure, 0, 0)
		return nil, &CapabilityError{Capability: CapabilityEvaluation, Err: fmt.Errorf("criteria given but no evaluator configured")}
	}

	runID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("model", model),
		attribute.Bool("evaluate", criteria != ""),
	))
	defer span.End()

	p.logger.Debug("Executing prompt", "run_id", runID, "model", model)

	start := time.Now()
	gen, err := p.generator.Generate(ctx, prompt, model)
	latency := time.Since(start)
	if err != nil {
		cerr := newCapabilityError(CapabilityGeneration, err)
		p.fail(span, model, cerr)
		p.logger.Warn("Generation failed", "run_id", runID, "model", model, "rate_limited", cerr.RateLimited, "error", err)
		return nil, cerr
	}

	var quality *evaluator.QualityScore
	if criteria != "" && gen.Text != "" {
		quality, err = p.evaluator.Evaluate(ctx, prompt, gen.Text, criteria)
		if err != nil {
			cerr := newCapabilityError(CapabilityEvaluation, err)
			p.metrics.ObserveEvaluation(model, outcome(cerr), 0)
			p.fail(span, model, cerr)
			p.logger.Warn("Evaluation failed", "run_id", runID, "model", model, "error", err)
			return nil, cerr
		}
		p.metrics.ObserveEvaluation(model, telemetry.OutcomeSuccess, quality.Score)
	}

	result := NewExecutionResult(gen.Text, latency, gen.TokenUsage, quality)

	span.SetAttributes(
		attribute.Int64("latency_ms", result.LatencyMs()),
		attribute.Int("length", result.Length()),
		attribute.Int64("tokens", result.TokenUsage()),
	)
	p.metrics.ObserveRun(model, telemetry.OutcomeSuccess, result.Latency(), result.TokenUsage())
	p.logger.Info("Prompt executed", "run_id", runID, "model", model, "latency_ms", result.LatencyMs(), "tokens", result.TokenUsage())
	return result, nil
}

// Optimize asks the optimizer for a rewrite of prompt. The call is made once.
func (p *Pipeline) Optimize(ctx context.Context, prompt, model string) (*optimizer.Suggestion, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyInput
	}
	if p.optimizer == nil {
		return nil, &CapabilityError{Capability: CapabilityOptimization, Err: fmt.Errorf("no optimizer configured")}
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.optimize", trace.WithAttributes(
		attribute.String("run.id", uuid.NewString()),
		attribute.String("model", model),
	))
	defer span.End()

	suggestion, err := p.optimizer.Optimize(ctx, prompt, model)
	if err != nil {
		cerr := newCapabilityError(CapabilityOptimization, err)
		p.metrics.ObserveOptimization(model, outcome(cerr))
		span.RecordError(cerr)
		span.SetStatus(codes.Error, cerr.Error())
		p.logger.Warn("Optimization failed", "model", model, "error", err)
		return nil, cerr
	}
	p.metrics.ObserveOptimization(model, telemetry.OutcomeSuccess)
	return suggestion, nil
}

func (p *Pipeline) fail(span trace.Span, model string, cerr *CapabilityError) {
	span.RecordError(cerr)
	span.SetStatus(codes.Error, cerr.Error())
	p.metrics.ObserveRun(model, outcome(cerr), 0, 0)
}

func outcome(cerr *CapabilityError) string {
	if cerr.RateLimited {
		return telemetry.OutcomeRateLimited
	}
	return telemetry.OutcomeFailure
}
