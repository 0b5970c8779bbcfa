package promptpilot

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/evaluator"
	"github.com/teilomillet/promptpilot/library"
	"github.com/teilomillet/promptpilot/llm"
	"github.com/teilomillet/promptpilot/optimizer"
	"github.com/teilomillet/promptpilot/pipeline"
	"github.com/teilomillet/promptpilot/server"
	"github.com/teilomillet/promptpilot/session"
	"github.com/teilomillet/promptpilot/telemetry"
	"github.com/teilomillet/promptpilot/utils"
)

// Version is reported in traces.
const Version = "0.1.0"

// App is a fully wired PromptPilot instance.
type App struct {
	Config    *config.Config
	LLM       llm.LLM
	Evaluator *evaluator.LLMEvaluator
	Optimizer *optimizer.PromptOptimizer
	Pipeline  *pipeline.Pipeline
	Prompts   *session.Collection
	Library   library.Store
	Metrics   *telemetry.Metrics
	Logger    utils.Logger

	shutdownTracing func(context.Context) error
}

type options struct {
	llm     llm.LLM
	logger  utils.Logger
	library library.Store
	seed    bool
}

type Option func(*options)

// WithLLM replaces the LLM built from the configuration, e.g. with a test
// double.
func WithLLM(l llm.LLM) Option {
	return func(o *options) { o.llm = l }
}

func WithLogger(logger utils.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLibrary replaces the store named by Config.Library.
func WithLibrary(store library.Store) Option {
	return func(o *options) { o.library = store }
}

// WithoutSeed starts with an empty collection instead of the example card.
func WithoutSeed() Option {
	return func(o *options) { o.seed = false }
}

// NewLogger builds the logger described by cfg: zap JSON for "json", slog
// text otherwise.
func NewLogger(cfg *config.Config) (utils.Logger, error) {
	if cfg.LogFormat == "json" {
		return utils.NewZapLogger(cfg.LogLevel)
	}
	return utils.NewLogger(cfg.LogLevel), nil
}

// New validates cfg and wires every component.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{seed: true}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		var err error
		if logger, err = NewLogger(cfg); err != nil {
			return nil, err
		}
	}

	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName: "promptpilot",
		Version:     Version,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	l := o.llm
	if l == nil {
		if l, err = llm.New(ctx, cfg, logger); err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("create llm: %w", err)
		}
	}

	store := o.library
	if store == nil {
		if store, err = library.Open(cfg.Library, logger); err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("open library: %w", err)
		}
	}

	metrics := telemetry.NewMetrics()
	eval := evaluator.NewLLMEvaluator(l, evaluator.WithModel(cfg.EvaluatorModel), evaluator.WithLogger(logger))
	opt := optimizer.NewPromptOptimizer(l, optimizer.WithLogger(logger))
	p := pipeline.New(pipeline.LLMGenerator{LLM: l},
		pipeline.WithEvaluator(eval),
		pipeline.WithOptimizer(opt),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
	)

	collectionOpts := []session.Option{
		session.WithDefaultModel(cfg.Model),
		session.WithLogger(logger),
		session.WithMetrics(metrics),
		session.WithConcurrency(cfg.Concurrency),
		session.WithRateLimit(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
	if o.seed {
		collectionOpts = append(collectionOpts, session.WithSeed())
	}

	logger.Info("PromptPilot ready", "provider", l.Name(), "model", cfg.Model, "evaluator_model", eval.Model(), "library", cfg.Library)

	return &App{
		Config:          cfg,
		LLM:             l,
		Evaluator:       eval,
		Optimizer:       opt,
		Pipeline:        p,
		Prompts:         session.New(p, collectionOpts...),
		Library:         store,
		Metrics:         metrics,
		Logger:          logger,
		shutdownTracing: shutdown,
	}, nil
}

// Server returns the HTTP service over this app's collection and library.
func (a *App) Server() *server.Server {
	return server.New(a.Prompts, a.Library,
		server.WithModels(a.Config.Models),
		server.WithMetrics(a.Metrics),
		server.WithLogger(a.Logger),
	)
}

// Close releases the library, flushes traces and syncs the logger.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Library.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close library: %w", err))
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	if z, ok := a.Logger.(*utils.ZapLogger); ok {
		_ = z.Sync()
	}
	return errors.Join(errs...)
}
