// Package llm turns a prompt into generated text and token usage. LLMImpl
// talks to the REST providers in package providers; GenAIClient uses the
// Google GenAI SDK; Echo answers offline.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/providers"
	"github.com/teilomillet/promptpilot/utils"
)

// LLM is the generation capability.
type LLM interface {
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (*providers.Response, error)
	Name() string
}

// New picks the implementation named by cfg.Provider.
func New(ctx context.Context, cfg *config.Config, logger utils.Logger) (LLM, error) {
	switch cfg.Provider {
	case "genai":
		return NewGenAIClient(ctx, cfg, logger)
	case "echo":
		return NewEcho(logger), nil
	default:
		return NewLLM(cfg, logger, providers.GetDefaultRegistry())
	}
}

const maxRetryWait = 30 * time.Second

// LLMImpl sends provider requests over HTTP. A provider instance is created
// lazily for each model a caller asks for.
type LLMImpl struct {
	registry *providers.ProviderRegistry
	config   *config.Config
	client   *http.Client
	logger   utils.Logger
	limiter  *rate.Limiter

	mu        sync.Mutex
	providers map[string]providers.Provider
}

func NewLLM(cfg *config.Config, logger utils.Logger, registry *providers.ProviderRegistry) (*LLMImpl, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	l := &LLMImpl{
		registry:  registry,
		config:    cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
		providers: make(map[string]providers.Provider),
	}
	if cfg.RequestsPerSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	// Fail fast on an unknown provider name.
	if _, err := l.Provider(cfg.Model); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LLMImpl) Name() string {
	return l.config.Provider
}

// Provider returns the provider bound to model, creating it on first use.
func (l *LLMImpl) Provider(model string) (providers.Provider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.providers[model]; ok {
		return p, nil
	}
	p, err := l.registry.Get(l.config.Provider, l.config.APIKey(l.config.Provider), model, l.config.ExtraHeaders)
	if err != nil {
		return nil, NewLLMError(ErrorTypeProvider, "failed to create provider", err)
	}
	p.SetDefaultOptions(l.config)
	p.SetLogger(l.logger)
	l.providers[model] = p
	return p, nil
}

func (l *LLMImpl) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (*providers.Response, error) {
	gc := newGenerateConfig(l.config.Model, opts)
	provider, err := l.Provider(gc.Model)
	if err != nil {
		return nil, err
	}

	strategy := &DefaultRetryStrategy{
		MaxRetries:  l.config.MaxRetries,
		InitialWait: l.config.RetryDelay,
		MaxWait:     maxRetryWait,
	}
	for attempt := 1; ; attempt++ {
		l.logger.Debug("Generating text", "provider", provider.Name(), "model", gc.Model, "attempt", attempt)

		resp, err := l.attemptGenerate(ctx, provider, prompt, gc)
		if err == nil {
			return resp, nil
		}

		l.logger.Warn("Generation attempt failed", "provider", provider.Name(), "model", gc.Model, "attempt", attempt, "error", err)
		if !strategy.ShouldRetry(err) {
			return nil, err
		}

		delay := strategy.NextDelay()
		l.logger.Debug("Retrying", "delay", delay)
		select {
		case <-ctx.Done():
			return nil, NewLLMError(ErrorTypeRequest, "context done while waiting to retry", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (l *LLMImpl) attemptGenerate(ctx context.Context, provider providers.Provider, prompt string, gc *GenerateConfig) (*providers.Response, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, NewLLMError(ErrorTypeRequest, "rate limiter wait failed", err)
		}
	}

	options := make(map[string]any)
	if gc.SystemPrompt != "" {
		options[providers.KeySystemPrompt] = gc.SystemPrompt
	}

	var (
		reqBody []byte
		err     error
	)
	switch {
	case gc.StructuredResponseSchema == nil:
		reqBody, err = provider.PrepareRequest(prompt, options)
	case provider.SupportsJSONSchema():
		reqBody, err = provider.PrepareRequestWithSchema(prompt, options, gc.StructuredResponseSchema)
	default:
		reqBody, err = provider.PrepareRequest(promptWithSchema(prompt, gc.StructuredResponseSchema), options)
	}
	if err != nil {
		return nil, NewLLMError(ErrorTypeRequest, "failed to prepare request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.Endpoint(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, NewLLMError(ErrorTypeRequest, "failed to create request", err)
	}
	for k, v := range provider.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, NewLLMError(ErrorTypeRequest, "failed to send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrorTypeResponse, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, string(body))
		l.logger.Error("API error", append(apiErr.LoggableFields(), "provider", provider.Name())...)
		return nil, apiErr
	}

	result, err := provider.ParseResponse(body)
	if err != nil {
		return nil, NewLLMError(ErrorTypeResponse, "failed to parse response", err)
	}

	if gc.StructuredResponseSchema != nil {
		cleaned := CleanJSONResponse(result.String())
		if !json.Valid([]byte(cleaned)) {
			return nil, NewLLMError(ErrorTypeResponse, "response is not valid JSON", nil)
		}
		result = providers.NewTextResponse(cleaned, result.Usage)
	}

	l.logger.Debug("Text generated successfully", "provider", provider.Name(), "tokens", result.TotalTokens())
	return result, nil
}

func promptWithSchema(prompt string, schema any) string {
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return prompt
	}
	return fmt.Sprintf("%s\n\nRespond only with a JSON object matching this schema:\n%s", prompt, string(schemaJSON))
}
