package llm

import (
	"context"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/providers"
	"github.com/teilomillet/promptpilot/utils"
)

// GenAIClient generates through the official Google GenAI SDK instead of the
// hand-built REST provider.
type GenAIClient struct {
	cli     *genai.Client
	config  *config.Config
	logger  utils.Logger
	limiter *rate.Limiter
}

func NewGenAIClient(ctx context.Context, cfg *config.Config, logger utils.Logger) (*GenAIClient, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey("genai"),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions.BaseURL = cfg.Endpoint
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, NewLLMError(ErrorTypeProvider, "failed to create GenAI client", err)
	}

	g := &GenAIClient{cli: cli, config: cfg, logger: logger}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return g, nil
}

func (g *GenAIClient) Name() string { return "genai" }

func (g *GenAIClient) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (*providers.Response, error) {
	gc := newGenerateConfig(g.config.Model, opts)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, NewLLMError(ErrorTypeRequest, "rate limiter wait failed", err)
		}
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.config.Temperature)),
	}
	if gc.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(gc.SystemPrompt, genai.RoleUser)
	}
	full := prompt
	if gc.StructuredResponseSchema != nil {
		full = promptWithSchema(prompt, gc.StructuredResponseSchema)
		genConfig.ResponseMIMEType = "application/json"
	}

	g.logger.Debug("Generating text", "provider", "genai", "model", gc.Model)
	resp, err := g.cli.Models.GenerateContent(ctx, gc.Model,
		[]*genai.Content{genai.NewContentFromText(full, genai.RoleUser)},
		genConfig,
	)
	if err != nil {
		return nil, classifyGenAIError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, NewLLMError(ErrorTypeResponse, "no candidates in response", nil)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	out := text.String()
	if gc.StructuredResponseSchema != nil {
		out = CleanJSONResponse(out)
	}

	var usage *providers.Usage
	if md := resp.UsageMetadata; md != nil {
		usage = providers.NewUsage(
			int64(md.PromptTokenCount),
			int64(md.CachedContentTokenCount),
			int64(md.CandidatesTokenCount),
			int64(md.TotalTokenCount),
		)
	}
	return providers.NewTextResponse(out, usage), nil
}

// classifyGenAIError maps SDK errors onto LLMError. The SDK reports HTTP
// status in the error text, so rate limits are recognised from it.
func classifyGenAIError(err error) *LLMError {
	if IsRateLimit(err) {
		return NewLLMError(ErrorTypeRateLimit, "GenAI rate limit", err)
	}
	msg := err.Error()
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "PERMISSION_DENIED") {
		return NewLLMError(ErrorTypeAuthentication, "GenAI authentication failed", err)
	}
	return NewLLMError(ErrorTypeAPI, "GenAI request failed", err)
}
