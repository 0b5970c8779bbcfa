package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/utils"
)

// GeminiProvider implements the Provider interface for Google's Gemini REST
// API (generateContent).
type GeminiProvider struct {
	apiKey       string
	model        string
	baseURL      string
	extraHeaders map[string]string
	options      map[string]any
	logger       utils.Logger
}

// NewGeminiProvider creates a Gemini provider. model may be given with or
// without the "models/" prefix.
func NewGeminiProvider(apiKey, model string, extraHeaders map[string]string) Provider {
	provider := &GeminiProvider{
		apiKey:       apiKey,
		model:        model,
		baseURL:      GeminiBaseURL,
		extraHeaders: make(map[string]string),
		options:      make(map[string]any),
		logger:       utils.NewNopLogger(),
	}
	copyHeaders(provider.extraHeaders, extraHeaders)
	return provider
}

func (p *GeminiProvider) Name() string {
	return "google"
}

// Endpoint returns {base}/v1beta/models/{model}:generateContent.
func (p *GeminiProvider) Endpoint() string {
	modelName := p.model
	if !strings.HasPrefix(modelName, "models/") {
		modelName = "models/" + modelName
	}
	return fmt.Sprintf("%s/v1beta/%s:generateContent", strings.TrimRight(p.baseURL, "/"), modelName)
}

// Headers authenticates with the x-goog-api-key header, which is what the
// Generative Language API expects for plain API keys.
func (p *GeminiProvider) Headers() map[string]string {
	headers := map[string]string{
		"Content-Type":   "application/json",
		"x-goog-api-key": p.apiKey,
	}
	copyHeaders(headers, p.extraHeaders)
	return headers
}

func (p *GeminiProvider) SetExtraHeaders(extraHeaders map[string]string) {
	p.extraHeaders = make(map[string]string)
	copyHeaders(p.extraHeaders, extraHeaders)
}

func (p *GeminiProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

func (p *GeminiProvider) SetOption(key string, value any) {
	p.options[key] = value
}

func (p *GeminiProvider) SetDefaultOptions(cfg *config.Config) {
	p.SetOption(KeyTemperature, cfg.Temperature)
	p.SetOption(KeyMaxTokens, cfg.MaxTokens)
	if cfg.Endpoint != "" {
		p.baseURL = cfg.Endpoint
	}
}

func (p *GeminiProvider) SupportsJSONSchema() bool {
	return true
}

func (p *GeminiProvider) generationConfig() map[string]any {
	genConfig := make(map[string]any)
	if maxTokens, ok := p.options[KeyMaxTokens].(int); ok && maxTokens > 0 {
		genConfig["maxOutputTokens"] = maxTokens
	}
	if temp, ok := p.options[KeyTemperature].(float64); ok {
		genConfig["temperature"] = temp
	}
	return genConfig
}

func (p *GeminiProvider) baseRequest(prompt string, options map[string]any) map[string]any {
	requestBody := map[string]any{
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": prompt}},
			},
		},
	}
	if sys, ok := options[KeySystemPrompt].(string); ok && sys != "" {
		requestBody["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": sys}},
		}
	}
	return requestBody
}

func (p *GeminiProvider) PrepareRequest(prompt string, options map[string]any) ([]byte, error) {
	requestBody := p.baseRequest(prompt, options)
	if genConfig := p.generationConfig(); len(genConfig) > 0 {
		requestBody["generationConfig"] = genConfig
	}
	return json.Marshal(requestBody)
}

// PrepareRequestWithSchema asks for application/json output constrained by
// schema. Gemini accepts an OpenAPI subset, so JSON Schema keywords it
// rejects are stripped first.
func (p *GeminiProvider) PrepareRequestWithSchema(prompt string, options map[string]any, schema any) ([]byte, error) {
	cleaned, err := openAPISchema(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema: %w", err)
	}

	requestBody := p.baseRequest(prompt, options)
	genConfig := p.generationConfig()
	genConfig["responseMimeType"] = "application/json"
	genConfig["responseSchema"] = cleaned
	requestBody["generationConfig"] = genConfig

	return json.Marshal(requestBody)
}

// ParseResponse joins the text parts of the first candidate and reads
// usageMetadata.
func (p *GeminiProvider) ParseResponse(body []byte) (*Response, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback *struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback,omitempty"`
		UsageMetadata *struct {
			PromptTokenCount        int64 `json:"promptTokenCount"`
			CachedContentTokenCount int64 `json:"cachedContentTokenCount"`
			CandidatesTokenCount    int64 `json:"candidatesTokenCount"`
			TotalTokenCount         int64 `json:"totalTokenCount"`
		} `json:"usageMetadata,omitempty"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("no candidates in response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	var usage *Usage
	if md := resp.UsageMetadata; md != nil {
		usage = NewUsage(md.PromptTokenCount, md.CachedContentTokenCount, md.CandidatesTokenCount, md.TotalTokenCount)
	}

	p.logger.Debug("Parsed Gemini response", "finish_reason", resp.Candidates[0].FinishReason, "chars", text.Len())
	return NewTextResponse(text.String(), usage), nil
}

var unsupportedSchemaKeys = []string{"$schema", "$id", "$ref", "$defs", "additionalProperties"}

func openAPISchema(schema any) (any, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	stripKeys(generic)
	return generic, nil
}

func stripKeys(node any) {
	switch v := node.(type) {
	case map[string]any:
		for _, key := range unsupportedSchemaKeys {
			delete(v, key)
		}
		for _, child := range v {
			stripKeys(child)
		}
	case []any:
		for _, child := range v {
			stripKeys(child)
		}
	}
}
