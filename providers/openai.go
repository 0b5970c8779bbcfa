package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/utils"
)

// OpenAIProvider implements the Provider interface for OpenAI's chat
// completions API and for OpenAI-compatible APIs (Groq, DeepSeek).
type OpenAIProvider struct {
	name         string
	apiKey       string
	model        string
	baseURL      string
	path         string
	extraHeaders map[string]string
	options      map[string]any
	logger       utils.Logger
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(apiKey, model string, extraHeaders map[string]string) Provider {
	return newOpenAICompatible("openai", OpenAIBaseURL, "/v1/chat/completions", apiKey, model, extraHeaders)
}

// NewGroqProvider targets Groq's OpenAI-compatible endpoint.
func NewGroqProvider(apiKey, model string, extraHeaders map[string]string) Provider {
	return newOpenAICompatible("groq", GroqBaseURL, "/v1/chat/completions", apiKey, model, extraHeaders)
}

// NewDeepSeekProvider targets DeepSeek's OpenAI-compatible endpoint.
func NewDeepSeekProvider(apiKey, model string, extraHeaders map[string]string) Provider {
	return newOpenAICompatible("deepseek", DeepSeekBaseURL, "/chat/completions", apiKey, model, extraHeaders)
}

func newOpenAICompatible(name, baseURL, path, apiKey, model string, extraHeaders map[string]string) *OpenAIProvider {
	p := &OpenAIProvider{
		name:         name,
		apiKey:       apiKey,
		model:        model,
		baseURL:      baseURL,
		path:         path,
		extraHeaders: make(map[string]string),
		options:      make(map[string]any),
		logger:       utils.NewNopLogger(),
	}
	copyHeaders(p.extraHeaders, extraHeaders)
	return p
}

func (p *OpenAIProvider) SetOption(key string, value any) {
	p.options[key] = value
}

func (p *OpenAIProvider) SetDefaultOptions(cfg *config.Config) {
	p.SetOption(KeyTemperature, cfg.Temperature)
	p.SetOption(KeyMaxTokens, cfg.MaxTokens)
	if cfg.Endpoint != "" {
		p.baseURL = cfg.Endpoint
	}
	p.logger.Debug("Default options set", "temperature", cfg.Temperature, "max_tokens", cfg.MaxTokens)
}

func (p *OpenAIProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Endpoint() string {
	return strings.TrimRight(p.baseURL, "/") + p.path
}

func (p *OpenAIProvider) SupportsJSONSchema() bool {
	return p.name == "openai"
}

func (p *OpenAIProvider) Headers() map[string]string {
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + p.apiKey,
	}
	copyHeaders(headers, p.extraHeaders)
	return headers
}

func (p *OpenAIProvider) SetExtraHeaders(extraHeaders map[string]string) {
	p.extraHeaders = make(map[string]string)
	copyHeaders(p.extraHeaders, extraHeaders)
}

// needsMaxCompletionTokens reports whether the model rejects max_tokens in
// favour of max_completion_tokens.
func (p *OpenAIProvider) needsMaxCompletionTokens() bool {
	if p.name != "openai" {
		return false
	}
	return strings.HasPrefix(p.model, "o") || strings.HasPrefix(p.model, "gpt-4o") || strings.HasPrefix(p.model, "gpt-5")
}

func (p *OpenAIProvider) createBaseRequest(prompt string, options map[string]any) map[string]any {
	messages := make([]map[string]string, 0, 2)
	if sys, ok := options[KeySystemPrompt].(string); ok && sys != "" {
		messages = append(messages, map[string]string{"role": "system", "content": sys})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	request := map[string]any{
		"model":    p.model,
		"messages": messages,
	}
	for k, v := range p.options {
		request[k] = v
	}
	for k, v := range options {
		if k == KeySystemPrompt {
			continue
		}
		request[k] = v
	}
	if p.needsMaxCompletionTokens() {
		if v, ok := request[KeyMaxTokens]; ok {
			delete(request, KeyMaxTokens)
			request["max_completion_tokens"] = v
		}
	}
	return request
}

func (p *OpenAIProvider) PrepareRequest(prompt string, options map[string]any) ([]byte, error) {
	return json.Marshal(p.createBaseRequest(prompt, options))
}

func (p *OpenAIProvider) PrepareRequestWithSchema(prompt string, options map[string]any, schema any) ([]byte, error) {
	request := p.createBaseRequest(prompt, options)
	request["response_format"] = map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "response",
			"schema": schema,
		},
	}
	return json.Marshal(request)
}

func (p *OpenAIProvider) ParseResponse(body []byte) (*Response, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens        int64 `json:"prompt_tokens"`
			CompletionTokens    int64 `json:"completion_tokens"`
			TotalTokens         int64 `json:"total_tokens"`
			PromptTokensDetails *struct {
				CachedTokens int64 `json:"cached_tokens"`
			} `json:"prompt_tokens_details,omitempty"`
		} `json:"usage,omitempty"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	var usage *Usage
	if u := response.Usage; u != nil {
		var cached int64
		if u.PromptTokensDetails != nil {
			cached = u.PromptTokensDetails.CachedTokens
		}
		usage = NewUsage(u.PromptTokens, cached, u.CompletionTokens, u.TotalTokens)
	}
	return NewTextResponse(response.Choices[0].Message.Content, usage), nil
}
