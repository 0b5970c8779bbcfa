package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/utils"
)

// AnthropicProvider implements the Provider interface for the Messages API.
type AnthropicProvider struct {
	apiKey       string
	model        string
	baseURL      string
	extraHeaders map[string]string
	options      map[string]any
	logger       utils.Logger
}

func NewAnthropicProvider(apiKey, model string, extraHeaders map[string]string) Provider {
	provider := &AnthropicProvider{
		apiKey:       apiKey,
		model:        model,
		baseURL:      AnthropicBaseURL,
		extraHeaders: make(map[string]string),
		options:      make(map[string]any),
		logger:       utils.NewNopLogger(),
	}
	copyHeaders(provider.extraHeaders, extraHeaders)
	return provider
}

func (p *AnthropicProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Endpoint() string {
	return strings.TrimRight(p.baseURL, "/") + "/v1/messages"
}

func (p *AnthropicProvider) SetOption(key string, value any) {
	p.options[key] = value
}

func (p *AnthropicProvider) SetDefaultOptions(cfg *config.Config) {
	p.SetOption(KeyTemperature, cfg.Temperature)
	p.SetOption(KeyMaxTokens, cfg.MaxTokens)
	if cfg.Endpoint != "" {
		p.baseURL = cfg.Endpoint
	}
}

// SupportsJSONSchema is false: the schema is carried in the prompt.
func (p *AnthropicProvider) SupportsJSONSchema() bool {
	return false
}

func (p *AnthropicProvider) Headers() map[string]string {
	headers := map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         p.apiKey,
		"anthropic-version": AnthropicVersion,
	}
	copyHeaders(headers, p.extraHeaders)
	return headers
}

func (p *AnthropicProvider) SetExtraHeaders(headers map[string]string) {
	p.extraHeaders = make(map[string]string)
	copyHeaders(p.extraHeaders, headers)
}

func (p *AnthropicProvider) PrepareRequest(prompt string, options map[string]any) ([]byte, error) {
	request := map[string]any{
		"model": p.model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
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
	if sys, ok := options[KeySystemPrompt].(string); ok && sys != "" {
		request["system"] = sys
	}
	// max_tokens is mandatory for this API.
	if _, ok := request[KeyMaxTokens]; !ok {
		request[KeyMaxTokens] = 1024
	}
	return json.Marshal(request)
}

func (p *AnthropicProvider) PrepareRequestWithSchema(prompt string, options map[string]any, schema any) ([]byte, error) {
	return p.PrepareRequest(prompt, options)
}

func (p *AnthropicProvider) ParseResponse(body []byte) (*Response, error) {
	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens          int64 `json:"input_tokens"`
			CacheReadInputTokens int64 `json:"cache_read_input_tokens"`
			OutputTokens         int64 `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("empty response from LLM")
	}

	var text strings.Builder
	for _, content := range response.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}

	p.logger.Debug("Parsed Anthropic response", "stop_reason", response.StopReason)
	usage := NewUsage(response.Usage.InputTokens, response.Usage.CacheReadInputTokens, response.Usage.OutputTokens, 0)
	return NewTextResponse(text.String(), usage), nil
}
