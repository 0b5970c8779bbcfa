package providers

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/utils"
)

// MockProvider implements the Provider interface for tests. The HTTP round
// trip still happens (against whatever endpoint it was given), but the body
// is ignored and the configured response is returned instead.
type MockProvider struct {
	mu           sync.Mutex
	endpoint     string
	model        string
	extraHeaders map[string]string
	options      map[string]any
	logger       utils.Logger

	responseText  string
	usage         *Usage
	shouldError   bool
	errorMsg      string
	responses     []string
	currentIndex  int
	loopResponses bool
	requests      []string
}

// NewMockProvider creates a new mock provider. Note the first argument is the
// endpoint, not an API key.
func NewMockProvider(endpoint, model string, extraHeaders map[string]string) Provider {
	p := &MockProvider{
		endpoint:     endpoint,
		model:        model,
		extraHeaders: make(map[string]string),
		options:      make(map[string]any),
		logger:       utils.NewNopLogger(),
		responseText: "This is a mock response",
	}
	copyHeaders(p.extraHeaders, extraHeaders)
	return p
}

func (p *MockProvider) SetMockResponse(response string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responseText = response
}

// SetMockUsage sets the usage attached to every response.
func (p *MockProvider) SetMockUsage(usage *Usage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usage = usage
}

func (p *MockProvider) SetMockError(shouldError bool, errorMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shouldError = shouldError
	p.errorMsg = errorMsg
}

// SetResponses configures a list of responses returned in sequence.
func (p *MockProvider) SetResponses(responses []string, loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = responses
	p.currentIndex = 0
	p.loopResponses = loop
}

// Prompts returns every prompt seen by PrepareRequest, in order.
func (p *MockProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

func (p *MockProvider) SetLogger(logger utils.Logger) { p.logger = logger }
func (p *MockProvider) Name() string                  { return "mock" }
func (p *MockProvider) Endpoint() string              { return p.endpoint }
func (p *MockProvider) SupportsJSONSchema() bool      { return true }

func (p *MockProvider) SetOption(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.options[key] = value
}

func (p *MockProvider) SetExtraHeaders(headers map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extraHeaders = make(map[string]string)
	copyHeaders(p.extraHeaders, headers)
}

func (p *MockProvider) Headers() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	copyHeaders(headers, p.extraHeaders)
	return headers
}

func (p *MockProvider) SetDefaultOptions(cfg *config.Config) {
	p.SetOption(KeyTemperature, cfg.Temperature)
	p.SetOption(KeyMaxTokens, cfg.MaxTokens)
	if cfg.Endpoint != "" {
		p.endpoint = cfg.Endpoint
	}
}

func (p *MockProvider) PrepareRequest(prompt string, options map[string]any) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shouldError {
		return nil, errors.New(p.errorMsg)
	}
	p.requests = append(p.requests, prompt)

	requestBody := map[string]any{
		"model":  p.model,
		"prompt": prompt,
	}
	for k, v := range options {
		requestBody[k] = v
	}
	return json.Marshal(requestBody)
}

func (p *MockProvider) PrepareRequestWithSchema(prompt string, options map[string]any, schema any) ([]byte, error) {
	return p.PrepareRequest(prompt, options)
}

func (p *MockProvider) nextResponse() (string, error) {
	if len(p.responses) == 0 {
		return p.responseText, nil
	}
	if p.currentIndex >= len(p.responses) {
		if !p.loopResponses {
			return "", errors.New("mock responses exhausted")
		}
		p.currentIndex = 0
	}
	response := p.responses[p.currentIndex]
	p.currentIndex++
	return response, nil
}

func (p *MockProvider) ParseResponse(body []byte) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shouldError {
		return nil, errors.New(p.errorMsg)
	}
	text, err := p.nextResponse()
	if err != nil {
		return nil, err
	}
	return NewTextResponse(text, p.usage), nil
}
