package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/promptpilot/config"
)

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider("http://mock.api", "mock-model", nil)
	mockProvider := provider.(*MockProvider)

	assert.Equal(t, "mock", provider.Name())
	assert.Equal(t, "http://mock.api", provider.Endpoint())
	assert.True(t, provider.SupportsJSONSchema())

	mockProvider.SetMockResponse("custom mock response")
	mockProvider.SetMockUsage(NewUsage(2, 0, 1, 0))

	response, err := provider.ParseResponse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "custom mock response", response.String())
	assert.Equal(t, int64(3), response.TotalTokens())

	mockProvider.SetMockError(true, "mock error")
	_, err = provider.ParseResponse([]byte("{}"))
	require.Error(t, err)
	assert.Equal(t, "mock error", err.Error())

	mockProvider.SetMockError(false, "")
	reqBody, err := provider.PrepareRequest("test prompt", map[string]any{
		"temperature": 0.7,
	})
	require.NoError(t, err)
	assert.Contains(t, string(reqBody), "test prompt")
	assert.Contains(t, string(reqBody), "temperature")
	assert.Equal(t, []string{"test prompt"}, mockProvider.Prompts())

	cfg := config.NewConfig()
	cfg.Temperature = 0.8
	cfg.MaxTokens = 100
	cfg.Endpoint = "http://127.0.0.1:9999"
	provider.SetDefaultOptions(cfg)
	assert.Equal(t, 0.8, mockProvider.options["temperature"])
	assert.Equal(t, 100, mockProvider.options["max_tokens"])
	assert.Equal(t, "http://127.0.0.1:9999", provider.Endpoint())
}

func TestMockProviderResponses(t *testing.T) {
	provider := NewMockProvider("http://mock.api", "mock-model", nil)
	mockProvider := provider.(*MockProvider)

	responses := []string{
		"First response",
		"Second response",
		"Third response",
	}

	mockProvider.SetResponses(responses, false)
	for _, expected := range responses {
		response, err := provider.ParseResponse([]byte("{}"))
		require.NoError(t, err)
		assert.Equal(t, expected, response.String())
	}

	_, err := provider.ParseResponse([]byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")

	mockProvider.SetResponses(responses, true)
	for i := 0; i < len(responses)*2; i++ {
		response, err := provider.ParseResponse([]byte("{}"))
		require.NoError(t, err)
		assert.Equal(t, responses[i%len(responses)], response.String())
	}
}

func TestRegistry(t *testing.T) {
	registry := GetDefaultRegistry()

	for _, name := range []string{"google", "gemini", "openai", "anthropic", "groq", "deepseek", "mock"} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, IsKnownProvider(name))
			provider, err := registry.Get(name, "test-api-key", "test-model", nil)
			require.NoError(t, err)
			require.NotNil(t, provider)
		})
	}

	_, err := registry.Get("watsonx", "key", "model", nil)
	assert.EqualError(t, err, "unknown provider: watsonx")

	limited := NewProviderRegistry("openai", "nonexistent")
	assert.Equal(t, []string{"openai"}, limited.Names())

	limited.Register("custom", NewMockProvider)
	assert.Equal(t, []string{"custom", "openai"}, limited.Names())
}

func TestNewUsage(t *testing.T) {
	assert.Equal(t, int64(30), NewUsage(10, 0, 20, 0).TotalTokens)
	assert.Equal(t, int64(35), NewUsage(10, 5, 20, 35).TotalTokens)

	var nilResp *Response
	assert.Zero(t, nilResp.TotalTokens())
	assert.Zero(t, NewTextResponse("x", nil).TotalTokens())
}
