package providers

// Option keys shared by providers.
const (
	// KeySystemPrompt is the common key for system prompts across providers
	KeySystemPrompt = "system_prompt"

	KeyTemperature = "temperature"
	KeyMaxTokens   = "max_tokens"
)

// Default API base URLs. config.Endpoint overrides them, which is how tests
// point a provider at an httptest server.
const (
	GeminiBaseURL    = "https://generativelanguage.googleapis.com"
	OpenAIBaseURL    = "https://api.openai.com"
	AnthropicBaseURL = "https://api.anthropic.com"
	GroqBaseURL      = "https://api.groq.com/openai"
	DeepSeekBaseURL  = "https://api.deepseek.com"

	AnthropicVersion = "2023-06-01"
)
