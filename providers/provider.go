// Package providers implements the hosted model backends used as the
// generation capability. Each provider knows how to build a request body for
// its API, which headers to send and how to read text and token usage back
// out of a response. Transport lives in package llm.
package providers

import (
	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/utils"
)

// Provider defines the interface every backend implements.
type Provider interface {
	Name() string
	Endpoint() string
	Headers() map[string]string
	SetExtraHeaders(extraHeaders map[string]string)
	SetDefaultOptions(cfg *config.Config)
	SetOption(key string, value any)
	SetLogger(logger utils.Logger)

	// SupportsJSONSchema reports whether the API can constrain output to a
	// JSON schema natively. When false the caller appends the schema to the
	// prompt instead.
	SupportsJSONSchema() bool

	PrepareRequest(prompt string, options map[string]any) ([]byte, error)
	PrepareRequestWithSchema(prompt string, options map[string]any, schema any) ([]byte, error)
	ParseResponse(body []byte) (*Response, error)
}

// ProviderConstructor creates a provider bound to one model.
type ProviderConstructor func(apiKey, model string, extraHeaders map[string]string) Provider

func copyHeaders(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
