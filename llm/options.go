package llm

// GenerateOption is a function type for configuring generation behavior.
type GenerateOption func(*GenerateConfig)

// GenerateConfig holds per-call settings.
type GenerateConfig struct {
	// Model overrides the configured default model for this call.
	Model string

	SystemPrompt string

	// StructuredResponseSchema, when non-nil, requests JSON output matching
	// the schema. Providers with native support receive it directly; others
	// get it appended to the prompt.
	StructuredResponseSchema any
}

func WithModel(model string) GenerateOption {
	return func(cfg *GenerateConfig) {
		cfg.Model = model
	}
}

func WithSystemPrompt(prompt string) GenerateOption {
	return func(cfg *GenerateConfig) {
		cfg.SystemPrompt = prompt
	}
}

// WithStructuredResponse requests output conforming to schema, which may be a
// *jsonschema.Schema, a map or any JSON-marshalable value.
func WithStructuredResponse(schema any) GenerateOption {
	return func(cfg *GenerateConfig) {
		cfg.StructuredResponseSchema = schema
	}
}

// WithStructuredResponseSchema derives the schema from the struct type T.
func WithStructuredResponseSchema[T any]() GenerateOption {
	return func(cfg *GenerateConfig) {
		cfg.StructuredResponseSchema = GenerateJSONSchema(new(T))
	}
}

func newGenerateConfig(defaultModel string, opts []GenerateOption) *GenerateConfig {
	cfg := &GenerateConfig{Model: defaultModel}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return cfg
}
