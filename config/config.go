// File: config/config.go

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/teilomillet/promptpilot/utils"
)

// Config drives every component: the generation backend, the evaluator model,
// the HTTP service and the prompt library.
type Config struct {
	Provider          string         `env:"PROMPTPILOT_PROVIDER" envDefault:"google" validate:"required"`
	Model             string         `env:"PROMPTPILOT_MODEL" envDefault:"gemini-1.5-flash" validate:"required"`
	EvaluatorModel    string         `env:"PROMPTPILOT_EVALUATOR_MODEL" envDefault:"gemini-1.5-flash" validate:"required"`
	Models            []string       `env:"PROMPTPILOT_MODELS" envDefault:"gemini-1.5-flash,gemini-1.5-pro,gemini-2.0-flash" envSeparator:"," validate:"min=1,dive,required"`
	Endpoint          string         `env:"PROMPTPILOT_ENDPOINT" validate:"omitempty,url"`
	Temperature       float64        `env:"PROMPTPILOT_TEMPERATURE" envDefault:"0.7" validate:"min=0,max=2"`
	MaxTokens         int            `env:"PROMPTPILOT_MAX_TOKENS" envDefault:"1024" validate:"min=1"`
	Timeout           time.Duration  `env:"PROMPTPILOT_TIMEOUT" envDefault:"60s"`
	MaxRetries        int            `env:"PROMPTPILOT_MAX_RETRIES" envDefault:"0" validate:"min=0"`
	RetryDelay        time.Duration  `env:"PROMPTPILOT_RETRY_DELAY" envDefault:"2s"`
	RequestsPerSecond float64        `env:"PROMPTPILOT_RPS" envDefault:"0" validate:"min=0"`
	Burst             int            `env:"PROMPTPILOT_BURST" envDefault:"1" validate:"min=1"`
	Concurrency       int            `env:"PROMPTPILOT_CONCURRENCY" envDefault:"4" validate:"min=1"`
	LogLevel          utils.LogLevel `env:"PROMPTPILOT_LOG_LEVEL" envDefault:"WARN"`
	LogFormat         string         `env:"PROMPTPILOT_LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
	Addr              string         `env:"PROMPTPILOT_ADDR" envDefault:":8080"`
	Library           string         `env:"PROMPTPILOT_LIBRARY" envDefault:"memory"`
	OTLPEndpoint      string         `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure      bool           `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	APIKeys           map[string]string
	ExtraHeaders      map[string]string
}

// LoadConfig reads a .env file when one exists, then the process environment.
// Any variable ending in _API_KEY is registered as a key for the provider
// named by its prefix (GEMINI_API_KEY -> "gemini").
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIKeys:      make(map[string]string),
		ExtraHeaders: make(map[string]string),
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	loadAPIKeys(cfg)
	return cfg, nil
}

func loadAPIKeys(cfg *Config) {
	for _, envVar := range os.Environ() {
		key, value, found := strings.Cut(envVar, "=")
		if found && value != "" && strings.HasSuffix(strings.ToUpper(key), "_API_KEY") {
			provider := strings.TrimSuffix(strings.ToUpper(key), "_API_KEY")
			cfg.APIKeys[strings.ToLower(provider)] = value
		}
	}
}

// APIKey returns the key for provider. Google's API accepts the same key
// whether it was exported as GOOGLE_API_KEY or GEMINI_API_KEY.
func (c *Config) APIKey(provider string) string {
	provider = strings.ToLower(provider)
	if key := c.APIKeys[provider]; key != "" {
		return key
	}
	switch provider {
	case "google", "gemini", "genai":
		for _, alias := range []string{"gemini", "google", "genai"} {
			if key := c.APIKeys[alias]; key != "" {
				return key
			}
		}
	}
	return ""
}

// HasModel reports whether model is one of the selectable models.
func (c *Config) HasModel(model string) bool {
	for _, m := range c.Models {
		if m == model {
			return true
		}
	}
	return false
}

var validate = validator.New()

// Validate checks the struct constraints declared in the tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type ConfigOption func(*Config)

// NewConfig returns the defaults without touching the environment.
func NewConfig() *Config {
	return &Config{
		Provider:       "google",
		Model:          "gemini-1.5-flash",
		EvaluatorModel: "gemini-1.5-flash",
		Models:         []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash"},
		Temperature:    0.7,
		MaxTokens:      1024,
		Timeout:        60 * time.Second,
		MaxRetries:     0,
		RetryDelay:     2 * time.Second,
		Burst:          1,
		Concurrency:    4,
		LogLevel:       utils.LogLevelWarn,
		LogFormat:      "text",
		Addr:           ":8080",
		Library:        "memory",
		APIKeys:        make(map[string]string),
		ExtraHeaders:   make(map[string]string),
	}
}

func SetProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

func SetModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

func SetEvaluatorModel(model string) ConfigOption {
	return func(c *Config) {
		c.EvaluatorModel = model
	}
}

func SetModels(models ...string) ConfigOption {
	return func(c *Config) {
		c.Models = append([]string(nil), models...)
	}
}

func SetEndpoint(endpoint string) ConfigOption {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

func SetTemperature(temperature float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

func SetMaxTokens(maxTokens int) ConfigOption {
	return func(c *Config) {
		if maxTokens < 1 {
			maxTokens = 1
		}
		c.MaxTokens = maxTokens
	}
}

func SetTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// SetAPIKey stores apiKey for the provider selected at the time the option
// is applied, so order it after SetProvider.
func SetAPIKey(apiKey string) ConfigOption {
	return func(c *Config) {
		if c.APIKeys == nil {
			c.APIKeys = make(map[string]string)
		}
		c.APIKeys[strings.ToLower(c.Provider)] = apiKey
	}
}

func SetMaxRetries(maxRetries int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

func SetRetryDelay(retryDelay time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryDelay = retryDelay
	}
}

// SetRateLimit paces outgoing model calls. rps <= 0 disables pacing.
func SetRateLimit(rps float64, burst int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
		if burst < 1 {
			burst = 1
		}
		c.Burst = burst
	}
}

func SetConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.Concurrency = n
	}
}

func SetLogLevel(level utils.LogLevel) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

func SetLogFormat(format string) ConfigOption {
	return func(c *Config) {
		c.LogFormat = format
	}
}

func SetAddr(addr string) ConfigOption {
	return func(c *Config) {
		c.Addr = addr
	}
}

// SetLibrary selects the prompt library backend: "memory", "sqlite:<path>"
// or "yaml:<path>".
func SetLibrary(spec string) ConfigOption {
	return func(c *Config) {
		c.Library = spec
	}
}

func SetExtraHeaders(headers map[string]string) ConfigOption {
	return func(c *Config) {
		if c.ExtraHeaders == nil {
			c.ExtraHeaders = make(map[string]string)
		}
		for k, v := range headers {
			c.ExtraHeaders[k] = v
		}
	}
}

func ApplyOptions(cfg *Config, options ...ConfigOption) {
	for _, option := range options {
		option(cfg)
	}
}
