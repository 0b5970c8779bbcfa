package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/promptpilot/config"
	"github.com/teilomillet/promptpilot/utils"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.Model)
	assert.Equal(t, "gemini-1.5-flash", cfg.EvaluatorModel)
	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash"}, cfg.Models)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, utils.LogLevelWarn, cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Library)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROMPTPILOT_PROVIDER", "openai")
	t.Setenv("PROMPTPILOT_MODEL", "gpt-4o-mini")
	t.Setenv("PROMPTPILOT_MODELS", "gpt-4o-mini,gpt-4o")
	t.Setenv("PROMPTPILOT_LOG_LEVEL", "debug")
	t.Setenv("PROMPTPILOT_TIMEOUT", "5s")
	t.Setenv("PROMPTPILOT_RPS", "2.5")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, cfg.Models)
	assert.Equal(t, utils.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.InDelta(t, 2.5, cfg.RequestsPerSecond, 1e-9)
	assert.Equal(t, "sk-test", cfg.APIKey("openai"))
	assert.True(t, cfg.HasModel("gpt-4o"))
	assert.False(t, cfg.HasModel("gemini-1.5-pro"))
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROMPTPILOT_LOG_LEVEL", "chatty")

	_, err := config.LoadConfig()
	assert.Error(t, err)
}

func TestGoogleKeyAliases(t *testing.T) {
	cfg := config.NewConfig()
	cfg.APIKeys["gemini"] = "gemini-key"

	assert.Equal(t, "gemini-key", cfg.APIKey("google"))
	assert.Equal(t, "gemini-key", cfg.APIKey("genai"))
	assert.Equal(t, "", cfg.APIKey("anthropic"))
}

func TestApplyOptions(t *testing.T) {
	cfg := config.NewConfig()
	config.ApplyOptions(cfg,
		config.SetProvider("anthropic"),
		config.SetAPIKey("sk-ant-key"),
		config.SetModel("claude-3-5-haiku-latest"),
		config.SetModels("claude-3-5-haiku-latest"),
		config.SetMaxTokens(0),
		config.SetRateLimit(1, 0),
		config.SetExtraHeaders(map[string]string{"X-Trace": "1"}),
	)

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "sk-ant-key", cfg.APIKey("anthropic"))
	assert.Equal(t, 1, cfg.MaxTokens, "max tokens is clamped to 1")
	assert.Equal(t, 1, cfg.Burst, "burst is clamped to 1")
	assert.Equal(t, "1", cfg.ExtraHeaders["X-Trace"])
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		opt  config.ConfigOption
	}{
		{"empty model", config.SetModel("")},
		{"no models", config.SetModels()},
		{"negative retries", config.SetMaxRetries(-1)},
		{"bad log format", config.SetLogFormat("xml")},
		{"bad endpoint", config.SetEndpoint("not a url")},
		{"temperature too high", config.SetTemperature(3)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.NewConfig()
			config.ApplyOptions(cfg, tc.opt)
			assert.Error(t, cfg.Validate())
		})
	}
}
