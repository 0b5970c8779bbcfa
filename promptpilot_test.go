package promptpilot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/promptpilot/library"
	"github.com/teilomillet/promptpilot/llm"
	"github.com/teilomillet/promptpilot/session"
	"github.com/teilomillet/promptpilot/utils"
)

func offlineConfig(opts ...ConfigOption) *Config {
	cfg := NewConfig()
	ApplyOptions(cfg, append([]ConfigOption{SetProvider("echo"), SetLogLevel(LogLevelOff)}, opts...)...)
	return cfg
}

func TestNewWiresCollection(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, offlineConfig(SetModel("gemini-1.5-pro")))
	require.NoError(t, err)
	defer app.Close(ctx)

	list := app.Prompts.List()
	require.Len(t, list, 1)
	assert.Equal(t, session.SeedPrompt, list[0].Prompt)
	assert.Equal(t, "gemini-1.5-pro", list[0].Model)
	assert.Equal(t, "echo", app.LLM.Name())

	res, err := app.Prompts.Run(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, session.SeedPrompt, res.Text())
}

func TestNewWithoutSeedAndCustomParts(t *testing.T) {
	ctx := context.Background()
	store := library.NewMemoryStore()
	logger := utils.NewMockLogger()

	app, err := New(ctx, offlineConfig(),
		WithoutSeed(),
		WithLLM(llm.NewEcho(nil)),
		WithLibrary(store),
		WithLogger(logger),
	)
	require.NoError(t, err)
	defer app.Close(ctx)

	assert.Empty(t, app.Prompts.List())
	assert.Same(t, store, app.Library)
	assert.True(t, logger.Contains("INFO", "PromptPilot ready"))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), offlineConfig(SetLogFormat("xml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewOpensConfiguredLibrary(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prompts.db")
	app, err := New(ctx, offlineConfig(SetLibrary("sqlite:"+path)))
	require.NoError(t, err)

	_, ok := app.Library.(*library.SQLiteStore)
	assert.True(t, ok)
	require.NoError(t, app.Close(ctx))
}

func TestServerServesModels(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, offlineConfig(SetModels("a", "b")))
	require.NoError(t, err)
	defer app.Close(ctx)

	rec := httptest.NewRecorder()
	app.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["a","b"]`, rec.Body.String())
}

func TestNewLogger(t *testing.T) {
	cfg := offlineConfig(SetLogFormat("json"))
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	_, ok := logger.(*utils.ZapLogger)
	assert.True(t, ok)

	cfg = offlineConfig()
	logger, err = NewLogger(cfg)
	require.NoError(t, err)
	_, ok = logger.(*utils.DefaultLogger)
	assert.True(t, ok)
}
