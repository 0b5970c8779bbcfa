package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offline points every command at the echo provider.
func offline(t *testing.T) {
	t.Helper()
	t.Setenv("PROMPTPILOT_PROVIDER", "echo")
	t.Setenv("PROMPTPILOT_MODEL", "gemini-1.5-flash")
	t.Setenv("PROMPTPILOT_LIBRARY", "memory")
	t.Setenv("PROMPTPILOT_LOG_LEVEL", "off")
	t.Setenv("PROMPTPILOT_RPS", "0")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunCommand(t *testing.T) {
	offline(t)

	out, _, err := execute(t, "run", "Write a slogan for a coffee shop")
	require.NoError(t, err)
	assert.Contains(t, out, "Write a slogan for a coffee shop")
	assert.Contains(t, out, "Length: 32")
	assert.Contains(t, out, "Tokens:")
}

func TestRunCommandJSON(t *testing.T) {
	offline(t)

	out, _, err := execute(t, "run", "--json", "Say hi")
	require.NoError(t, err)
	assert.Contains(t, out, `"result": "Say hi"`)
	assert.Contains(t, out, `"length": 6`)
}

func TestRunCommandEmptyPrompt(t *testing.T) {
	offline(t)

	_, _, err := execute(t, "run", "   ")
	require.Error(t, err)
	assert.Equal(t, "Empty Prompt: Please enter a prompt before running.", err.Error())
}

func TestOptimizeCommand(t *testing.T) {
	offline(t)

	out, _, err := execute(t, "optimize", "Write a slogan", "Write a tagline")
	require.NoError(t, err)
	assert.Contains(t, out, "== Prompt 1")
	assert.Contains(t, out, "== Prompt 2")
	assert.Contains(t, out, "Optimized: echo")
}

func TestOptimizeCommandReportsFailures(t *testing.T) {
	offline(t)

	out, _, err := execute(t, "optimize", "Write a slogan", " ")
	require.Error(t, err)
	assert.Contains(t, out, "Empty Prompt: Please enter a prompt to optimize.")
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestBatchCommand(t *testing.T) {
	offline(t)
	dir := t.TempDir()

	input := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(input, []byte(`prompts:
  - prompt: Write a slogan for a coffee shop
    model: gemini-1.5-pro
  - prompt: Write a tagline for a "bakery"
`), 0o644))
	report := filepath.Join(dir, "report.csv")

	out, _, err := execute(t, "batch", "--out", report, input)
	require.NoError(t, err)
	assert.Contains(t, out, "Ran 2 of 2 prompts")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	csv := string(data)
	assert.Contains(t, csv, `"Write a slogan for a coffee shop","","gemini-1.5-pro"`)
	assert.Contains(t, csv, `"Write a tagline for a ""bakery""","","gemini-1.5-flash"`)
}

func TestBatchCommandToStdout(t *testing.T) {
	offline(t)
	input := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(input, []byte("prompts:\n  - prompt: Say hi\n"), 0o644))

	out, _, err := execute(t, "batch", "-o", "-", input)
	require.NoError(t, err)
	assert.Contains(t, out, `"Say hi","","gemini-1.5-flash","Say hi"`)
}

func TestBatchCommandRejectsEmptyFile(t *testing.T) {
	offline(t)
	input := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(input, []byte("prompts: []\n"), 0o644))

	_, _, err := execute(t, "batch", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no prompts")
}

func TestInvalidLogLevel(t *testing.T) {
	offline(t)

	_, _, err := execute(t, "--log-level", "loud", "run", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --log-level")
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")

	require.NoError(t, writeReport(nil, path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("id,prompt,")))

	err = writeReport(nil, filepath.Join(dir, "missing", "report.csv"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create report")
}

func TestBatchCommandRateLimited(t *testing.T) {
	offline(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"code": 429, "status": "RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()
	t.Setenv("PROMPTPILOT_PROVIDER", "google")
	t.Setenv("PROMPTPILOT_ENDPOINT", srv.URL)
	t.Setenv("GEMINI_API_KEY", "test-key")

	dir := t.TempDir()
	input := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(input, []byte("prompts:\n  - prompt: Say hi\n"), 0o644))

	_, stderr, err := execute(t, "batch", "-o", filepath.Join(dir, "report.csv"), input)
	require.Error(t, err)
	assert.Equal(t, "Rate limit exceeded. Please wait a moment before trying again.", err.Error())
	assert.Contains(t, stderr, "Variation 1: Error: Rate limit exceeded.")
}
