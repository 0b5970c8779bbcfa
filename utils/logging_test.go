package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"off":     LogLevelOff,
		"ERROR":   LogLevelError,
		"warn":    LogLevelWarn,
		"Warning": LogLevelWarn,
		" info ":  LogLevelInfo,
		"DEBUG":   LogLevelDebug,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestLogLevelUnmarshalText(t *testing.T) {
	var level LogLevel
	require.NoError(t, level.UnmarshalText([]byte("info")))
	assert.Equal(t, LogLevelInfo, level)
	assert.Equal(t, "INFO", level.String())
	assert.Error(t, level.UnmarshalText([]byte("loud")))
}

func TestLoggerImplementations(t *testing.T) {
	var _ Logger = NewLogger(LogLevelInfo)
	var _ Logger = NewNopLogger()
	var _ Logger = NewMockLogger()
	var _ Logger = WrapZap(zap.NewNop())

	// None of these should panic.
	z := WrapZap(zap.NewNop())
	z.Debug("debug", "k", 1)
	z.SetLevel(LogLevelOff)
	z.Error("error")
}

func TestMockLoggerRecords(t *testing.T) {
	logger := NewMockLogger()
	logger.Info("run started", "id", 1)
	logger.Debug("dropping result", "id", 2)

	msgs := logger.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "INFO", msgs[0].Level)
	assert.Equal(t, []any{"id", 1}, msgs[0].KeysAndValues)
	assert.True(t, logger.Contains("DEBUG", "dropping"))
	assert.False(t, logger.Contains("ERROR", "dropping"))

	logger.Clear()
	assert.Empty(t, logger.Messages())
}
