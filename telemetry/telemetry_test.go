package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.ObserveRun("gemini-1.5-flash", OutcomeSuccess, 120*time.Millisecond, 42)
	m.ObserveRun("gemini-1.5-flash", OutcomeRateLimited, 0, 0)
	m.ObserveEvaluation("gemini-1.5-flash", OutcomeSuccess, 4)
	m.ObserveOptimization("gemini-1.5-pro", OutcomeFailure)
	m.SetCards(3, 1)

	assert.InDelta(t, 1, testutil.ToFloat64(m.runsTotal.WithLabelValues("gemini-1.5-flash", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runsTotal.WithLabelValues("gemini-1.5-flash", OutcomeRateLimited)), 0)
	assert.InDelta(t, 42, testutil.ToFloat64(m.tokensTotal.WithLabelValues("gemini-1.5-flash")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.cards), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cardsWithResult), 0)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "promptpilot_runs_total")
	assert.Contains(t, string(body), "promptpilot_optimizations_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("x", OutcomeSuccess, time.Second, 1)
		m.ObserveEvaluation("x", OutcomeFailure, 0)
		m.ObserveOptimization("x", OutcomeSuccess)
		m.SetCards(1, 1)
		m.ObserveHTTP("/api/prompts", http.StatusOK)
		m.WSClientConnected()
		m.WSClientDisconnected()
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "promptpilot"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}
