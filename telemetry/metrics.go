// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// setup shared by the pipeline, the collection and the HTTP service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailure     = "failure"
	OutcomeRejected    = "rejected"
)

// Metrics holds all Prometheus collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	runsTotal          *prometheus.CounterVec
	generationLatency  *prometheus.HistogramVec
	tokensTotal        *prometheus.CounterVec
	evaluationsTotal   *prometheus.CounterVec
	qualityScore       *prometheus.HistogramVec
	optimizationsTotal *prometheus.CounterVec
	cards              prometheus.Gauge
	cardsWithResult    prometheus.Gauge
	httpRequests       *prometheus.CounterVec
	wsClients          prometheus.Gauge

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptpilot_runs_total",
				Help: "Prompt executions by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		generationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptpilot_generation_duration_seconds",
				Help:    "Wall-clock time of the generation call",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptpilot_tokens_total",
				Help: "Tokens reported by the generation capability",
			},
			[]string{"model"},
		),
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptpilot_evaluations_total",
				Help: "Quality evaluations by outcome",
			},
			[]string{"outcome"},
		),
		qualityScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptpilot_quality_score",
				Help:    "Distribution of quality scores",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
			[]string{"model"},
		),
		optimizationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptpilot_optimizations_total",
				Help: "Prompt optimizations by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		cards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promptpilot_cards",
			Help: "Prompt variations in the active collection",
		}),
		cardsWithResult: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promptpilot_cards_with_result",
			Help: "Prompt variations currently holding a result",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptpilot_http_requests_total",
				Help: "HTTP API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promptpilot_ws_clients",
			Help: "Connected websocket subscribers",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.runsTotal,
		m.generationLatency,
		m.tokensTotal,
		m.evaluationsTotal,
		m.qualityScore,
		m.optimizationsTotal,
		m.cards,
		m.cardsWithResult,
		m.httpRequests,
		m.wsClients,
	)
	return m
}

// ObserveRun records one Execute call. latency and tokens are ignored unless
// the outcome is a success.
func (m *Metrics) ObserveRun(model, outcome string, latency time.Duration, tokens int64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(model, outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	m.generationLatency.WithLabelValues(model).Observe(latency.Seconds())
	if tokens > 0 {
		m.tokensTotal.WithLabelValues(model).Add(float64(tokens))
	}
}

func (m *Metrics) ObserveEvaluation(model, outcome string, score int) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.qualityScore.WithLabelValues(model).Observe(float64(score))
	}
}

func (m *Metrics) ObserveOptimization(model, outcome string) {
	if m == nil {
		return
	}
	m.optimizationsTotal.WithLabelValues(model, outcome).Inc()
}

func (m *Metrics) SetCards(total, withResult int) {
	if m == nil {
		return
	}
	m.cards.Set(float64(total))
	m.cardsWithResult.Set(float64(withResult))
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) WSClientConnected() {
	if m != nil {
		m.wsClients.Inc()
	}
}

func (m *Metrics) WSClientDisconnected() {
	if m != nil {
		m.wsClients.Dec()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
