// Package server exposes the collection, analytics, export and prompt
// library over HTTP/JSON, plus a websocket stream of collection snapshots.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/teilomillet/promptpilot/export"
	"github.com/teilomillet/promptpilot/library"
	"github.com/teilomillet/promptpilot/optimizer"
	"github.com/teilomillet/promptpilot/pipeline"
	"github.com/teilomillet/promptpilot/session"
	"github.com/teilomillet/promptpilot/telemetry"
	"github.com/teilomillet/promptpilot/utils"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type Server struct {
	collection *session.Collection
	library    library.Store
	models     []string
	metrics    *telemetry.Metrics
	logger     utils.Logger
	tracing    []otelhttp.Option
}

type Option func(*Server)

// WithModels restricts the models a variation may select.
func WithModels(models []string) Option {
	return func(s *Server) { s.models = slices.Clone(models) }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracerProvider traces requests on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		if tp != nil {
			s.tracing = append(s.tracing, otelhttp.WithTracerProvider(tp))
		}
	}
}

func WithLogger(logger utils.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(c *session.Collection, lib library.Store, opts ...Option) *Server {
	s := &Server{
		collection: c,
		library:    lib,
		logger:     utils.NewNopLogger(),
	}
	if s.library == nil {
		s.library = library.NewMemoryStore()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed and instrumented HTTP handler. Requests are
// traced with otelhttp and counted in the Prometheus metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/prompts", s.handleListPrompts)
	mux.HandleFunc("POST /api/prompts", s.handleAddPrompt)
	mux.HandleFunc("PATCH /api/prompts/{id}", s.handleUpdatePrompt)
	mux.HandleFunc("DELETE /api/prompts/{id}", s.handleDeletePrompt)
	mux.HandleFunc("POST /api/prompts/{id}/run", s.handleRun)
	mux.HandleFunc("POST /api/prompts/{id}/optimize", s.handleOptimize)
	mux.HandleFunc("POST /api/prompts/{id}/optimize/apply", s.handleApplyOptimization)
	mux.HandleFunc("POST /api/prompts/run-all", s.handleRunAll)

	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	mux.HandleFunc("GET /api/export.csv", s.handleExport)
	mux.HandleFunc("GET /api/models", s.handleModels)

	mux.HandleFunc("GET /api/library", s.handleListLibrary)
	mux.HandleFunc("POST /api/library", s.handleSaveToLibrary)
	mux.HandleFunc("DELETE /api/library/{id}", s.handleDeleteFromLibrary)
	mux.HandleFunc("POST /api/library/{id}/load", s.handleLoadFromLibrary)

	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return otelhttp.NewHandler(s.instrument(mux), "promptpilot.http", s.tracing...)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(route, rec.status)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// detach keeps the request's values but not its cancellation: a run started
// by a client finishes and updates the card even if that client goes away.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, pipeline.Notice{Title: "Bad Request", Message: err.Error()})
}

// writeError maps a domain error to a status code and a user-facing notice.
func (s *Server) writeError(w http.ResponseWriter, action pipeline.Action, err error) {
	var cerr *pipeline.CapabilityError
	switch {
	case errors.Is(err, pipeline.ErrEmptyInput):
		writeJSON(w, http.StatusBadRequest, pipeline.Describe(action, err))
	case errors.Is(err, session.ErrNotFound), errors.Is(err, library.ErrNotFound):
		writeJSON(w, http.StatusNotFound, pipeline.Notice{Title: "Not Found", Message: err.Error()})
	case errors.Is(err, session.ErrBusy):
		writeJSON(w, http.StatusConflict, pipeline.Notice{Title: "Busy", Message: "This prompt is already running."})
	case pipeline.IsRateLimited(err):
		writeJSON(w, http.StatusTooManyRequests, pipeline.Describe(action, err))
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusBadGateway, pipeline.Describe(action, err))
	default:
		s.logger.Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, pipeline.Notice{Title: "Error", Message: "Internal error."})
	}
}

func (s *Server) handleListPrompts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collection.List())
}

func (s *Server) handleAddPrompt(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, s.collection.Add())
}

type patchRequest struct {
	Prompt             *string `json:"prompt"`
	EvaluationCriteria *string `json:"evaluationCriteria"`
	Model              *string `json:"model" validate:"omitempty,min=1"`
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	if req.Model != nil && len(s.models) > 0 && !slices.Contains(s.models, *req.Model) {
		s.badRequest(w, fmt.Errorf("unknown model %q", *req.Model))
		return
	}

	patch := session.Patch{Prompt: req.Prompt, EvaluationCriteria: req.EvaluationCriteria, Model: req.Model}
	if !s.collection.Update(id, patch) {
		s.writeError(w, pipeline.ActionRun, session.ErrNotFound)
		return
	}
	v, _ := s.collection.Get(id)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if !s.collection.Remove(id) {
		s.writeError(w, pipeline.ActionRun, session.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if _, err := s.collection.Run(detach(r), id); err != nil {
		s.writeError(w, pipeline.ActionRun, err)
		return
	}
	v, ok := s.collection.Get(id)
	if !ok {
		// Removed while running; the result was discarded.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	suggestion, err := s.collection.Optimize(detach(r), id)
	if err != nil {
		s.writeError(w, pipeline.ActionOptimize, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

func (s *Server) handleApplyOptimization(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var suggestion optimizer.Suggestion
	if err := decodeJSON(w, r, &suggestion); err != nil {
		s.badRequest(w, err)
		return
	}
	if !s.collection.ApplyOptimization(id, suggestion) {
		s.writeError(w, pipeline.ActionOptimize, session.ErrNotFound)
		return
	}
	v, _ := s.collection.Get(id)
	writeJSON(w, http.StatusOK, v)
}

type runOutcome struct {
	ID     int                       `json:"id"`
	Result *pipeline.ExecutionResult `json:"result,omitempty"`
	Error  *pipeline.Notice          `json:"error,omitempty"`
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	outcomes := s.collection.RunAll(detach(r))
	out := make([]runOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		ro := runOutcome{ID: o.ID, Result: o.Result}
		if o.Err != nil {
			n := pipeline.Describe(pipeline.ActionRun, o.Err)
			ro.Error = &n
		}
		out = append(out, ro)
	}
	writeJSON(w, http.StatusOK, out)
}

type analyticsResponse struct {
	Points  []session.AnalyticsPoint `json:"points"`
	Summary session.Summary          `json:"summary"`
}

func analyticsFor(variations []session.PromptVariation) analyticsResponse {
	points := session.Analytics(variations)
	return analyticsResponse{Points: points, Summary: session.Summarize(points)}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, analyticsFor(s.collection.List()))
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	if err := export.WriteCSV(w, s.collection.List()); err != nil {
		s.logger.Warn("CSV export failed", "error", err)
	}
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	models := s.models
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	list, err := s.library.List(r.Context())
	if err != nil {
		s.writeError(w, pipeline.ActionRun, err)
		return
	}
	if list == nil {
		list = []library.SavedPromptVariation{}
	}
	writeJSON(w, http.StatusOK, list)
}

type saveRequest struct {
	VariationID int `json:"variationId" validate:"required,min=1"`
}

func (s *Server) handleSaveToLibrary(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	snap, ok := s.collection.ToSaved(req.VariationID)
	if !ok {
		s.writeError(w, pipeline.ActionRun, session.ErrNotFound)
		return
	}
	saved, err := s.library.Save(r.Context(), snap)
	if err != nil {
		s.writeError(w, pipeline.ActionRun, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeleteFromLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.library.Delete(r.Context(), id); err != nil {
		s.writeError(w, pipeline.ActionRun, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadFromLibrary copies a saved entry into the card named by the
// target query parameter, or into a new card when target is absent.
func (s *Server) handleLoadFromLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	saved, err := s.library.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, pipeline.ActionRun, err)
		return
	}

	var target int
	if raw := r.URL.Query().Get("target"); raw != "" {
		target, err = strconv.Atoi(raw)
		if err != nil {
			s.badRequest(w, fmt.Errorf("invalid target %q", raw))
			return
		}
	} else {
		target = s.collection.Add().ID
	}

	if !s.collection.LoadSaved(target, saved) {
		s.writeError(w, pipeline.ActionRun, session.ErrNotFound)
		return
	}
	v, _ := s.collection.Get(target)
	writeJSON(w, http.StatusOK, v)
}
