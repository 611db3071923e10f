// Package api exposes the workflow store, the side panel and the canvas
// viewport over a JSON HTTP API.
//
// Key types:
//   - [Server] holds the editor bridge and viewport the handlers drive
//
// Errors are returned as {"error": "..."} with a status code derived from the
// sentinel the operation failed with.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pmcopilot/internal/editor"
	"pmcopilot/internal/router"
	"pmcopilot/internal/viewport"
	"pmcopilot/internal/workflow"
)

// Server serves the HTTP API.
type Server struct {
	bridge   *editor.Bridge
	viewport *viewport.Controller
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger for request and failure logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer sets the registry served on /metrics. The default is the
// global Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer creates a Server over bridge and vp.
func NewServer(bridge *editor.Bridge, vp *viewport.Controller, opts ...Option) *Server {
	s := &Server{
		bridge:   bridge,
		viewport: vp,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/steps", s.listSteps)
		r.Get("/steps/{id}", s.getStep)
		r.Patch("/steps/{id}", s.patchStep)
		r.Post("/steps/{id}/run", s.runStep)
		r.Get("/steps/{id}/session", s.getSession)

		r.Put("/selection", s.putSelection)
		r.Delete("/selection", s.deleteSelection)
		r.Get("/panel", s.getPanel)

		r.Get("/viewport", s.getViewport)
		r.Post("/viewport/events", s.postViewportEvent)
		r.Post("/viewport/zoom-in", s.viewportAction(s.viewport.ZoomIn))
		r.Post("/viewport/zoom-out", s.viewportAction(s.viewport.ZoomOut))
		r.Post("/viewport/reset", s.viewportAction(s.viewport.Reset))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v before committing the status, so an encoding failure
// is reported as a 500 instead of an empty success.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		w.WriteHeader(code)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("response encode failed", "error", err)
		code = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Error: "failed to encode response"})
	}
	w.WriteHeader(code)
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, code, errorBody{Error: err.Error()})
}

// badRequest marks errors caused by an unreadable request.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// errNoSelection is returned by GET /v1/panel when nothing is selected.
var errNoSelection = errors.New("no step selected")

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrStepNotFound),
		errors.Is(err, router.ErrUnknownStep),
		errors.Is(err, errNoSelection):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNotReady),
		errors.Is(err, editor.ErrUnknownField),
		errors.Is(err, workflow.ErrInvalidField),
		errors.Is(err, workflow.ErrInvalidStatus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, editor.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

// detach keeps request values but not cancellation, for work that must
// outlive the request.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
