package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-backup-etl/internal/domain"
	"github.com/couchcryptid/weather-backup-etl/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) error
}

// Pipeline is the run trigger plus its readiness signal.
type Pipeline interface {
	Runner
	ReadinessChecker
}

// CleanedReader lists the cleaned weather table.
type CleanedReader interface {
	ReadCleanedWeather(ctx context.Context, table string) ([]domain.CleanedWeatherObservation, error)
}

// Options configures the pipeline-facing routes.
type Options struct {
	// RunTimeout bounds a manually triggered run. The run is detached from
	// the request so a client disconnect does not abort it halfway.
	RunTimeout   time.Duration
	CleanedTable string
}

// Server exposes health, readiness, metrics, the manual run trigger and the
// cleaned weather listing.
type Server struct {
	httpServer *http.Server
	pipeline   Pipeline
	cleaned    CleanedReader
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with its routes registered.
func NewServer(addr string, p Pipeline, cleaned CleanedReader, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: opts.RunTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		pipeline: p,
		cleaned:  cleaned,
		opts:     opts,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(p))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/pipeline/run", s.handleRun("pipeline run completed"))
	mux.HandleFunc("POST /ejecutar_pipeline_backup", s.handleRun("backup completed"))
	mux.HandleFunc("GET /api/cleaned", s.handleCleaned)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleRun(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.RunTimeout)
		defer cancel()

		s.logger.Info("manual pipeline run requested", "path", r.URL.Path)
		err := s.pipeline.Run(ctx)
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case err != nil:
			s.logger.Error("manual pipeline run failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "pipeline run failed"})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"message": message})
		}
	}
}

func (s *Server) handleCleaned(w http.ResponseWriter, r *http.Request) {
	rows, err := s.cleaned.ReadCleanedWeather(r.Context(), s.opts.CleanedTable)
	if err != nil {
		s.logger.Error("list cleaned weather failed", "table", s.opts.CleanedTable, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleaned data unavailable"})
		return
	}
	if rows == nil {
		rows = []domain.CleanedWeatherObservation{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
