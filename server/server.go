// Package server exposes the trigger API: start a pipeline run, poll its
// status, list pipelines and archived runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	stepchain "github.com/stepchain/stepchain"
	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/runstore"
)

const timeFormat = time.RFC3339

// ============================================================================
// HTTP SERVER
// ============================================================================

// Server is the trigger API server
type Server struct {
	host       string
	port       int
	manager    *RunManager
	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	httpServer *http.Server
}

// Config contains the server's dependencies
type Config struct {
	Server   config.ServerConfig
	Manager  *RunManager
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
}

// New creates a new trigger API server
func New(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		host:     cfg.Server.Host,
		port:     cfg.Server.Port,
		manager:  cfg.Manager,
		logger:   logger,
		gatherer: gatherer,
	}
}

// Handler builds the HTTP router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Get("/pipelines", s.handleListPipelines)
	r.Post("/pipelines/{name}/runs", s.handleTrigger)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleRunStatus)

	return r
}

// Start runs the server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("trigger API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains the server and waits for in-flight runs
func (s *Server) Shutdown() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.manager.Wait()
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": stepchain.Version,
	})
}

func (s *Server) handleListPipelines(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"pipelines": s.manager.Pipelines(),
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var input map[string]interface{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}

	runID, err := s.manager.Trigger(name, input)
	if errors.Is(err, ErrAtCapacity) {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{
		"run_id":   runID,
		"pipeline": name,
		"status":   "running",
	})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	view, err := s.manager.Status(r.Context(), runID)
	if errors.Is(err, runstore.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	views, err := s.manager.List(r.Context(), r.URL.Query().Get("pipeline"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": views})
}

// writeJSON writes the response body. The status line is already on the
// wire when encoding runs, so an encode failure can only be logged.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encoding failed", "status", status, "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
