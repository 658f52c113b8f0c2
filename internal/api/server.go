// Package api exposes the engine's control surface: a JSON HTTP API plus
// a websocket event stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"autoloop/internal/approval"
	"autoloop/internal/events"
	"autoloop/internal/orchestrator"
	"autoloop/internal/storage"
)

// Server is the autoloop API server.
type Server struct {
	addr      string
	mux       *http.ServeMux
	logger    *slog.Logger
	engine    *orchestrator.Engine
	queue     *approval.Queue
	store     storage.Store
	publisher events.Publisher
	wsHandler *wsHandler
}

// Config holds server configuration.
type Config struct {
	Addr   string
	Logger *slog.Logger
}

// New creates an API server over a started engine.
func New(cfg Config, engine *orchestrator.Engine, queue *approval.Queue, store storage.Store, pub events.Publisher) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}

	s := &Server{
		addr:      cfg.Addr,
		mux:       http.NewServeMux(),
		logger:    logger,
		engine:    engine,
		queue:     queue,
		store:     store,
		publisher: pub,
	}
	s.wsHandler = newWSHandler(pub, logger)
	s.registerRoutes()
	return s
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)

	s.mux.HandleFunc("POST /api/pause", s.handlePause)
	s.mux.HandleFunc("POST /api/resume", s.handleResume)
	s.mux.HandleFunc("POST /api/trigger", s.handleTrigger)

	s.mux.HandleFunc("GET /api/objectives", s.handleListObjectives)
	s.mux.HandleFunc("POST /api/objectives", s.handleCreateObjective)
	s.mux.HandleFunc("PATCH /api/objectives/{id}", s.handleUpdateObjective)
	s.mux.HandleFunc("DELETE /api/objectives/{id}", s.handleDeleteObjective)

	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("GET /api/approvals", s.handleListApprovals)
	s.mux.HandleFunc("POST /api/tasks/{id}/approve", s.handleApprove)
	s.mux.HandleFunc("POST /api/tasks/{id}/reject", s.handleReject)

	s.mux.HandleFunc("GET /api/cycles", s.handleListCycles)
	s.mux.HandleFunc("GET /api/scans", s.handleListScans)
	s.mux.HandleFunc("GET /api/plans", s.handleListPlans)
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/evals", s.handleListEvaluations)
	s.mux.HandleFunc("GET /api/decisions", s.handleListDecisions)
	s.mux.HandleFunc("GET /api/experiments", s.handleListExperiments)

	s.mux.HandleFunc("GET /api/cost/summary", s.handleCostSummary)
	s.mux.HandleFunc("GET /api/budget/status", s.handleBudgetStatus)

	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("PUT /api/config", s.handleSetConfig)

	s.mux.HandleFunc("GET /ws", s.wsHandler.serveWS)
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve runs the HTTP listener until ctx is cancelled, then drains
// connections.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("api listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
