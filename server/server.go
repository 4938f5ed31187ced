// Package server exposes the racing operations over HTTP when running
// in server mode.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/qbitrace/ledger"
	"github.com/s0up4200/qbitrace/race"
	"github.com/s0up4200/qbitrace/task"
)

const (
	shutdownTimeout = 10 * time.Second
	joinTimeout     = 5 * time.Second
)

// Server wires HTTP routes to the race orchestrator and task manager.
type Server struct {
	orchestrator *race.Orchestrator
	tasks        *task.Manager
	ledger       *ledger.Ledger
	logger       zerolog.Logger
	port         int
}

// New creates a Server.
func New(orchestrator *race.Orchestrator, tasks *task.Manager, ledger *ledger.Ledger, port int, logger zerolog.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		tasks:        tasks,
		ledger:       ledger,
		logger:       logger,
		port:         port,
	}
}

// Run serves until the context is cancelled, then cancels the running
// tasks, waits for them, and shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	s.logger.Info().Int("port", s.port).Msg("Starting server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info().Msg("Shutting down, cancelling running tasks")
		s.tasks.CancelAll()
		s.tasks.JoinAll(joinTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
