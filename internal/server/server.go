package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"arcticbus/internal/handler"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP server for the tracker API.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// Router registers every route. metricsHandler may be nil.
func Router(h *handler.Handler, metricsHandler http.Handler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(requestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/stops", h.Stops)
		r.Get("/state", h.State)
		r.Post("/locate", h.Locate)
		r.Post("/reconnect", h.Reconnect)
		r.Post("/advisory", h.Advisory)
	})

	// SSE
	r.Get("/sse/state", h.SSEState)

	r.Get("/gtfs-rt/vehicle-positions.pb", h.VehiclePositions)
	r.Get("/healthz", h.Healthz)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	return r
}

// New creates a Server listening on port.
func New(port int, routes http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           routes,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
