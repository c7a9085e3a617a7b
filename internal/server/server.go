// Package server exposes the qaflow HTTP API: health, the incomplete
// work queue, prompt generation, and result submission.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Server is the qaflow HTTP API service
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates the API server around the given handlers
func New(addr string, h *Handlers, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /incomplete-tests", h.IncompleteTests)
	mux.HandleFunc("POST /get-test-prompt", h.GetTestPrompt)
	mux.HandleFunc("POST /send-test-results", h.SendTestResults)

	handler := RequestID(RequestLogger(log)(mux))

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		logger: log,
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
