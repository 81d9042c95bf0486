// Package server exposes meeting resolution over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/njt/tzmeet/internal/logutil"
	"github.com/njt/tzmeet/internal/output"
	"github.com/njt/tzmeet/libtzmeet"
)

const maxBodyBytes = 64 << 10

// Resolver resolves one meeting request
type Resolver interface {
	Resolve(ctx context.Context, req *libtzmeet.MeetingRequest) *libtzmeet.MeetingResolution
}

// Server serves the resolve endpoint, health and metrics
type Server struct {
	resolver Resolver
	logger   *slog.Logger
}

// New creates a server backed by resolver
func New(resolver Resolver, logger *slog.Logger) *Server {
	return &Server{
		resolver: resolver,
		logger:   logutil.NoopIfNil(logger),
	}
}

// Handler returns the chi router with all routes mounted
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
	})

	return r
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, output.FormatActionResponse(true, "ok"))
}

// handleResolve answers 200 with a resolution for any well-formed request.
// Degraded resolutions are still 200; only undecodable bodies are rejected.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req libtzmeet.MeetingRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, output.FormatActionResponse(false, "invalid JSON body: "+err.Error()))
		return
	}

	res := s.resolver.Resolve(r.Context(), &req)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = output.WriteJSON(w, v)
}
