package rendezvous

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
)

// Server exposes a Registry over HTTP.
type Server struct {
	router   chi.Router
	registry *Registry
	logger   *slog.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a rendezvous server for a registry.
func NewServer(registry *Registry, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/jobs/{jobID}", func(r chi.Router) {
		r.Use(s.jobCtx)
		r.Get("/", s.handleStatus)
		r.Route("/members/{rank}", func(r chi.Router) {
			r.Post("/join", s.handleJoin)
			r.Post("/release", s.handleRelease)
		})
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug("rendezvous request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// jobCtx rejects requests for any job other than the registry's.
func (s *Server) jobCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if jobID != s.registry.JobID() {
			respondDomainError(w, core.ErrNotFound("job", jobID))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.Status())
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	rank, err := rankParam(r)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	var req JoinRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondDomainError(w, core.ErrValidation(core.CodeInvalidConfig, "invalid join body").WithCause(err))
			return
		}
	}

	m, err := s.registry.Join(rank, req)
	if err != nil {
		s.logger.Warn("join rejected", "rank", rank, "error", err)
		respondDomainError(w, err)
		return
	}
	s.logger.Info("member joined", "rank", rank, "hostname", m.Hostname, "pid", m.PID)
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	rank, err := rankParam(r)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	m, err := s.registry.Release(rank)
	if err != nil {
		s.logger.Warn("release rejected", "rank", rank, "error", err)
		respondDomainError(w, err)
		return
	}
	s.logger.Info("member released", "rank", rank)
	respondJSON(w, http.StatusOK, m)
}

func rankParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "rank")
	rank, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.ErrValidation(core.CodeInvalidRank, "rank is not an integer: "+raw)
	}
	return rank, nil
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Debug("starting rendezvous server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
