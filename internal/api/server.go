// Package api exposes the read-only HTTP interface over a mirrored
// snapshot.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/metrics"
)

const requestTimeout = 30 * time.Second

// Server wires HTTP handlers to the snapshot store.
type Server struct {
	router chi.Router
	store  hackmd.Store
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store hackmd.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/pages", func(r chi.Router) {
			r.Get("/", s.listPages)
			r.Get("/{page_id}", s.getPage)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready only once a snapshot exists to serve.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	exists, err := s.store.Exists(r.Context())
	if err != nil {
		s.logger.Error("snapshot check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "snapshot check failed")
		return
	}
	if !exists {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.loadPages(w, r)
	if pages == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	pages, err := s.loadPages(w, r)
	if pages == nil || err != nil {
		return
	}
	pageID := chi.URLParam(r, "page_id")
	page, ok := pages.ByID(pageID)
	if !ok {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": page})
}

// loadPages reads the snapshot and writes the error response itself on
// failure, returning nil pages so handlers can bail out.
func (s *Server) loadPages(w http.ResponseWriter, r *http.Request) (hackmd.PageList, error) {
	exists, err := s.store.Exists(r.Context())
	if err != nil {
		s.logger.Error("snapshot check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "snapshot check failed")
		return nil, err
	}
	if !exists {
		writeError(w, http.StatusNotFound, "no snapshot available")
		return nil, nil
	}
	pages, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Error("snapshot load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "snapshot load failed")
		return nil, err
	}
	if pages == nil {
		pages = hackmd.PageList{}
	}
	return pages, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
