// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sentipulse/twitter-crawler/internal/crawl"
	"github.com/sentipulse/twitter-crawler/internal/dispatcher"
	"github.com/sentipulse/twitter-crawler/internal/queue"
)

// Server wires HTTP handlers to the dispatcher and task queue.
type Server struct {
	router     chi.Router
	dispatcher *dispatcher.Dispatcher
	tasks      queue.Queue
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(d *dispatcher.Dispatcher, tasks queue.Queue, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dispatcher: d,
		tasks:      tasks,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawls", s.submitCrawl)
		r.Get("/languages", s.listLanguages)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": crawl.SupportedLanguages()})
}

type crawlRequest struct {
	Keyword  string `json:"keyword"`
	Language string `json:"language"`
	Limit    int    `json:"limit"`
	Async    bool   `json:"async"`
}

// submitCrawl runs one keyword crawl. With async set the request is
// enqueued for a worker; otherwise the crawl runs inline and the produced
// posts come back in the response.
func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword required")
		return
	}
	if !crawl.IsSupportedLanguage(req.Language) {
		writeError(w, http.StatusBadRequest, "unsupported language")
		return
	}

	if req.Async {
		if s.tasks == nil {
			writeError(w, http.StatusServiceUnavailable, "task queue not configured")
			return
		}
		queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		item := queue.TaskItem{
			Keyword:   req.Keyword,
			Language:  req.Language,
			Limit:     req.Limit,
			Attempt:   1,
			Submitted: time.Now().Unix(),
		}
		if err := s.tasks.Enqueue(queueCtx, item); err != nil {
			writeError(w, http.StatusInternalServerError, "enqueue crawl failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	posts, err := s.dispatcher.RunSingle(r.Context(), req.Keyword, req.Language, req.Limit)
	if err != nil {
		status := http.StatusInternalServerError
		var langErr *crawl.UnsupportedLanguageError
		switch {
		case errors.Is(err, crawl.ErrInvalidParameter), errors.As(err, &langErr):
			status = http.StatusBadRequest
		case crawl.IsRateLimit(err), errors.Is(err, crawl.ErrBackoffExceeded):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts":    posts,
		"produced": len(posts) > 0,
	})
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
			zap.String("request_id", requestIDFromContext(r.Context())),
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

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
