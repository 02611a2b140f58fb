package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vbonduro/catchlogs/internal/metrics"
	"github.com/vbonduro/catchlogs/internal/service"
	"github.com/vbonduro/catchlogs/internal/session"
)

// BlobServer is the subset of the photo bucket needed to serve stored images.
type BlobServer interface {
	Name() string
	Private() bool
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
	VerifyToken(path, token string) error
}

type Server struct {
	service  *service.JournalService
	sessions *session.Store
	blobs    BlobServer
	loc      *time.Location
	mux      *http.ServeMux
	logger   *slog.Logger
}

// NewServer wires the journal API. Capture times without an explicit offset
// are interpreted in loc.
func NewServer(svc *service.JournalService, sessions *session.Store, blobs BlobServer, loc *time.Location, logger *slog.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		service:  svc,
		sessions: sessions,
		blobs:    blobs,
		loc:      loc,
		mux:      http.NewServeMux(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /pins", s.handleListPins)
	s.mux.HandleFunc("POST /pins", s.handleCreatePin)
	s.mux.HandleFunc("DELETE /pins/{id}", s.handleAbandonPin)

	s.mux.HandleFunc("GET /entries", s.handleListEntries)
	s.mux.HandleFunc("POST /entries", s.handleCreateEntry)
	s.mux.HandleFunc("GET /entries/{id}", s.handleGetEntry)
	s.mux.HandleFunc("PUT /entries/{id}", s.handleUpdateEntry)
	s.mux.HandleFunc("DELETE /entries/{id}", s.handleDeleteEntry)
	s.mux.HandleFunc("POST /entries/{id}/move", s.handleMoveEntry)

	s.mux.HandleFunc("GET /stats", s.handleStats)

	s.mux.HandleFunc("GET /session/tackle", s.handleGetTackle)
	s.mux.HandleFunc("PUT /session/tackle", s.handleSetTackle)
	s.mux.HandleFunc("DELETE /session/tackle", s.handleClearSession)
	s.mux.HandleFunc("DELETE /account", s.handleDeleteAccount)

	if !s.blobs.Private() {
		s.mux.HandleFunc("GET /storage/v1/object/public/{bucket}/{path...}", s.handlePublicObject)
	}
	s.mux.HandleFunc("GET /storage/v1/object/sign/{bucket}/{path...}", s.handleSignedObject)

	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger logs each request and records it under its route pattern.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(elapsed.Seconds())

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

// ServeHTTP runs the mux behind the middleware chain. The mux sets
// r.Pattern on the shared request, so requestLogger can label by route.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// HTTPServer returns an http.Server for addr that serves s.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
