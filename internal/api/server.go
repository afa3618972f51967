// Package api provides the diagnostics and producer-facing HTTP surface:
// scheduling, cancellation, pending-state refresh, and audit reports. It
// enforces cross-cutting concerns (request ids, panic recovery, logging)
// before requests reach the handlers.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nudgegate/internal/admission"
	"nudgegate/internal/audit"
	"nudgegate/internal/quota"
	"nudgegate/internal/types"
)

// Server bundles the handler dependencies behind one chi router.
type Server struct {
	ctrl     *admission.Controller
	auditor  *audit.Auditor
	archiver *audit.Archiver
	quota    *quota.Store
	log      types.Logger

	router *chi.Mux
}

// NewServer builds the router with middleware and routes mounted. archiver may
// be nil to disable report archiving.
func NewServer(ctrl *admission.Controller, auditor *audit.Auditor, archiver *audit.Archiver, q *quota.Store, log types.Logger) *Server {
	s := &Server{
		ctrl:     ctrl,
		auditor:  auditor,
		archiver: archiver,
		quota:    q,
		log:      log,
		router:   chi.NewRouter(),
	}

	s.router.Use(s.requestID)
	s.router.Use(s.recoverer)
	s.router.Use(s.logRequests)
	s.mountRoutes()
	return s
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) mountRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/notifications", s.handleSchedule)
		r.Get("/notifications", s.handleListPending)
		r.Delete("/notifications", s.handleCancelAll)
		r.Delete("/notifications/{id}", s.handleCancel)
		r.Post("/notifications/refresh", s.handleRefresh)
		r.Get("/quota", s.handleQuota)
		r.Get("/audit", s.handleAudit)
	})
}

// requestID assigns every request a uuid and stores it on the context.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := types.WithRequestID(r.Context(), id)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverer converts handler panics into structured 500 responses.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic",
					"request_id", types.GetRequestID(r.Context()),
					"path", r.URL.Path, "panic", rec)
				Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected,
					"internal error", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// logRequests emits one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request handled",
			"request_id", types.GetRequestID(r.Context()),
			"method", r.Method, "path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
