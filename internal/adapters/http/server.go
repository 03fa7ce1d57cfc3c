package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signdesk/internal/ports"
	"signdesk/internal/services/documents"
)

type Options struct {
	Log            *slog.Logger
	MaxUploadBytes int64
	// InlineTimeout bounds ?wait=true bakes.
	InlineTimeout time.Duration
	// Ready reports whether backing storage answers. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server exposes the document service over HTTP.
type Server struct {
	docs   *documents.Service
	jobs   ports.JobRepository
	log    *slog.Logger
	opts   Options
	router chi.Router
}

func New(docs *documents.Service, jobs ports.JobRepository, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	if opts.InlineTimeout <= 0 {
		opts.InlineTimeout = 30 * time.Second
	}
	s := &Server{docs: docs, jobs: jobs, log: opts.Log, opts: opts}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Get("/field-types", s.handleFieldTypes)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.handleListDocuments)
		r.Get("/{id}", s.handleGetDocument)
		r.Get("/{id}/recipients", s.handleListRecipients)
		r.Get("/{id}/fields", s.handleListFields)
		r.Get("/{id}/pages/{page}/fields", s.handleListFields)
		r.Get("/{id}/pages/{page}/preview", s.handlePreview)
		r.Get("/{id}/recipients/{rid}/eligibility", s.handleEligibility)
		r.Get("/{id}/audit", s.handleAuditTrail)
		r.Get("/{id}/certificate", s.handleCertificate)

		r.Group(func(r chi.Router) {
			r.Use(RequireActor)

			r.Post("/", s.handleCreateDocument)
			r.Put("/{id}/source", s.handleAttachSource)
			r.Post("/{id}/recipients", s.handleAddRecipient)
			r.Put("/{id}/pages/{page}/fields", s.handleSaveFields)
			r.Post("/{id}/pages/{page}/gestures", s.handleGestures)
			r.Post("/{id}/fields/{fieldID}/duplicate", s.handleDuplicateField)
			r.Post("/{id}/fields/{fieldID}/align", s.handleAlignFields)
			r.Post("/{id}/recipients/{rid}/sign", s.handleSign)
			r.Post("/{id}/recipients/{rid}/decline", s.handleDecline)
			r.Post("/{id}/status", s.handleTransition)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.log.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
