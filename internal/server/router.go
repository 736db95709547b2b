package server

import (
	"net/http"

	"adforge/internal/builder"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter は、ミドルウェアとルーティングを統合した http.Handler を構築します。
func NewRouter(h *builder.AppHandlers) http.Handler {
	r := chi.NewRouter()

	setupCommonMiddleware(r)
	setupRoutes(r, h)

	return r
}

func setupCommonMiddleware(r *chi.Mux) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
}

func setupRoutes(r chi.Router, h *builder.AppHandlers) {
	r.Get("/healthz", h.API.Health)

	// --- JSON API ---
	r.Route("/api", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", h.API.CreateRun)
			r.Get("/", h.API.ListRuns)
			r.Get("/{id}", h.API.GetRun)
			r.Post("/{id}/cancel", h.API.CancelRun)
			r.Get("/{id}/contents", h.API.ListRunContents)
		})
		r.Route("/contents", func(r chi.Router) {
			r.Post("/", h.API.GenerateContent)
			r.Get("/", h.API.ListContents)
			r.Get("/{id}", h.API.GetContent)
			r.Post("/{id}/approve", h.API.ApproveContent)
			r.Post("/{id}/reject", h.API.RejectContent)
			r.Get("/{id}/approvals", h.API.ListApprovals)
		})
		r.Route("/critiques", func(r chi.Router) {
			r.Post("/analyze", h.API.AnalyzeMedia)
			r.Get("/", h.API.ListCritiques)
			r.Get("/{id}", h.API.GetCritique)
		})
	})

	// --- Cloud Tasks 専用ルート (Worker 用) ---
	if h.Worker != nil {
		r.Group(func(r chi.Router) {
			r.Use(h.TaskAuth.TaskOIDCVerificationMiddleware)
			r.Post("/tasks/workflow", h.Worker.ProcessTask)
		})
	}
}
