package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/uploadq/internal/api/middleware"
	"github.com/phrazzld/uploadq/internal/api/shared"
	"github.com/phrazzld/uploadq/internal/auth"
)

// NewRouter registers the control API routes. Every /api route requires a
// bearer token with the control scope.
func NewRouter(handler *UploadHandler, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(logger))

	authMiddleware := middleware.NewAuthMiddleware(validator, auth.ControlScope)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/uploads", handler.Enqueue)
		r.Get("/uploads", handler.List)
		r.Get("/uploads/history", handler.History)
		r.Delete("/uploads/{id}", handler.Abort)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
