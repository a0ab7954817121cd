package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all preview routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler, vaultRoot, resourceDir string) chi.Router {
	h := NewHandler(svc)
	rh := NewResourceHandler(vaultRoot, resourceDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Converted documents (read-only; the source of truth is the export).
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)

	// Search and run diagnostics.
	r.Get("/search", h.Search)
	r.Get("/unresolved", h.Unresolved)
	r.Get("/report", h.Report)

	// Copied image assets.
	r.Get("/resources/{filename}", rh.ServeFile)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
