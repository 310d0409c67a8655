package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all bridge routes mounted.
// authEnabled controls whether Bearer token auth is enforced. Requests must
// come from this server's own page: the Host must be loopback or one of
// allowedHosts, and cross-origin or non-JSON writes are refused.
func NewRouter(h *Handler, authEnabled bool, token string, allowedHosts ...string) chi.Router {
	r := chi.NewRouter()
	r.Use(HostGuard(allowedHosts...))
	r.Use(SameOrigin)
	r.Use(RequireJSON)
	r.Use(AuthMiddleware(authEnabled, token))

	// Preview rendering.
	r.Post("/render", h.Render)

	// Application-wide state and commands.
	r.Get("/state", h.State)
	r.Get("/recent", h.ListRecent)
	r.Post("/quit", h.Quit)

	// Window-scoped operations.
	r.Route("/windows/{windowID}", func(r chi.Router) {
		r.Use(windowCtx(h.broker, h.windows))

		r.Get("/events", h.Events)
		r.Post("/open-dialog", h.OpenDialog)
		r.Post("/open-recent", h.OpenRecent)
		r.Post("/save-file", h.SaveFile)
		r.Post("/export-html-dialog", h.ExportHTMLDialog)
		r.Post("/check-unsaved-changes", h.CheckUnsavedChanges)
		r.Post("/show-in-folder", h.ShowInFolder)
		r.Post("/open-in-default-app", h.OpenInDefaultApp)
	})

	return r
}
