package permissions

import (
	"github.com/go-chi/chi/v5"

	"github.com/viper-platform/raps/internal/shared"
)

// MountRoutes registers permission registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermPermissionsView, shared.PermPermissionsEdit))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(shared.PermPermissionsEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}
