package roles

import (
	"github.com/go-chi/chi/v5"

	"github.com/viper-platform/raps/internal/shared"
)

// MountRoutes registers role administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermRolesView, shared.PermRolesEdit))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/permissions", h.grants)
		r.Get("/{id}/members", h.members)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(shared.PermRolesEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
		r.Post("/{id}/permissions", h.grant)
		r.Put("/{id}/permissions", h.setGrants)
		r.Put("/{id}/permissions/{permissionID}", h.updateGrant)
		r.Delete("/{id}/permissions/{permissionID}", h.revoke)
	})
}
