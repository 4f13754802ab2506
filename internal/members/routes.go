package members

import (
	"github.com/go-chi/chi/v5"

	"github.com/viper-platform/raps/internal/shared"
)

// MountRoutes registers member directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermMembersView, shared.PermMembersEdit))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/roles", h.memberships)
		r.Get("/{id}/permissions", h.directGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(shared.PermMembersEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/roles", h.addMembership)
		r.Put("/{id}/roles/{roleID}", h.updateMembership)
		r.Delete("/{id}/roles/{roleID}", h.removeMembership)
		r.Post("/{id}/permissions", h.addDirectGrant)
		r.Put("/{id}/permissions/{permissionID}", h.updateDirectGrant)
		r.Delete("/{id}/permissions/{permissionID}", h.removeDirectGrant)
	})
}
