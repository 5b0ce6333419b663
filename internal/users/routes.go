package users

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the user endpoints under the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/all", h.listAll)
		r.Get("/search", h.search)
		r.Get("/email/{email}", h.getByEmail)
		r.Get("/username/{username}", h.getByUsername)
		r.Get("/exists/email/{email}", h.existsByEmail)
		r.Get("/exists/username/{username}", h.existsByUsername)
		r.Get("/{id}", h.getByID)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/restore", h.restore)
	})
}
