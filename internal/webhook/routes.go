package webhook

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the Cafe24 webhook endpoints on the given router.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/api/webhook/cafe24", h.HandleEvent)
	r.Post("/api/webhook/cafe24/verify", h.HandleVerify)
}
