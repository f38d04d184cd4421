package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches all API routes to the router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/reporting", func(r chi.Router) {
			r.Get("/preview", h.handlePreview)
			r.Route("/batches", func(r chi.Router) {
				r.Get("/", h.handleListBatches)
				r.Post("/", h.handleCreateBatch)
				r.Get("/{batchID}", h.handleGetBatch)
				r.Get("/{batchID}/download", h.handleDownloadBatch)
			})
		})

		r.Route("/consents", func(r chi.Router) {
			r.Get("/{ref}", h.handleGetConsentByRef)
			r.Put("/{ref}", h.handlePutConsentByRef)
		})

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Get("/consent", h.handleGetTenantConsent)
			r.Put("/consent", h.handlePutTenantConsent)
		})
	})
}
