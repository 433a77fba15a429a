package sales

import "github.com/go-chi/chi/v5"

// MountRoutes registers sales order and draft routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/next-number", h.NextNumber)
		r.Get("/{id}", h.ShowOrder)
		r.Delete("/{id}", h.DeleteOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Post("/{id}/lines/{lineID}/shipments", h.RecordShipment)
	})
	r.Route("/drafts", func(r chi.Router) {
		r.Get("/", h.ListDrafts)
		r.Post("/", h.SaveDraft)
		r.Get("/{id}", h.ShowDraft)
		r.Put("/{id}", h.UpdateDraft)
		r.Delete("/{id}", h.DeleteDraft)
		r.Post("/{id}/submit", h.SubmitDraft)
	})
}
