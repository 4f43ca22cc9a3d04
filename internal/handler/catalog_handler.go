package handler

import (
	"net/http"

	"fsanano/marketplace/internal/model"

	"github.com/go-chi/chi/v5"
)

// ListItems serves the browsable catalog of listed items. The view is cached
// briefly and may lag an in-flight purchase.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListedItems(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetItem serves a single listing.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Item(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
