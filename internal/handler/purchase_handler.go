package handler

import (
	"errors"
	"net/http"

	"fsanano/marketplace/internal/model"
	"fsanano/marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PurchaseItem executes the purchase on behalf of the authenticated caller.
// Responds 201 with the created order, or a typed rejection.
func (h *Handler) PurchaseItem(w http.ResponseWriter, r *http.Request) {
	buyerID := UserID(r.Context())
	itemID := chi.URLParam(r, "itemID")

	order, err := h.purchase.Purchase(r.Context(), buyerID, itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// MyPurchases lists the caller's purchases, newest first.
func (h *Handler) MyPurchases(w http.ResponseWriter, r *http.Request) {
	orders, err := h.purchase.OrdersByBuyer(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// MySales lists the caller's sales, newest first.
func (h *Handler) MySales(w http.ResponseWriter, r *http.Request) {
	orders, err := h.purchase.OrdersBySeller(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var storageErr *service.StorageError
	switch {
	case errors.Is(err, service.ErrItemNotFound), errors.Is(err, service.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case service.IsRejection(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.As(err, &storageErr):
		h.log.Error("storage failure", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "temporarily unavailable"})
	default:
		h.log.Error("unhandled error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}
