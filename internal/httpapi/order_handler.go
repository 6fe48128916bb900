package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexustechhub/storefront-service-go/internal/order"
)

type OrderHandler struct {
	repo   order.Repository
	logger *log.Logger
}

func NewOrderHandler(repo order.Repository, logger *log.Logger) *OrderHandler {
	return &OrderHandler{repo: repo, logger: logger}
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.repo.GetByID(ctx, orderID)
	if err != nil {
		h.logger.Printf("load order %s: %v", orderID, err)
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	// Orders are only served to their owner.
	id := IdentityFromContext(r.Context())
	if o.UserID != "" && o.UserID != id.UserID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "order history requires an authenticated user")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := h.repo.ListByUser(ctx, id.UserID)
	if err != nil {
		h.logger.Printf("list orders for %s: %v", id.UserID, err)
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}
