package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexustechhub/storefront-service-go/internal/cart"
)

type CartHandler struct {
	repo   cart.Repository
	logger *log.Logger
}

func NewCartHandler(repo cart.Repository, logger *log.Logger) *CartHandler {
	return &CartHandler{repo: repo, logger: logger}
}

// loadCart resolves the caller's cart and assembles it with priced lines and
// totals. Used by every read-back response.
func (h *CartHandler) loadCart(ctx context.Context, id cart.Identity) (*cart.Cart, error) {
	cartID, err := h.repo.GetOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := h.repo.ListItems(ctx, cartID)
	if err != nil {
		return nil, err
	}

	subtotal, count := cart.Totals(items)
	return &cart.Cart{
		ID:        cartID,
		UserID:    id.UserID,
		SessionID: id.SessionID,
		Items:     items,
		Subtotal:  subtotal,
		ItemCount: count,
	}, nil
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.loadCart(ctx, IdentityFromContext(r.Context()))
	if err != nil {
		h.fail(w, err, "load cart")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := IdentityFromContext(r.Context())
	cartID, err := h.repo.GetOrCreate(ctx, id)
	if err != nil {
		h.fail(w, err, "resolve cart")
		return
	}

	if err := h.repo.AddItem(ctx, cartID, req.ProductID, req.Quantity); err != nil {
		h.fail(w, err, "add item")
		return
	}

	c, err := h.loadCart(ctx, id)
	if err != nil {
		h.fail(w, err, "load cart")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := IdentityFromContext(r.Context())
	cartID, err := h.repo.GetOrCreate(ctx, id)
	if err != nil {
		h.fail(w, err, "resolve cart")
		return
	}

	if err := h.repo.UpdateItemQuantity(ctx, cartID, itemID, req.Quantity); err != nil {
		h.fail(w, err, "update item")
		return
	}

	c, err := h.loadCart(ctx, id)
	if err != nil {
		h.fail(w, err, "load cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := IdentityFromContext(r.Context())
	cartID, err := h.repo.GetOrCreate(ctx, id)
	if err != nil {
		h.fail(w, err, "resolve cart")
		return
	}

	if err := h.repo.RemoveItem(ctx, cartID, itemID); err != nil {
		h.fail(w, err, "remove item")
		return
	}

	c, err := h.loadCart(ctx, id)
	if err != nil {
		h.fail(w, err, "load cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := IdentityFromContext(r.Context())
	cartID, err := h.repo.GetOrCreate(ctx, id)
	if err != nil {
		h.fail(w, err, "resolve cart")
		return
	}

	if err := h.repo.Clear(ctx, cartID); err != nil {
		h.fail(w, err, "clear cart")
		return
	}

	c, err := h.loadCart(ctx, id)
	if err != nil {
		h.fail(w, err, "load cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type mergeRequest struct {
	SessionID string `json:"sessionId"`
}

// MergeCart folds the guest cart named in the request into the authenticated
// caller's cart. Guests cannot merge.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "merge requires an authenticated user")
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.repo.Merge(ctx, req.SessionID, id.UserID); err != nil {
		h.fail(w, err, "merge cart")
		return
	}

	c, err := h.loadCart(ctx, id)
	if err != nil {
		h.fail(w, err, "load cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// fail maps repository errors onto HTTP statuses. Unknown errors are logged
// with detail and reported generically.
func (h *CartHandler) fail(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
	case errors.Is(err, cart.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, cart.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "cart item not found")
	case errors.Is(err, cart.ErrNoIdentity):
		writeError(w, http.StatusUnauthorized, "missing identity")
	default:
		h.logger.Printf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
