package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexustechhub/storefront-service-go/internal/catalog"
)

type ProductHandler struct {
	repo   catalog.Repository
	logger *log.Logger
}

func NewProductHandler(repo catalog.Repository, logger *log.Logger) *ProductHandler {
	return &ProductHandler{repo: repo, logger: logger}
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Printf("load product %s: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	writeJSON(w, http.StatusOK, p)
}
