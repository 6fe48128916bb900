package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/nexustechhub/storefront-service-go/internal/checkout"
	"github.com/nexustechhub/storefront-service-go/internal/payment"
)

type CheckoutHandler struct {
	service *checkout.Service
	logger  *log.Logger
}

func NewCheckoutHandler(service *checkout.Service, logger *log.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, logger: logger}
}

type createSessionRequest struct {
	AddressID string `json:"addressId"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	sess, err := h.service.CreateSession(ctx, IdentityFromContext(r.Context()), req.AddressID)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, payment.ErrProcessorUnavailable):
			h.logger.Printf("create checkout session: %v", err)
			writeError(w, http.StatusInternalServerError, "payment processor unavailable")
		default:
			h.logger.Printf("create checkout session: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, createSessionResponse{SessionID: sess.ID, URL: sess.URL})
}
