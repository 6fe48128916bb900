package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/nexustechhub/storefront-service-go/internal/order"
	"github.com/nexustechhub/storefront-service-go/internal/payment"
)

// maxWebhookBody bounds what we read before verifying the signature.
const maxWebhookBody = 1 << 20

type Materializer interface {
	Materialize(ctx context.Context, p order.MaterializeParams) (*order.Order, error)
}

type OrderEventsPublisher interface {
	PublishOrderCreated(ctx context.Context, o *order.Order) error
}

type WebhookHandler struct {
	orders    Materializer
	publisher OrderEventsPublisher
	secret    string
	tolerance time.Duration
	logger    *log.Logger
}

func NewWebhookHandler(orders Materializer, publisher OrderEventsPublisher, secret string, tolerance time.Duration, logger *log.Logger) *WebhookHandler {
	return &WebhookHandler{
		orders:    orders,
		publisher: publisher,
		secret:    secret,
		tolerance: tolerance,
		logger:    logger,
	}
}

// HandlePaymentEvent receives payment processor webhooks. The signature check
// comes before any parsing: an unverifiable payload is never acted on.
// Redelivered events are acknowledged without side effects so the processor
// stops retrying.
func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	sig := r.Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(body, sig, h.secret, h.tolerance); err != nil {
		h.logger.Printf("webhook signature rejected: %v", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed event")
		return
	}

	if ev.Type != payment.EventPaymentCompleted {
		// Not ours to handle; acknowledge so the processor stops retrying.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	cartID := ev.Data.Metadata["cart_id"]
	if cartID == "" {
		writeError(w, http.StatusBadRequest, "event missing cart_id metadata")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.orders.Materialize(ctx, order.MaterializeParams{
		EventID:   ev.ID,
		SessionID: ev.Data.SessionID,
		CartID:    cartID,
		UserID:    ev.Data.Metadata["user_id"],
		AddressID: ev.Data.Metadata["address_id"],
	})
	if err != nil {
		switch {
		case errors.Is(err, order.ErrAlreadyProcessed):
			writeJSON(w, http.StatusOK, map[string]string{"status": "already processed"})
		case errors.Is(err, order.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty or missing")
		default:
			h.logger.Printf("materialize order for event %s: %v", ev.ID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// The order is committed; a publish failure must not make the processor
	// redeliver, so it is logged and swallowed.
	if h.publisher != nil {
		if err := h.publisher.PublishOrderCreated(ctx, o); err != nil {
			h.logger.Printf("publish OrderCreated for order %s: %v", o.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "orderId": o.ID})
}
