package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexustechhub/storefront-service-go/internal/order"
	"github.com/nexustechhub/storefront-service-go/internal/payment"
)

const completedEvent = `{
	"id": "evt_1",
	"type": "payment.completed",
	"data": {
		"session_id": "cs_test_1",
		"amount_total": 32000,
		"currency": "aed",
		"metadata": {
			"cart_id": "cart-1",
			"user_id": "user-1",
			"address_id": "addr-1"
		}
	}
}`

func postWebhook(router http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set(payment.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_RejectsUnsignedPayload(t *testing.T) {
	called := false
	orders := &fakeOrderRepo{
		materializeFunc: func(ctx context.Context, p order.MaterializeParams) (*order.Order, error) {
			called = true
			return nil, nil
		},
	}
	router := newTestRouter(t, nil, orders)

	rec := postWebhook(router, completedEvent, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called, "unverified payload must never reach the order repository")
}

func TestWebhook_RejectsTamperedPayload(t *testing.T) {
	orders := &fakeOrderRepo{}
	router := newTestRouter(t, nil, orders)

	sig := payment.Sign([]byte(completedEvent), "whsec_test", time.Now())
	tampered := completedEvent[:len(completedEvent)-1] + " }"
	rec := postWebhook(router, tampered, sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_MaterializesOrder(t *testing.T) {
	var got order.MaterializeParams
	orders := &fakeOrderRepo{
		materializeFunc: func(ctx context.Context, p order.MaterializeParams) (*order.Order, error) {
			got = p
			return &order.Order{ID: "order-1", Status: order.StatusPaid}, nil
		},
	}
	router := newTestRouter(t, nil, orders)

	sig := payment.Sign([]byte(completedEvent), "whsec_test", time.Now())
	rec := postWebhook(router, completedEvent, sig)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "evt_1", got.EventID)
	assert.Equal(t, "cs_test_1", got.SessionID)
	assert.Equal(t, "cart-1", got.CartID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "addr-1", got.AddressID)
}

func TestWebhook_ReplayIsAcknowledged(t *testing.T) {
	orders := &fakeOrderRepo{
		materializeFunc: func(ctx context.Context, p order.MaterializeParams) (*order.Order, error) {
			return nil, order.ErrAlreadyProcessed
		},
	}
	router := newTestRouter(t, nil, orders)

	sig := payment.Sign([]byte(completedEvent), "whsec_test", time.Now())
	rec := postWebhook(router, completedEvent, sig)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_IgnoresOtherEventTypes(t *testing.T) {
	called := false
	orders := &fakeOrderRepo{
		materializeFunc: func(ctx context.Context, p order.MaterializeParams) (*order.Order, error) {
			called = true
			return nil, nil
		},
	}
	router := newTestRouter(t, nil, orders)

	body := `{"id":"evt_2","type":"payment.failed","data":{"session_id":"cs_test_2"}}`
	sig := payment.Sign([]byte(body), "whsec_test", time.Now())
	rec := postWebhook(router, body, sig)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
}

func TestWebhook_MissingCartMetadata(t *testing.T) {
	router := newTestRouter(t, nil, &fakeOrderRepo{})

	body := `{"id":"evt_3","type":"payment.completed","data":{"session_id":"cs_test_3","metadata":{}}}`
	sig := payment.Sign([]byte(body), "whsec_test", time.Now())
	rec := postWebhook(router, body, sig)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_EmptyCart(t *testing.T) {
	orders := &fakeOrderRepo{
		materializeFunc: func(ctx context.Context, p order.MaterializeParams) (*order.Order, error) {
			return nil, order.ErrEmptyCart
		},
	}
	router := newTestRouter(t, nil, orders)

	sig := payment.Sign([]byte(completedEvent), "whsec_test", time.Now())
	rec := postWebhook(router, completedEvent, sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
