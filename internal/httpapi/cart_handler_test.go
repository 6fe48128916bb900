package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexustechhub/storefront-service-go/internal/cart"
	"github.com/nexustechhub/storefront-service-go/internal/catalog"
	"github.com/nexustechhub/storefront-service-go/internal/checkout"
	"github.com/nexustechhub/storefront-service-go/internal/order"
)

const testJWTSecret = "test-secret"

type fakeCartRepo struct {
	getOrCreateFunc func(ctx context.Context, id cart.Identity) (string, error)
	listItemsFunc   func(ctx context.Context, cartID string) ([]cart.Item, error)
	addItemFunc     func(ctx context.Context, cartID, productID string, quantity int) error
	updateItemFunc  func(ctx context.Context, cartID, itemID string, quantity int) error
	removeItemFunc  func(ctx context.Context, cartID, itemID string) error
	clearFunc       func(ctx context.Context, cartID string) error
	mergeFunc       func(ctx context.Context, sessionID, userID string) (string, error)
}

func (f *fakeCartRepo) GetOrCreate(ctx context.Context, id cart.Identity) (string, error) {
	if f.getOrCreateFunc != nil {
		return f.getOrCreateFunc(ctx, id)
	}
	return "cart-1", nil
}

func (f *fakeCartRepo) ListItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	if f.listItemsFunc != nil {
		return f.listItemsFunc(ctx, cartID)
	}
	return nil, nil
}

func (f *fakeCartRepo) AddItem(ctx context.Context, cartID, productID string, quantity int) error {
	if f.addItemFunc != nil {
		return f.addItemFunc(ctx, cartID, productID, quantity)
	}
	return nil
}

func (f *fakeCartRepo) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	if f.updateItemFunc != nil {
		return f.updateItemFunc(ctx, cartID, itemID, quantity)
	}
	return nil
}

func (f *fakeCartRepo) RemoveItem(ctx context.Context, cartID, itemID string) error {
	if f.removeItemFunc != nil {
		return f.removeItemFunc(ctx, cartID, itemID)
	}
	return nil
}

func (f *fakeCartRepo) Clear(ctx context.Context, cartID string) error {
	if f.clearFunc != nil {
		return f.clearFunc(ctx, cartID)
	}
	return nil
}

func (f *fakeCartRepo) Merge(ctx context.Context, sessionID, userID string) (string, error) {
	if f.mergeFunc != nil {
		return f.mergeFunc(ctx, sessionID, userID)
	}
	return "cart-1", nil
}

type fakeOrderRepo struct {
	materializeFunc func(ctx context.Context, p order.MaterializeParams) (*order.Order, error)
	getByIDFunc     func(ctx context.Context, orderID string) (*order.Order, error)
	listByUserFunc  func(ctx context.Context, userID string) ([]order.Order, error)
}

func (f *fakeOrderRepo) Materialize(ctx context.Context, p order.MaterializeParams) (*order.Order, error) {
	if f.materializeFunc != nil {
		return f.materializeFunc(ctx, p)
	}
	return &order.Order{ID: "order-1"}, nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	if f.getByIDFunc != nil {
		return f.getByIDFunc(ctx, orderID)
	}
	return nil, nil
}

func (f *fakeOrderRepo) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	if f.listByUserFunc != nil {
		return f.listByUserFunc(ctx, userID)
	}
	return nil, nil
}

type fakeCatalogRepo struct {
	getFunc func(ctx context.Context, productID string) (catalog.Product, error)
}

func (f *fakeCatalogRepo) Get(ctx context.Context, productID string) (catalog.Product, error) {
	if f.getFunc != nil {
		return f.getFunc(ctx, productID)
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func newTestRouter(t *testing.T, carts cart.Repository, orders order.Repository) http.Handler {
	t.Helper()
	if carts == nil {
		carts = &fakeCartRepo{}
	}
	if orders == nil {
		orders = &fakeOrderRepo{}
	}
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	return NewRouter(Deps{
		Carts:            carts,
		Products:         &fakeCatalogRepo{},
		Orders:           orders,
		Checkout:         checkout.NewService(carts, nil, checkout.Config{Currency: "aed"}),
		JWTSecret:        testJWTSecret,
		WebhookSecret:    "whsec_test",
		WebhookTolerance: 5 * time.Minute,
		Logger:           logger,
	})
}

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return s
}

func TestGetCart_GuestSession(t *testing.T) {
	added := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	carts := &fakeCartRepo{
		getOrCreateFunc: func(ctx context.Context, id cart.Identity) (string, error) {
			assert.Equal(t, "sess-1", id.SessionID)
			assert.Empty(t, id.UserID)
			return "cart-1", nil
		},
		listItemsFunc: func(ctx context.Context, cartID string) ([]cart.Item, error) {
			return []cart.Item{
				{ID: "item-1", ProductID: "prod-1", Name: "iPhone 13 Screen",
					UnitPrice: 100, DiscountPct: 10, UnitDiscounted: 90,
					Quantity: 3, LineTotal: 270, AddedAt: added},
			}, nil
		},
	}
	router := newTestRouter(t, carts, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(HeaderSessionID, "sess-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got cart.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "cart-1", got.ID)
	assert.Equal(t, 270.00, got.Subtotal)
	assert.Equal(t, 3, got.ItemCount)
}

func TestGetCart_AuthenticatedUser(t *testing.T) {
	carts := &fakeCartRepo{
		getOrCreateFunc: func(ctx context.Context, id cart.Identity) (string, error) {
			assert.Equal(t, "user-1", id.UserID)
			return "cart-9", nil
		},
	}
	router := newTestRouter(t, carts, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetCart_NoIdentity(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetCart_BadToken(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	// A session header does not rescue an invalid token.
	req.Header.Set(HeaderSessionID, "sess-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddItem(t *testing.T) {
	t.Run("adds and returns the cart", func(t *testing.T) {
		var gotProduct string
		var gotQty int
		carts := &fakeCartRepo{
			addItemFunc: func(ctx context.Context, cartID, productID string, quantity int) error {
				gotProduct, gotQty = productID, quantity
				return nil
			},
		}
		router := newTestRouter(t, carts, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/cart/items",
			strings.NewReader(`{"productId":"prod-1","quantity":2}`))
		req.Header.Set(HeaderSessionID, "sess-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "prod-1", gotProduct)
		assert.Equal(t, 2, gotQty)
	})

	t.Run("invalid quantity", func(t *testing.T) {
		carts := &fakeCartRepo{
			addItemFunc: func(ctx context.Context, cartID, productID string, quantity int) error {
				return cart.ErrInvalidQuantity
			},
		}
		router := newTestRouter(t, carts, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/cart/items",
			strings.NewReader(`{"productId":"prod-1","quantity":0}`))
		req.Header.Set(HeaderSessionID, "sess-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		carts := &fakeCartRepo{
			addItemFunc: func(ctx context.Context, cartID, productID string, quantity int) error {
				return cart.ErrProductNotFound
			},
		}
		router := newTestRouter(t, carts, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/cart/items",
			strings.NewReader(`{"productId":"ghost","quantity":1}`))
		req.Header.Set(HeaderSessionID, "sess-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing productId", func(t *testing.T) {
		router := newTestRouter(t, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/cart/items",
			strings.NewReader(`{"quantity":1}`))
		req.Header.Set(HeaderSessionID, "sess-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRemoveItem_NotFound(t *testing.T) {
	carts := &fakeCartRepo{
		removeItemFunc: func(ctx context.Context, cartID, itemID string) error {
			return cart.ErrItemNotFound
		},
	}
	router := newTestRouter(t, carts, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/cart/items/item-x", nil)
	req.Header.Set(HeaderSessionID, "sess-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMergeCart(t *testing.T) {
	t.Run("guest cannot merge", func(t *testing.T) {
		router := newTestRouter(t, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/cart/merge",
			strings.NewReader(`{"sessionId":"sess-1"}`))
		req.Header.Set(HeaderSessionID, "sess-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("merges into the user cart", func(t *testing.T) {
		var gotSession, gotUser string
		carts := &fakeCartRepo{
			mergeFunc: func(ctx context.Context, sessionID, userID string) (string, error) {
				gotSession, gotUser = sessionID, userID
				return "user-cart", nil
			},
		}
		router := newTestRouter(t, carts, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/cart/merge",
			strings.NewReader(`{"sessionId":"sess-1"}`))
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "sess-1", gotSession)
		assert.Equal(t, "user-1", gotUser)
	})
}

func TestListOrders_RequiresUser(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set(HeaderSessionID, "sess-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	router := newTestRouter(t, nil, &fakeOrderRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
