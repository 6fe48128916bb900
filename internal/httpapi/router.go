package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nexustechhub/storefront-service-go/internal/cart"
	"github.com/nexustechhub/storefront-service-go/internal/catalog"
	"github.com/nexustechhub/storefront-service-go/internal/checkout"
	"github.com/nexustechhub/storefront-service-go/internal/order"
)

type Deps struct {
	Carts    cart.Repository
	Products catalog.Repository
	Orders   order.Repository
	Checkout *checkout.Service

	Publisher OrderEventsPublisher

	JWTSecret        string
	WebhookSecret    string
	WebhookTolerance time.Duration

	Logger *log.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(CorrelationID)

	products := NewProductHandler(d.Products, d.Logger)
	carts := NewCartHandler(d.Carts, d.Logger)
	chk := NewCheckoutHandler(d.Checkout, d.Logger)
	orders := NewOrderHandler(d.Orders, d.Logger)
	webhook := NewWebhookHandler(d.Orders, d.Publisher, d.WebhookSecret, d.WebhookTolerance, d.Logger)

	r.Get("/health", healthHandler)
	r.Get("/api/products/{productId}", products.GetProduct)

	// The processor authenticates with its signature, not a user identity.
	r.Post("/webhooks/payment", webhook.HandlePaymentEvent)

	r.Group(func(r chi.Router) {
		r.Use(Identity(d.JWTSecret))

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{itemId}", carts.UpdateItem)
			r.Delete("/items/{itemId}", carts.RemoveItem)
			r.Delete("/", carts.ClearCart)
			r.Post("/merge", carts.MergeCart)
		})

		r.Post("/api/checkout/session", chk.CreateSession)

		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Get("/{orderId}", orders.GetOrder)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "storefront-service",
	})
}
