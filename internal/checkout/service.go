package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexustechhub/storefront-service-go/internal/cart"
	"github.com/nexustechhub/storefront-service-go/internal/payment"
	"github.com/nexustechhub/storefront-service-go/internal/pricing"
)

var ErrEmptyCart = errors.New("cart is empty")

// SessionCreator is the processor-facing slice of payment.Client.
type SessionCreator interface {
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
}

type Config struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Service turns the current cart into a hosted checkout session. The cart id
// and identity travel as opaque session metadata so the webhook handler can
// recover them after payment.
type Service struct {
	carts     cart.Repository
	processor SessionCreator
	cfg       Config
}

func NewService(carts cart.Repository, processor SessionCreator, cfg Config) *Service {
	return &Service{carts: carts, processor: processor, cfg: cfg}
}

func (s *Service) CreateSession(ctx context.Context, id cart.Identity, addressID string) (*payment.Session, error) {
	cartID, err := s.carts.GetOrCreate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve cart: %w", err)
	}

	items, err := s.carts.ListItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	lineItems := make([]payment.LineItem, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, payment.LineItem{
			Name:       it.Name,
			UnitAmount: pricing.MinorUnits(it.UnitDiscounted),
			Quantity:   it.Quantity,
		})
	}

	sess, err := s.processor.CreateSession(ctx, payment.SessionRequest{
		Currency:   s.cfg.Currency,
		LineItems:  lineItems,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
		Metadata: map[string]string{
			"cart_id":    cartID,
			"user_id":    id.UserID,
			"address_id": addressID,
		},
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}
