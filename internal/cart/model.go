package cart

import (
	"time"

	"github.com/nexustechhub/storefront-service-go/internal/pricing"
)

// Identity names the owner of a cart: an authenticated user (durable) or an
// anonymous browser session (ephemeral). Exactly one of the two is set.
type Identity struct {
	UserID    string
	SessionID string
}

func UserIdentity(id string) Identity    { return Identity{UserID: id} }
func SessionIdentity(id string) Identity { return Identity{SessionID: id} }

func (i Identity) IsZero() bool { return i.UserID == "" && i.SessionID == "" }

type Item struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId"`
	Name           string    `json:"name"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	UnitPrice      float64   `json:"unitPrice"`
	DiscountPct    int       `json:"discountPercentage"`
	UnitDiscounted float64   `json:"unitDiscounted"`
	Quantity       int       `json:"quantity"`
	LineTotal      float64   `json:"lineTotal"`
	AddedAt        time.Time `json:"addedAt"`
}

type Cart struct {
	ID        string  `json:"cartId"`
	UserID    string  `json:"userId,omitempty"`
	SessionID string  `json:"sessionId,omitempty"`
	Items     []Item  `json:"items"`
	Subtotal  float64 `json:"subtotal"`
	ItemCount int     `json:"itemCount"`
}

// Totals returns the cart subtotal (sum of per-line totals, each already
// rounded) and the total unit count.
func Totals(items []Item) (subtotal float64, count int) {
	lineTotals := make([]float64, 0, len(items))
	for _, it := range items {
		lineTotals = append(lineTotals, it.LineTotal)
		count += it.Quantity
	}
	return pricing.Subtotal(lineTotals...), count
}
