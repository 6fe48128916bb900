package order

import "time"

type Status string

const (
	// StatusPaid is set during materialization: by the time the webhook
	// fires, payment has already been captured by the processor.
	StatusPaid Status = "paid"
)

// Item is an immutable snapshot of what was purchased, decoupled from the
// live product row.
type Item struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	LineTotal   float64 `json:"lineTotal"`
}

type Order struct {
	ID               string    `json:"orderId"`
	UserID           string    `json:"userId,omitempty"`
	AddressID        string    `json:"addressId,omitempty"`
	PaymentSessionID string    `json:"paymentSessionId"`
	TotalAmount      float64   `json:"totalAmount"`
	Status           Status    `json:"status"`
	Items            []Item    `json:"items"`
	CreatedAt        time.Time `json:"createdAt"`
}
