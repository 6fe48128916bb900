package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nexustechhub/storefront-service-go/internal/pricing"
)

var (
	// ErrAlreadyProcessed signals that the payment event was handled by an
	// earlier delivery and the order already exists.
	ErrAlreadyProcessed = errors.New("payment event already processed")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNotFound         = errors.New("order not found")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MaterializeParams carries the payment event fields needed to turn a cart
// into an order.
type MaterializeParams struct {
	EventID   string
	SessionID string
	CartID    string
	UserID    string
	AddressID string
}

type Repository interface {
	Materialize(ctx context.Context, p MaterializeParams) (*Order, error)
	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// claimEventSQL is the first statement of the materialization transaction.
// The primary key on payment_events makes redelivered webhooks no-ops: a
// duplicate insert affects zero rows and the transaction is abandoned.
const claimEventSQL = `
INSERT INTO payment_events (event_id, processed_at)
VALUES ($1, NOW())
ON CONFLICT (event_id) DO NOTHING`

// materializeItemsSQL locks the product rows for the stock decrement while
// reading the cart lines.
const materializeItemsSQL = `
SELECT ci.product_id, ci.quantity, p.name, p.price, p.discount_percentage
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1
ORDER BY ci.added_at, ci.id
FOR UPDATE OF p`

const insertOrderSQL = `
INSERT INTO orders (id, user_id, address_id, payment_session_id, total_amount, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())`

const insertOrderItemSQL = `
INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const decrementStockSQL = `
UPDATE products SET stock_quantity = stock_quantity - $1 WHERE id = $2`

// Materialize converts a paid cart into a persisted order. Everything runs in
// one transaction: the event claim, the order and item inserts, the stock
// decrement, and the cart deletion either all commit or none do.
func (r *PostgresRepository) Materialize(ctx context.Context, p MaterializeParams) (o *Order, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, claimEventSQL, p.EventID)
	if err != nil {
		return nil, fmt.Errorf("claim payment event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrAlreadyProcessed
		return nil, err
	}

	rows, err := tx.Query(ctx, materializeItemsSQL, p.CartID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}

	var items []Item
	for rows.Next() {
		var (
			it          Item
			discountPct int
		)
		if err = rows.Scan(&it.ProductID, &it.Quantity, &it.ProductName, &it.UnitPrice, &discountPct); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		var line pricing.Line
		line, err = pricing.ComputeLine(it.UnitPrice, discountPct, it.Quantity)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("price item %s: %w", it.ProductID, err)
		}
		it.UnitPrice = line.UnitDiscounted
		it.LineTotal = line.Total
		items = append(items, it)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if len(items) == 0 {
		err = ErrEmptyCart
		return nil, err
	}

	lineTotals := make([]float64, len(items))
	for i, it := range items {
		lineTotals[i] = it.LineTotal
	}
	total := pricing.Subtotal(lineTotals...)

	orderID := uuid.NewString()
	if _, err = tx.Exec(ctx, insertOrderSQL,
		orderID, nullable(p.UserID), nullable(p.AddressID), p.SessionID, total, string(StatusPaid)); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		if _, err = tx.Exec(ctx, insertOrderItemSQL,
			uuid.NewString(), orderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal); err != nil {
			return nil, fmt.Errorf("insert order item %s: %w", it.ProductID, err)
		}
		if _, err = tx.Exec(ctx, decrementStockSQL, it.Quantity, it.ProductID); err != nil {
			return nil, fmt.Errorf("decrement stock %s: %w", it.ProductID, err)
		}
	}

	// Cascade removes the cart's items as well.
	if _, err = tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, p.CartID); err != nil {
		return nil, fmt.Errorf("delete cart: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &Order{
		ID:               orderID,
		UserID:           p.UserID,
		AddressID:        p.AddressID,
		PaymentSessionID: p.SessionID,
		TotalAmount:      total,
		Status:           StatusPaid,
		Items:            items,
	}, nil
}

// nullable maps empty strings to NULL so guest orders don't carry fake keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const getOrderSQL = `
SELECT id, COALESCE(user_id, ''), COALESCE(address_id, ''), payment_session_id,
       total_amount, status, created_at
FROM orders
WHERE id = $1`

const getOrderItemsSQL = `
SELECT product_id, product_name, quantity, unit_price, line_total
FROM order_items
WHERE order_id = $1`

func (r *PostgresRepository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, getOrderSQL, orderID).Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.PaymentSessionID,
		&o.TotalAmount, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}

	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &o, nil
}

const listOrdersSQL = `
SELECT id, COALESCE(user_id, ''), COALESCE(address_id, ''), payment_session_id,
       total_amount, status, created_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC`

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.AddressID, &o.PaymentSessionID,
			&o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return orders, nil
}
