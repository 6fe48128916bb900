package cart

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
	ErrNoIdentity      = errors.New("neither user nor session identity provided")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository interface {
	GetOrCreate(ctx context.Context, id Identity) (string, error)
	ListItems(ctx context.Context, cartID string) ([]Item, error)
	AddItem(ctx context.Context, cartID, productID string, quantity int) error
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, itemID string) error
	Clear(ctx context.Context, cartID string) error
	Merge(ctx context.Context, sessionID, userID string) (string, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// identityColumn maps an Identity onto the carts column that keys it.
func identityColumn(id Identity) (column, key string) {
	if id.UserID != "" {
		return "user_id", id.UserID
	}
	return "session_id", id.SessionID
}

// GetOrCreate resolves the active cart for an identity, creating one lazily.
// Concurrent creators are serialized by the partial unique indexes on
// carts(user_id) and carts(session_id): the loser of the insert race falls
// back to selecting the winner's row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, id Identity) (string, error) {
	if id.IsZero() {
		return "", ErrNoIdentity
	}
	return getOrCreate(ctx, r.pool, id)
}

func getOrCreate(ctx context.Context, q querier, id Identity) (string, error) {
	column, key := identityColumn(id)

	sel := fmt.Sprintf(`SELECT id FROM carts WHERE %s = $1`, column)

	var cartID string
	err := q.QueryRow(ctx, sel, key).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("select cart: %w", err)
	}

	ins := fmt.Sprintf(`
INSERT INTO carts (id, %s, created_at, updated_at)
VALUES ($1, $2, NOW(), NOW())
ON CONFLICT (%s) WHERE %s IS NOT NULL DO NOTHING
RETURNING id`, column, column, column)

	err = q.QueryRow(ctx, ins, uuid.NewString(), key).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("insert cart: %w", err)
	}

	// Lost the creation race; the row exists now.
	if err := q.QueryRow(ctx, sel, key).Scan(&cartID); err != nil {
		return "", fmt.Errorf("reselect cart: %w", err)
	}
	return cartID, nil
}

const listItemsSQL = `
SELECT ci.id, ci.product_id, ci.quantity, ci.added_at,
       p.name, COALESCE(p.image_url, ''), p.price, p.discount_percentage
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1
ORDER BY ci.added_at, ci.id`

func (r *PostgresRepository) ListItems(ctx context.Context, cartID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("select cart_items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.AddedAt,
			&it.Name, &it.ImageURL, &it.UnitPrice, &it.DiscountPct); err != nil {
			return nil, fmt.Errorf("scan cart_item: %w", err)
		}
		line, err := pricing.ComputeLine(it.UnitPrice, it.DiscountPct, it.Quantity)
		if err != nil {
			return nil, fmt.Errorf("price cart_item %s: %w", it.ID, err)
		}
		it.UnitDiscounted = line.UnitDiscounted
		it.LineTotal = line.Total
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return items, nil
}

// upsertItemSQL increments the quantity atomically when the (cart, product)
// row already exists, so concurrent adds never lose updates.
const upsertItemSQL = `
INSERT INTO cart_items (id, cart_id, product_id, quantity, price_at_addition, added_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (cart_id, product_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity,
    price_at_addition = EXCLUDED.price_at_addition`

const touchCartSQL = `UPDATE carts SET updated_at = NOW() WHERE id = $1`

func (r *PostgresRepository) AddItem(ctx context.Context, cartID, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	var price float64
	err := r.pool.QueryRow(ctx, `SELECT price FROM products WHERE id = $1`, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("select product: %w", err)
	}

	if _, err := r.pool.Exec(ctx, upsertItemSQL, uuid.NewString(), cartID, productID, quantity, price); err != nil {
		return fmt.Errorf("upsert cart_item: %w", err)
	}

	if _, err := r.pool.Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id = $3`,
		quantity, itemID, cartID)
	if err != nil {
		return fmt.Errorf("update cart_item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	if _, err := r.pool.Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

// RemoveItem deletes a single line. Removing an item that does not belong to
// the cart fails with ErrItemNotFound; this is the documented contract.
func (r *PostgresRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return fmt.Errorf("delete cart_item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	if _, err := r.pool.Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

// Clear removes every line from the cart. Clearing an already-empty cart
// succeeds.
func (r *PostgresRepository) Clear(ctx context.Context, cartID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart_items: %w", err)
	}
	if _, err := r.pool.Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

type mergeLine struct {
	productID       string
	quantity        int
	priceAtAddition float64
}

// Merge folds a guest session cart into the authenticated user's cart:
// quantities are summed for duplicate products and the session cart is
// deleted. The whole merge runs in one transaction; on failure the session
// cart is left intact so the merge can be retried. A missing session cart is
// a no-op that still resolves (or creates) the user cart.
func (r *PostgresRepository) Merge(ctx context.Context, sessionID, userID string) (cartID string, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var sessionCartID string
	err = tx.QueryRow(ctx, `SELECT id FROM carts WHERE session_id = $1`, sessionID).Scan(&sessionCartID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Nothing to merge; make sure the user still ends up with a cart.
		userCartID, uerr := getOrCreate(ctx, tx, UserIdentity(userID))
		if uerr != nil {
			err = uerr
			return "", err
		}
		if err = tx.Commit(ctx); err != nil {
			return "", fmt.Errorf("commit tx: %w", err)
		}
		return userCartID, nil
	}
	if err != nil {
		return "", fmt.Errorf("select session cart: %w", err)
	}

	userCartID, err := getOrCreate(ctx, tx, UserIdentity(userID))
	if err != nil {
		return "", err
	}

	rows, err := tx.Query(ctx,
		`SELECT product_id, quantity, price_at_addition FROM cart_items WHERE cart_id = $1`,
		sessionCartID)
	if err != nil {
		return "", fmt.Errorf("select session items: %w", err)
	}

	var lines []mergeLine
	for rows.Next() {
		var l mergeLine
		if err = rows.Scan(&l.productID, &l.quantity, &l.priceAtAddition); err != nil {
			rows.Close()
			return "", fmt.Errorf("scan session item: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return "", fmt.Errorf("rows: %w", err)
	}

	for _, l := range lines {
		if _, err = tx.Exec(ctx, upsertItemSQL,
			uuid.NewString(), userCartID, l.productID, l.quantity, l.priceAtAddition); err != nil {
			return "", fmt.Errorf("merge item %s: %w", l.productID, err)
		}
	}

	// Cascade removes the session cart's items.
	if _, err = tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, sessionCartID); err != nil {
		return "", fmt.Errorf("delete session cart: %w", err)
	}

	if _, err = tx.Exec(ctx, touchCartSQL, userCartID); err != nil {
		return "", fmt.Errorf("touch user cart: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return userCartID, nil
}
