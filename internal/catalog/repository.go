package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("product not found")

// Product is the storefront's read-only view of the catalog. Writes happen
// elsewhere; this core only reads prices, discounts, and stock.
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	DiscountPct   int     `json:"discountPercentage"`
	StockQuantity int     `json:"stockQuantity"`
	ImageURL      string  `json:"imageUrl,omitempty"`
}

type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	Get(ctx context.Context, productID string) (Product, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, productID string) (Product, error) {
	var p Product
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, price, discount_percentage, stock_quantity, COALESCE(image_url, '')
		FROM products WHERE id = $1`, productID)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.DiscountPct, &p.StockQuantity, &p.ImageURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}
