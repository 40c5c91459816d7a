package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SignalRepository handles data access for order_patterns and popular_products.
type SignalRepository struct {
	db sqlx.ExtContext
}

// NewSignalRepository creates a new SignalRepository.
func NewSignalRepository(db sqlx.ExtContext) *SignalRepository {
	return &SignalRepository{db: db}
}

// HourlyCounts returns units ordered per product in the given hour bucket.
func (r *SignalRepository) HourlyCounts(ctx context.Context, hour int) (map[int]int, error) {
	const q = `
        SELECT product_id, SUM(order_count) AS order_count
        FROM order_patterns
        WHERE order_hour = $1
        GROUP BY product_id`

	var rows []struct {
		ProductID  int `db:"product_id"`
		OrderCount int `db:"order_count"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, q, hour); err != nil {
		return nil, err
	}

	out := make(map[int]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.OrderCount
	}
	return out, nil
}

// PopularityScores returns the all-time score of every scored product.
func (r *SignalRepository) PopularityScores(ctx context.Context) (map[int]decimal.Decimal, error) {
	const q = `SELECT product_id, popularity_score FROM popular_products`

	var rows []struct {
		ProductID int             `db:"product_id"`
		Score     decimal.Decimal `db:"popularity_score"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, q); err != nil {
		return nil, err
	}

	out := make(map[int]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Score
	}
	return out, nil
}

// AddOrderPattern credits qty units to the (product, hour) bucket.
func (r *SignalRepository) AddOrderPattern(ctx context.Context, productID, hour, qty int) error {
	const q = `
        INSERT INTO order_patterns (product_id, order_hour, order_count)
        VALUES ($1, $2, $3)
        ON CONFLICT (product_id, order_hour) DO UPDATE SET
            order_count = order_patterns.order_count + EXCLUDED.order_count`

	_, err := r.db.ExecContext(ctx, q, productID, hour, qty)
	return err
}

// SubtractOrderPattern removes qty units from the (product, hour) bucket,
// deleting the bucket once it reaches zero.
func (r *SignalRepository) SubtractOrderPattern(ctx context.Context, productID, hour, qty int) error {
	const update = `
        UPDATE order_patterns
        SET order_count = GREATEST(order_count - $3, 0)
        WHERE product_id = $1 AND order_hour = $2`
	const cleanup = `
        DELETE FROM order_patterns
        WHERE product_id = $1 AND order_hour = $2 AND order_count = 0`

	if _, err := r.db.ExecContext(ctx, update, productID, hour, qty); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, cleanup, productID, hour)
	return err
}

// AddPopularity raises a product's score by qty.
func (r *SignalRepository) AddPopularity(ctx context.Context, productID, qty int) error {
	const q = `
        INSERT INTO popular_products (product_id, popularity_score)
        VALUES ($1, $2)
        ON CONFLICT (product_id) DO UPDATE SET
            popularity_score = popular_products.popularity_score + EXCLUDED.popularity_score`

	_, err := r.db.ExecContext(ctx, q, productID, qty)
	return err
}

// SubtractPopularity lowers a product's score by qty, never below zero.
func (r *SignalRepository) SubtractPopularity(ctx context.Context, productID, qty int) error {
	const q = `
        UPDATE popular_products
        SET popularity_score = GREATEST(popularity_score - $2, 0)
        WHERE product_id = $1`

	_, err := r.db.ExecContext(ctx, q, productID, qty)
	return err
}

// RebuildPopularity resets scores to the units sold per product across all
// committed order lines and returns the number of scored products.
func (r *SignalRepository) RebuildPopularity(ctx context.Context) (int, error) {
	const q = `
        INSERT INTO popular_products (product_id, popularity_score)
        SELECT product_id, SUM(quantity)
        FROM order_details
        GROUP BY product_id
        ON CONFLICT (product_id) DO UPDATE SET
            popularity_score = EXCLUDED.popularity_score`

	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
