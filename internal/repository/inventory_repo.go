package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/menu_api/internal/utils"
)

// InventoryRepository handles data access for inventory_status.
type InventoryRepository struct {
	db sqlx.ExtContext
}

// NewInventoryRepository creates a new InventoryRepository.
func NewInventoryRepository(db sqlx.ExtContext) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// StockLevel returns the current stock of a product.
func (r *InventoryRepository) StockLevel(ctx context.Context, productID int) (int, error) {
	const q = `SELECT stock_level FROM inventory_status WHERE product_id = $1`

	var level int
	if err := sqlx.GetContext(ctx, r.db, &level, q, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, utils.ErrProductNotFound
		}
		return 0, err
	}
	return level, nil
}

// StockLevels returns the stock of every product that has an inventory row.
func (r *InventoryRepository) StockLevels(ctx context.Context) (map[int]int, error) {
	const q = `SELECT product_id, stock_level FROM inventory_status`

	var rows []struct {
		ProductID  int `db:"product_id"`
		StockLevel int `db:"stock_level"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, q); err != nil {
		return nil, err
	}

	out := make(map[int]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.StockLevel
	}
	return out, nil
}

// DecrementIfSufficient removes qty units when at least qty are in stock.
// The availability check and the decrement are one statement, so two
// concurrent callers can never both take the last units.
func (r *InventoryRepository) DecrementIfSufficient(ctx context.Context, productID, qty int) (bool, error) {
	const q = `
        UPDATE inventory_status
        SET stock_level = stock_level - $2, last_updated = NOW()
        WHERE product_id = $1 AND stock_level >= $2`

	res, err := r.db.ExecContext(ctx, q, productID, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Increment adds qty units, creating the inventory row when missing.
func (r *InventoryRepository) Increment(ctx context.Context, productID, qty int) error {
	const q = `
        INSERT INTO inventory_status (product_id, stock_level, last_updated)
        VALUES ($1, $2, NOW())
        ON CONFLICT (product_id) DO UPDATE SET
            stock_level = inventory_status.stock_level + EXCLUDED.stock_level,
            last_updated = NOW()`

	_, err := r.db.ExecContext(ctx, q, productID, qty)
	return err
}
