package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/utils"
)

const productColumns = `product_id, name, category, price, cost, dynamic_price, ranking, last_updated`

// ProductRepository handles data access for products.
type ProductRepository struct {
	db sqlx.ExtContext
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db sqlx.ExtContext) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns every product ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products ORDER BY product_id`

	var products []models.Product
	if err := sqlx.SelectContext(ctx, r.db, &products, q); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns a single product by id.
func (r *ProductRepository) GetByID(ctx context.Context, id int) (*models.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE product_id = $1`

	var p models.Product
	if err := sqlx.GetContext(ctx, r.db, &p, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns the products that exist among ids, keyed by id.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int) (map[int]models.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE product_id = ANY($1)`

	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	var products []models.Product
	if err := sqlx.SelectContext(ctx, r.db, &products, q, pq.Array(keys)); err != nil {
		return nil, err
	}

	out := make(map[int]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// UpdateDynamicPrice stores a recomputed selling price.
func (r *ProductRepository) UpdateDynamicPrice(ctx context.Context, id int, price decimal.Decimal) error {
	const q = `UPDATE products SET dynamic_price = $2, last_updated = NOW() WHERE product_id = $1`
	_, err := r.db.ExecContext(ctx, q, id, price)
	return err
}

// UpdateRanking stores a recomputed rank.
func (r *ProductRepository) UpdateRanking(ctx context.Context, id int, rank decimal.Decimal) error {
	const q = `UPDATE products SET ranking = $2 WHERE product_id = $1`
	_, err := r.db.ExecContext(ctx, q, id, rank)
	return err
}
