package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/utils"
)

// OrderRepository handles data access for orders and order_details.
type OrderRepository struct {
	db sqlx.ExtContext
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db sqlx.ExtContext) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order and fills its generated id and created_at.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	const q = `
        INSERT INTO orders (customer_id, ordered_at, order_status, pattern_hour)
        VALUES ($1, $2, $3, $4)
        RETURNING order_id, created_at`

	return r.db.QueryRowxContext(ctx, q,
		order.CustomerID, order.OrderedAt, order.Status, order.PatternHour,
	).Scan(&order.ID, &order.CreatedAt)
}

// CreateLine inserts one order line.
func (r *OrderRepository) CreateLine(ctx context.Context, line *models.OrderLine) error {
	const q = `
        INSERT INTO order_details (order_id, product_id, quantity, unit_price, total_price)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING order_detail_id`

	return r.db.QueryRowxContext(ctx, q,
		line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.TotalPrice,
	).Scan(&line.ID)
}

// GetByID returns an order by id.
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	const q = `
        SELECT order_id, customer_id, ordered_at, order_status, pattern_hour, created_at
        FROM orders WHERE order_id = $1`

	var o models.Order
	if err := sqlx.GetContext(ctx, r.db, &o, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// GetLines returns the lines of an order joined with product names.
func (r *OrderRepository) GetLines(ctx context.Context, orderID int) ([]models.OrderLine, error) {
	const q = `
        SELECT od.order_detail_id, od.order_id, od.product_id, od.quantity,
               od.unit_price, od.total_price, p.name AS product_name
        FROM order_details od
        JOIN products p ON p.product_id = od.product_id
        WHERE od.order_id = $1
        ORDER BY od.order_detail_id`

	var lines []models.OrderLine
	if err := sqlx.SelectContext(ctx, r.db, &lines, q, orderID); err != nil {
		return nil, err
	}
	return lines, nil
}

// Update writes the mutable order fields.
func (r *OrderRepository) Update(ctx context.Context, order *models.Order) error {
	const q = `
        UPDATE orders SET customer_id = $2, ordered_at = $3, order_status = $4
        WHERE order_id = $1`

	res, err := r.db.ExecContext(ctx, q, order.ID, order.CustomerID, order.OrderedAt, order.Status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return utils.ErrOrderNotFound
	}
	return nil
}

// DeleteLines removes every line of an order.
func (r *OrderRepository) DeleteLines(ctx context.Context, orderID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM order_details WHERE order_id = $1`, orderID)
	return err
}

// Delete removes an order row.
func (r *OrderRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return utils.ErrOrderNotFound
	}
	return nil
}
