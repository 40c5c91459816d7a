package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/utils"
)

const sessionColumns = `session_id, user_id, anon_key, total, created_at, modified_at`

// SessionRepository handles data access for shopping_sessions and cart_items.
type SessionRepository struct {
	db sqlx.ExtContext
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db sqlx.ExtContext) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) getOne(ctx context.Context, q string, arg interface{}) (*models.ShoppingSession, error) {
	var s models.ShoppingSession
	if err := sqlx.GetContext(ctx, r.db, &s, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrSessionMissing
		}
		return nil, err
	}
	return &s, nil
}

// GetByID returns a session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id int) (*models.ShoppingSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM shopping_sessions WHERE session_id = $1`, id)
}

// GetByUser returns the session owned by a user.
func (r *SessionRepository) GetByUser(ctx context.Context, userID int) (*models.ShoppingSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM shopping_sessions WHERE user_id = $1`, userID)
}

// GetByAnonKey returns the anonymous session for a cart cookie key.
func (r *SessionRepository) GetByAnonKey(ctx context.Context, key string) (*models.ShoppingSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM shopping_sessions WHERE anon_key = $1`, key)
}

// EnsureForUser returns the user's session, creating it when missing.
func (r *SessionRepository) EnsureForUser(ctx context.Context, userID int) (*models.ShoppingSession, error) {
	const q = `
        INSERT INTO shopping_sessions (user_id, total)
        VALUES ($1, 0)
        ON CONFLICT (user_id) DO UPDATE SET modified_at = NOW()
        RETURNING ` + sessionColumns

	var s models.ShoppingSession
	if err := sqlx.GetContext(ctx, r.db, &s, q, userID); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateAnonymous creates a session keyed by a cart cookie.
func (r *SessionRepository) CreateAnonymous(ctx context.Context, key string) (*models.ShoppingSession, error) {
	const q = `
        INSERT INTO shopping_sessions (anon_key, total)
        VALUES ($1, 0)
        ON CONFLICT (anon_key) DO UPDATE SET modified_at = NOW()
        RETURNING ` + sessionColumns

	var s models.ShoppingSession
	if err := sqlx.GetContext(ctx, r.db, &s, q, key); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes a session; its cart items cascade.
func (r *SessionRepository) Delete(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM shopping_sessions WHERE session_id = $1`, id)
	return err
}

// SetTotal stores the session running total.
func (r *SessionRepository) SetTotal(ctx context.Context, id int, total decimal.Decimal) error {
	const q = `UPDATE shopping_sessions SET total = $2, modified_at = NOW() WHERE session_id = $1`
	_, err := r.db.ExecContext(ctx, q, id, total)
	return err
}

// Items returns the cart lines of a session with product and stock data.
func (r *SessionRepository) Items(ctx context.Context, sessionID int) ([]models.CartLine, error) {
	const q = `
        SELECT ci.cart_item_id, ci.session_id, ci.product_id, ci.quantity, ci.date_added,
               p.name, p.price, p.dynamic_price, COALESCE(i.stock_level, 0) AS stock_level
        FROM cart_items ci
        JOIN products p ON p.product_id = ci.product_id
        LEFT JOIN inventory_status i ON i.product_id = ci.product_id
        WHERE ci.session_id = $1
        ORDER BY ci.date_added, ci.cart_item_id`

	var lines []models.CartLine
	if err := sqlx.SelectContext(ctx, r.db, &lines, q, sessionID); err != nil {
		return nil, err
	}
	return lines, nil
}

// GetItem returns the cart item for a product, or nil when absent.
func (r *SessionRepository) GetItem(ctx context.Context, sessionID, productID int) (*models.CartItem, error) {
	const q = `
        SELECT cart_item_id, session_id, product_id, quantity, date_added
        FROM cart_items WHERE session_id = $1 AND product_id = $2`

	var item models.CartItem
	if err := sqlx.GetContext(ctx, r.db, &item, q, sessionID, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// SetItemQuantity inserts or overwrites the quantity of a cart item.
func (r *SessionRepository) SetItemQuantity(ctx context.Context, sessionID, productID, qty int) error {
	const q = `
        INSERT INTO cart_items (session_id, product_id, quantity)
        VALUES ($1, $2, $3)
        ON CONFLICT (session_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	_, err := r.db.ExecContext(ctx, q, sessionID, productID, qty)
	return err
}

// DeleteItem removes a product from a cart.
func (r *SessionRepository) DeleteItem(ctx context.Context, sessionID, productID int) error {
	const q = `DELETE FROM cart_items WHERE session_id = $1 AND product_id = $2`
	_, err := r.db.ExecContext(ctx, q, sessionID, productID)
	return err
}

// ClearItems empties a cart.
func (r *SessionRepository) ClearItems(ctx context.Context, sessionID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE session_id = $1`, sessionID)
	return err
}
