package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/utils"
)

const customerColumns = `customer_id, name, email, password_hash, address, phone, role, created_at`

// CustomerRepository handles data access for customers.
type CustomerRepository struct {
	db sqlx.ExtContext
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(db sqlx.ExtContext) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts a customer. A duplicate email yields utils.ErrEmailTaken.
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	const q = `
        INSERT INTO customers (name, email, password_hash, address, phone, role)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING customer_id, created_at`

	err := r.db.QueryRowxContext(ctx, q, c.Name, c.Email, c.PasswordHash, c.Address, c.Phone, c.Role).
		Scan(&c.ID, &c.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return utils.ErrEmailTaken
	}
	return err
}

// GetByID returns a customer by id.
func (r *CustomerRepository) GetByID(ctx context.Context, id int) (*models.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1`, id)
}

// GetByEmail returns a customer by email, case-insensitively.
func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE lower(email) = lower($1)`, email)
}

func (r *CustomerRepository) getOne(ctx context.Context, q string, arg interface{}) (*models.Customer, error) {
	var c models.Customer
	if err := sqlx.GetContext(ctx, r.db, &c, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &c, nil
}
