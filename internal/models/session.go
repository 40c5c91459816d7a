package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShoppingSession owns a cart. Exactly one of UserID and AnonKey is set.
type ShoppingSession struct {
	ID         int             `db:"session_id" json:"sessionId"`
	UserID     *int            `db:"user_id" json:"userId,omitempty"`
	AnonKey    *string         `db:"anon_key" json:"-"`
	Total      decimal.Decimal `db:"total" json:"total"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	ModifiedAt time.Time       `db:"modified_at" json:"modifiedAt"`
}

// CartItem is one product in a session cart.
type CartItem struct {
	ID        int       `db:"cart_item_id" json:"cartItemId"`
	SessionID int       `db:"session_id" json:"sessionId"`
	ProductID int       `db:"product_id" json:"productId"`
	Quantity  int       `db:"quantity" json:"quantity"`
	DateAdded time.Time `db:"date_added" json:"dateAdded"`
}

// CartLine is a cart item joined with its product and stock.
type CartLine struct {
	CartItem
	Name         string              `db:"name" json:"name"`
	Price        decimal.Decimal     `db:"price" json:"price"`
	DynamicPrice decimal.NullDecimal `db:"dynamic_price" json:"dynamicPrice"`
	StockLevel   int                 `db:"stock_level" json:"stockLevel"`
	ImagePath    string              `db:"-" json:"imagePath"`
}

// Customer is a storefront account.
type Customer struct {
	ID           int       `db:"customer_id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Address      string    `db:"address" json:"address"`
	Phone        string    `db:"phone" json:"phone"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)
