package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates order lifecycle statuses.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPreparing OrderStatus = "Preparing"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a committed checkout.
// PatternHour is the hour-of-day bucket credited in order_patterns at checkout.
type Order struct {
	ID          int         `db:"order_id" json:"orderId"`
	CustomerID  int         `db:"customer_id" json:"customerId"`
	OrderedAt   time.Time   `db:"ordered_at" json:"orderedAt"`
	Status      OrderStatus `db:"order_status" json:"orderStatus"`
	PatternHour int         `db:"pattern_hour" json:"-"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}

// OrderLine is one product line of an order. Lines are never updated after commit.
type OrderLine struct {
	ID          int             `db:"order_detail_id" json:"orderDetailId"`
	OrderID     int             `db:"order_id" json:"orderId"`
	ProductID   int             `db:"product_id" json:"productId"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"totalPrice"`
	ProductName string          `db:"product_name" json:"productName"`
}

// OrderSummary is the order as returned to clients and pushed to subscribers.
// Field names follow the storefront wire format.
type OrderSummary struct {
	OrderID       int             `json:"OrderID"`
	CustomerID    int             `json:"CustomerID"`
	CustomerName  string          `json:"CustomerName"`
	OrderDate     string          `json:"OrderDate"`
	OrderTime     string          `json:"OrderTime"`
	OrderStatus   OrderStatus     `json:"OrderStatus"`
	OrderDetails  string          `json:"OrderDetails"`
	ProductImages []string        `json:"ProductImages"`
	Total         decimal.Decimal `json:"Total"`
	Lines         []OrderLine     `json:"Lines"`
}
