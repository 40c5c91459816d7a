package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryRecord is the stock level of one product.
type InventoryRecord struct {
	ProductID   int       `db:"product_id" json:"productId"`
	StockLevel  int       `db:"stock_level" json:"stockLevel"`
	LastUpdated time.Time `db:"last_updated" json:"lastUpdated"`
}

// PopularityScore is the all-time demand score of one product.
type PopularityScore struct {
	ProductID int             `db:"product_id" json:"productId"`
	Score     decimal.Decimal `db:"popularity_score" json:"popularityScore"`
}

// OrderPattern counts units ordered for a product in one hour-of-day bucket,
// accumulated across all days.
type OrderPattern struct {
	ProductID  int `db:"product_id" json:"productId"`
	OrderHour  int `db:"order_hour" json:"orderHour"`
	OrderCount int `db:"order_count" json:"orderCount"`
}

// Promotion discounts a product between two dates, both inclusive.
type Promotion struct {
	ID                 int             `db:"promotion_id" json:"promotionId"`
	ProductID          int             `db:"product_id" json:"productId"`
	StartDate          time.Time       `db:"start_date" json:"startDate"`
	EndDate            time.Time       `db:"end_date" json:"endDate"`
	DiscountPercentage decimal.Decimal `db:"discount_percentage" json:"discountPercentage"`
}
