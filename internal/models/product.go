package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a menu product.
// Price is the base price; DynamicPrice stays NULL until the first pricing run.
type Product struct {
	ID           int                 `db:"product_id" json:"productId"`
	Name         string              `db:"name" json:"name"`
	Category     string              `db:"category" json:"category"`
	Price        decimal.Decimal     `db:"price" json:"price"`
	Cost         decimal.Decimal     `db:"cost" json:"cost"`
	DynamicPrice decimal.NullDecimal `db:"dynamic_price" json:"dynamicPrice"`
	Ranking      decimal.Decimal     `db:"ranking" json:"ranking"`
	LastUpdated  time.Time           `db:"last_updated" json:"lastUpdated"`
}

// SellingPrice returns the dynamic price when one has been computed and the
// base price otherwise.
func (p Product) SellingPrice() decimal.Decimal {
	if p.DynamicPrice.Valid {
		return p.DynamicPrice.Decimal
	}
	return p.Price
}

// MenuItem is a product as shown on the ranked menu.
type MenuItem struct {
	Product
	StockLevel         int             `json:"stockLevel"`
	PopularityScore    decimal.Decimal `json:"popularityScore"`
	IsPromotion        bool            `json:"isPromotion"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	IsLowStock         bool            `json:"isLowStock"`
	IsMostPopular      bool            `json:"isMostPopular"`
	IsPopular          bool            `json:"isPopular"`
	Position           int             `json:"position"`
	ImagePath          string          `json:"imagePath"`
}
