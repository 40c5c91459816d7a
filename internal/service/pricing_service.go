package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/repository"
)

const (
	popularCount    = 15
	nonPopularCount = 20
	pricePlaces     = 2
)

var (
	hundred = decimal.NewFromInt(100)

	popularMultiplier    = decimal.RequireFromString("1.05")
	nonPopularMultiplier = decimal.RequireFromString("0.95")
	peakHourMultiplier   = decimal.RequireFromString("1.10")
	lowStockMultiplier   = decimal.RequireFromString("1.15")

	peakHours = map[int]bool{12: true, 18: true}
)

const (
	reasonPopular    = "Popular Product Increase (5%)"
	reasonNonPopular = "Non-Popular Product Discount (5%)"
	reasonPeakHour   = "Peak Hour Increase (10%)"
	reasonLowStock   = "Low Stock Increase (15%)"
)

// PriceQuote is the computed price of one product and why it differs from base.
type PriceQuote struct {
	ProductID int             `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Reasons   []string        `json:"reasons"`
}

// PriceChange is a quote that differs from the stored dynamic price.
type PriceChange struct {
	ProductID int                 `json:"productId"`
	Name      string              `json:"name"`
	OldPrice  decimal.NullDecimal `json:"oldPrice"`
	NewPrice  decimal.Decimal     `json:"newPrice"`
	Reasons   []string            `json:"reasons"`
}

// popularityTiers splits scored products into the top and bottom tiers.
// Products are ordered by score descending, then id ascending.
func popularityTiers(global map[int]decimal.Decimal) (top, bottom map[int]bool) {
	ids := make([]int, 0, len(global))
	for id := range global {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if c := global[ids[i]].Cmp(global[ids[j]]); c != 0 {
			return c > 0
		}
		return ids[i] < ids[j]
	})

	top = make(map[int]bool, popularCount)
	for i := 0; i < len(ids) && i < popularCount; i++ {
		top[ids[i]] = true
	}
	bottom = make(map[int]bool, nonPopularCount)
	for i := len(ids) - 1; i >= 0 && i >= len(ids)-nonPopularCount; i-- {
		bottom[ids[i]] = true
	}
	return top, bottom
}

// ComputePrices prices every product from its base price and the signals.
// It has no side effects, so the same inputs always give the same quotes.
func ComputePrices(products []models.Product, sig *Signals) []PriceQuote {
	top, bottom := popularityTiers(sig.Global)
	peak := peakHours[sig.Hour]

	quotes := make([]PriceQuote, 0, len(products))
	for _, p := range products {
		quotes = append(quotes, quotePrice(p, sig, top[p.ID], bottom[p.ID], peak))
	}
	return quotes
}

func quotePrice(p models.Product, sig *Signals, popular, nonPopular, peak bool) PriceQuote {
	base := p.Price
	q := PriceQuote{ProductID: p.ID, Reasons: []string{}}

	if discount, ok := sig.Promotion(p.ID); ok {
		price := base.Mul(decimal.NewFromInt(1).Sub(discount.Div(hundred)))
		if price.GreaterThan(base) {
			price = base
		}
		if price.IsNegative() {
			price = decimal.Zero
		}
		q.Price = price.Round(pricePlaces)
		q.Reasons = append(q.Reasons, fmt.Sprintf("Promotion Discount (%s%%)", discount.String()))
		return q
	}

	price := base
	if popular {
		price = price.Mul(popularMultiplier)
		q.Reasons = append(q.Reasons, reasonPopular)
	}
	if nonPopular {
		price = price.Mul(nonPopularMultiplier)
		q.Reasons = append(q.Reasons, reasonNonPopular)
	}
	if peak {
		price = price.Mul(peakHourMultiplier)
		q.Reasons = append(q.Reasons, reasonPeakHour)
	}
	if sig.IsLowStock(p.ID) {
		price = price.Mul(lowStockMultiplier)
		q.Reasons = append(q.Reasons, reasonLowStock)
	}
	q.Price = price.Round(pricePlaces)
	return q
}

// DiffPrices keeps the quotes whose price differs from the stored dynamic price.
func DiffPrices(products []models.Product, quotes []PriceQuote) map[int]PriceChange {
	byID := make(map[int]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	changes := make(map[int]PriceChange)
	for _, q := range quotes {
		p := byID[q.ProductID]
		if p.DynamicPrice.Valid && p.DynamicPrice.Decimal.Equal(q.Price) {
			continue
		}
		changes[q.ProductID] = PriceChange{
			ProductID: q.ProductID,
			Name:      p.Name,
			OldPrice:  p.DynamicPrice,
			NewPrice:  q.Price,
			Reasons:   q.Reasons,
		}
	}
	return changes
}

// PricingService owns products.dynamic_price.
type PricingService struct {
	products repository.ProductStore
	signals  *SignalService
	now      Clock
}

// NewPricingService constructs a PricingService.
func NewPricingService(products repository.ProductStore, signals *SignalService, now Clock) *PricingService {
	if now == nil {
		now = time.Now
	}
	return &PricingService{products: products, signals: signals, now: now}
}

// Recompute prices every product and writes back only the changed prices.
func (s *PricingService) Recompute(ctx context.Context) (map[int]PriceChange, error) {
	start := time.Now()

	sig, err := s.signals.Collect(ctx, s.now())
	if err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	changes := DiffPrices(products, ComputePrices(products, sig))
	for id, ch := range changes {
		if err := s.products.UpdateDynamicPrice(ctx, id, ch.NewPrice); err != nil {
			return nil, fmt.Errorf("update price of product %d: %w", id, err)
		}
		log.Debug().
			Int("product_id", id).
			Str("old_price", formatNullPrice(ch.OldPrice)).
			Str("new_price", ch.NewPrice.StringFixed(pricePlaces)).
			Strs("reasons", ch.Reasons).
			Msg("Dynamic price changed")
	}

	log.Info().
		Int("hour", sig.Hour).
		Int("products", len(products)).
		Int("changed", len(changes)).
		Dur("duration", time.Since(start)).
		Msg("Dynamic prices recomputed")
	return changes, nil
}

func formatNullPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return "null"
	}
	return p.Decimal.StringFixed(pricePlaces)
}
