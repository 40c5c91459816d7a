package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/repository"
)

// LowStockThreshold is the stock level at or below which a product is scarce.
const LowStockThreshold = 20

// Signals is one snapshot of the demand and context inputs shared by the
// pricing and ranking engines.
type Signals struct {
	At   time.Time
	Hour int

	// Contextual is units ordered per product in the Hour bucket.
	Contextual map[int]int
	// Global is the all-time popularity score per product.
	Global map[int]decimal.Decimal
	// Promotions is the active discount percentage per product.
	Promotions map[int]decimal.Decimal
	// Stock is the stock level per product with an inventory row.
	Stock map[int]int
}

// Combined returns contextual + global popularity for a product.
func (s *Signals) Combined(productID int) decimal.Decimal {
	return decimal.NewFromInt(int64(s.Contextual[productID])).Add(s.Global[productID])
}

// IsLowStock reports whether the product is in the low-stock set.
func (s *Signals) IsLowStock(productID int) bool {
	level, ok := s.Stock[productID]
	return ok && level <= LowStockThreshold
}

// Promotion returns the active discount for a product.
func (s *Signals) Promotion(productID int) (decimal.Decimal, bool) {
	d, ok := s.Promotions[productID]
	return d, ok
}

// SignalService derives Signals from the order history, promotions and stock.
type SignalService struct {
	signals    repository.SignalStore
	promotions repository.PromotionStore
	inventory  repository.InventoryStore
	loc        *time.Location
}

// NewSignalService constructs a SignalService. Hours and dates are taken in loc.
func NewSignalService(stores repository.Stores, loc *time.Location) *SignalService {
	if loc == nil {
		loc = time.Local
	}
	return &SignalService{
		signals:    stores.Signals,
		promotions: stores.Promotions,
		inventory:  stores.Inventory,
		loc:        loc,
	}
}

// Collect reads a snapshot of every signal as of at. The hour bucket comes
// from at, not from the timestamps of the orders that fed it.
func (s *SignalService) Collect(ctx context.Context, at time.Time) (*Signals, error) {
	local := at.In(s.loc)
	snap := &Signals{At: local, Hour: local.Hour()}

	var err error
	if snap.Contextual, err = s.signals.HourlyCounts(ctx, snap.Hour); err != nil {
		return nil, fmt.Errorf("hourly counts: %w", err)
	}
	if snap.Global, err = s.signals.PopularityScores(ctx); err != nil {
		return nil, fmt.Errorf("popularity scores: %w", err)
	}
	if snap.Stock, err = s.inventory.StockLevels(ctx); err != nil {
		return nil, fmt.Errorf("stock levels: %w", err)
	}

	promos, err := s.promotions.ActiveOn(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("active promotions: %w", err)
	}
	snap.Promotions = make(map[int]decimal.Decimal, len(promos))
	for _, p := range promos {
		if cur, ok := snap.Promotions[p.ProductID]; !ok || p.DiscountPercentage.GreaterThan(cur) {
			snap.Promotions[p.ProductID] = p.DiscountPercentage
		}
	}

	return snap, nil
}

// RefreshPopularity resets popularity scores to units sold per product.
func (s *SignalService) RefreshPopularity(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.signals.RebuildPopularity(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuild popularity: %w", err)
	}
	log.Info().Int("products", n).Dur("duration", time.Since(start)).Msg("Popularity scores rebuilt")
	return n, nil
}
