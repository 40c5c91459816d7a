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
	mostPopularCount = 6
	popularTierEnd   = 15
)

var scarcityFactor = decimal.RequireFromString("0.95")

// ComputeRanking orders products by combined score. Positions are 1-based,
// low-stock ranks are multiplied by the scarcity factor and the final order
// is rank ascending with product id breaking ties, so it is always total.
func ComputeRanking(products []models.Product, sig *Signals) []models.MenuItem {
	items := make([]models.MenuItem, len(products))
	for i, p := range products {
		items[i] = newMenuItem(p, sig)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if c := items[i].PopularityScore.Cmp(items[j].PopularityScore); c != 0 {
			return c > 0
		}
		return items[i].ID < items[j].ID
	})

	for i := range items {
		rank := decimal.NewFromInt(int64(i + 1))
		if items[i].IsLowStock {
			rank = rank.Mul(scarcityFactor)
		}
		items[i].Ranking = rank
	}

	finalizeMenu(items)
	return items
}

func newMenuItem(p models.Product, sig *Signals) models.MenuItem {
	item := models.MenuItem{
		Product:         p,
		StockLevel:      sig.Stock[p.ID],
		PopularityScore: sig.Combined(p.ID),
		IsLowStock:      sig.IsLowStock(p.ID),
	}
	if d, ok := sig.Promotion(p.ID); ok {
		item.IsPromotion = true
		item.DiscountPercentage = d
	}
	return item
}

// finalizeMenu sorts by rank then id and assigns positions and tiers.
func finalizeMenu(items []models.MenuItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if c := items[i].Ranking.Cmp(items[j].Ranking); c != 0 {
			return c < 0
		}
		return items[i].ID < items[j].ID
	})
	for i := range items {
		items[i].Position = i + 1
		items[i].IsMostPopular = i < mostPopularCount
		items[i].IsPopular = i >= mostPopularCount && i < popularTierEnd
	}
}

// RankingService owns products.ranking and the cached ranked menu.
type RankingService struct {
	products repository.ProductStore
	signals  *SignalService
	images   ImageResolver
	cache    MenuCache
	now      Clock
}

// NewRankingService constructs a RankingService. cache may be nil.
func NewRankingService(products repository.ProductStore, signals *SignalService, images ImageResolver, cache MenuCache, now Clock) *RankingService {
	if now == nil {
		now = time.Now
	}
	return &RankingService{products: products, signals: signals, images: images, cache: cache, now: now}
}

// Recompute ranks every product, stores ranks that moved and refreshes the
// cached menu.
func (s *RankingService) Recompute(ctx context.Context) ([]models.MenuItem, error) {
	start := time.Now()

	sig, err := s.signals.Collect(ctx, s.now())
	if err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	stored := make(map[int]decimal.Decimal, len(products))
	for _, p := range products {
		stored[p.ID] = p.Ranking
	}

	items := ComputeRanking(products, sig)
	moved := 0
	for _, it := range items {
		if stored[it.ID].Equal(it.Ranking) {
			continue
		}
		if err := s.products.UpdateRanking(ctx, it.ID, it.Ranking); err != nil {
			return nil, fmt.Errorf("update ranking of product %d: %w", it.ID, err)
		}
		moved++
	}

	s.decorate(ctx, items)
	s.store(ctx, items)

	log.Info().
		Int("hour", sig.Hour).
		Int("products", len(items)).
		Int("moved", moved).
		Dur("duration", time.Since(start)).
		Msg("Menu ranking recomputed")
	return items, nil
}

// Menu returns the ranked menu, from cache when possible. On a miss it is
// rebuilt from the stored ranks without recomputing them.
func (s *RankingService) Menu(ctx context.Context) ([]models.MenuItem, error) {
	if s.cache != nil {
		items, err := s.cache.GetMenu(ctx)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if err != nil {
			log.Debug().Err(err).Msg("Menu cache unavailable, rebuilding")
		}
	}
	return s.Current(ctx)
}

// Current builds the menu from stored ranks and live signals.
func (s *RankingService) Current(ctx context.Context) ([]models.MenuItem, error) {
	sig, err := s.signals.Collect(ctx, s.now())
	if err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]models.MenuItem, len(products))
	for i, p := range products {
		items[i] = newMenuItem(p, sig)
	}
	finalizeMenu(items)
	s.decorate(ctx, items)
	s.store(ctx, items)
	return items, nil
}

// Popular returns the "most popular" and "popular" tiers of the menu.
func (s *RankingService) Popular(ctx context.Context) ([]models.MenuItem, error) {
	items, err := s.Menu(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.MenuItem, 0, popularTierEnd)
	for _, it := range items {
		if it.IsMostPopular || it.IsPopular {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *RankingService) decorate(ctx context.Context, items []models.MenuItem) {
	if s.images == nil {
		return
	}
	for i := range items {
		items[i].ImagePath = s.images.Resolve(ctx, items[i].ID, items[i].Name)
	}
}

func (s *RankingService) store(ctx context.Context, items []models.MenuItem) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetMenu(ctx, items); err != nil {
		log.Warn().Err(err).Msg("Menu cache write failed")
	}
}
