package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/realtime"
)

// RecomputeService runs the pricing and ranking engines one at a time.
// Scheduled jobs, manual triggers and post-order recomputes all go through
// it, so two recomputes never interleave their writes.
type RecomputeService struct {
	signals  *SignalService
	pricing  *PricingService
	ranking  *RankingService
	notifier realtime.Notifier

	mu sync.Mutex
}

// NewRecomputeService constructs a RecomputeService. notifier may be nil.
func NewRecomputeService(signals *SignalService, pricing *PricingService, ranking *RankingService, notifier realtime.Notifier) *RecomputeService {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &RecomputeService{signals: signals, pricing: pricing, ranking: ranking, notifier: notifier}
}

// RefreshPopularity rebuilds popularity scores from order history.
func (s *RecomputeService) RefreshPopularity(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals.RefreshPopularity(ctx)
}

// RecomputePrices reprices every product. When any price moved, the cached
// menu is rebuilt from the stored ranks and pushed to subscribers.
func (s *RecomputeService) RecomputePrices(ctx context.Context) (map[int]PriceChange, error) {
	s.mu.Lock()
	changes, err := s.pricing.Recompute(ctx)
	if err != nil || len(changes) == 0 {
		s.mu.Unlock()
		return changes, err
	}
	items, err := s.ranking.Current(ctx)
	s.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Int("changed", len(changes)).Msg("Menu refresh after price recompute failed")
		return changes, nil
	}

	s.notifier.NotifyMenuUpdate(items)
	return changes, nil
}

// RecomputeRanking reranks the menu and pushes it to subscribers.
func (s *RecomputeService) RecomputeRanking(ctx context.Context) ([]models.MenuItem, error) {
	s.mu.Lock()
	items, err := s.ranking.Recompute(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyMenuUpdate(items)
	return items, nil
}

// FullRecompute refreshes popularity, prices and ranking in that order and
// pushes the resulting menu.
func (s *RecomputeService) FullRecompute(ctx context.Context) ([]models.MenuItem, error) {
	start := time.Now()

	s.mu.Lock()
	items, err := s.fullLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyMenuUpdate(items)
	log.Info().Int("products", len(items)).Dur("duration", time.Since(start)).Msg("Full recompute finished")
	return items, nil
}

func (s *RecomputeService) fullLocked(ctx context.Context) ([]models.MenuItem, error) {
	if _, err := s.signals.RefreshPopularity(ctx); err != nil {
		return nil, err
	}
	if _, err := s.pricing.Recompute(ctx); err != nil {
		return nil, err
	}
	return s.ranking.Recompute(ctx)
}

// AfterStockChange reprices and reranks after an order commit, a
// cancellation or a restock. The stock change is already committed, so
// failures are logged and the last known menu is returned instead.
func (s *RecomputeService) AfterStockChange(ctx context.Context) []models.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pricing.Recompute(ctx); err != nil {
		log.Error().Err(err).Msg("Price recompute after stock change failed")
	}
	items, err := s.ranking.Recompute(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Ranking recompute after stock change failed")
		items, err = s.ranking.Menu(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Menu unavailable after stock change")
			return []models.MenuItem{}
		}
	}
	return items
}

// Menu returns the current ranked menu.
func (s *RecomputeService) Menu(ctx context.Context) ([]models.MenuItem, error) {
	return s.ranking.Menu(ctx)
}
