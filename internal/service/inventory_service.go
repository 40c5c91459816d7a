package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/menu_api/internal/realtime"
	"github.com/GTDGit/menu_api/internal/repository"
	"github.com/GTDGit/menu_api/internal/utils"
)

// InventoryLedger is the only writer of stock levels.
type InventoryLedger struct {
	store repository.InventoryStore
}

// NewInventoryLedger binds a ledger to a store, which may be transactional.
func NewInventoryLedger(store repository.InventoryStore) *InventoryLedger {
	return &InventoryLedger{store: store}
}

// Available returns the current stock of a product.
func (l *InventoryLedger) Available(ctx context.Context, productID int) (int, error) {
	level, err := l.store.StockLevel(ctx, productID)
	if err != nil {
		if errors.Is(err, utils.ErrProductNotFound) {
			return 0, fmt.Errorf("%w: product %d has no inventory", utils.ErrInvalidReference, productID)
		}
		return 0, err
	}
	return level, nil
}

// CheckAndReserve takes qty units or fails with utils.ErrInsufficientStock.
// The check and the decrement happen in the same store operation.
func (l *InventoryLedger) CheckAndReserve(ctx context.Context, productID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", utils.ErrInvalidQuantity, qty)
	}

	ok, err := l.store.DecrementIfSufficient(ctx, productID, qty)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug().Int("product_id", productID).Int("quantity", qty).Msg("Reservation rejected")
		return fmt.Errorf("%w: product %d", utils.ErrInsufficientStock, productID)
	}
	return nil
}

// Release returns qty units to stock.
func (l *InventoryLedger) Release(ctx context.Context, productID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", utils.ErrInvalidQuantity, qty)
	}
	return l.store.Increment(ctx, productID, qty)
}

// RestockService adds stock from deliveries and refreshes the menu.
type RestockService struct {
	ledger    *InventoryLedger
	recompute *RecomputeService
	notifier  realtime.Notifier
}

// NewRestockService constructs a RestockService. notifier may be nil.
func NewRestockService(ledger *InventoryLedger, recompute *RecomputeService, notifier realtime.Notifier) *RestockService {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &RestockService{ledger: ledger, recompute: recompute, notifier: notifier}
}

// Restock adds qty units to a product with an inventory row and returns the
// new level.
func (s *RestockService) Restock(ctx context.Context, productID, qty int) (int, error) {
	if _, err := s.ledger.Available(ctx, productID); err != nil {
		return 0, err
	}
	if err := s.ledger.Release(ctx, productID, qty); err != nil {
		return 0, err
	}
	level, err := s.ledger.Available(ctx, productID)
	if err != nil {
		return 0, err
	}
	log.Info().Int("product_id", productID).Int("quantity", qty).Int("stock_level", level).Msg("Product restocked")

	s.notifier.NotifyMenuUpdate(s.recompute.AfterStockChange(ctx))
	return level, nil
}
