package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/repository"
	"github.com/GTDGit/menu_api/internal/utils"
)

// CartOwner identifies whose cart a request addresses. UserID wins when set.
type CartOwner struct {
	UserID  int
	CartKey string
}

func (o CartOwner) authenticated() bool { return o.UserID > 0 }

// Cart is a session with its priced lines.
type Cart struct {
	SessionID int               `json:"sessionId"`
	Items     []models.CartLine `json:"items"`
	Total     decimal.Decimal   `json:"total"`
}

// CartService manages shopping sessions and cart items.
type CartService struct {
	stores repository.Stores
	tx     repository.TxRunner
	keys   CartKeyCache
	images ImageResolver
}

// NewCartService constructs a CartService. keys and images may be nil.
func NewCartService(stores repository.Stores, tx repository.TxRunner, keys CartKeyCache, images ImageResolver) *CartService {
	return &CartService{stores: stores, tx: tx, keys: keys, images: images}
}

// Get returns the owner's cart, creating an empty session if needed.
func (s *CartService) Get(ctx context.Context, owner CartOwner) (*Cart, error) {
	session, err := s.session(ctx, owner, true)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, session.ID)
}

// Add puts qty units of a product in the cart. A new line is clamped to the
// available stock; adding to an existing line must fit in stock.
func (s *CartService) Add(ctx context.Context, owner CartOwner, productID, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: %d", utils.ErrInvalidQuantity, qty)
	}
	session, err := s.session(ctx, owner, true)
	if err != nil {
		return nil, err
	}

	available, err := NewInventoryLedger(s.stores.Inventory).Available(ctx, productID)
	if err != nil {
		return nil, err
	}

	item, err := s.stores.Sessions.GetItem(ctx, session.ID, productID)
	if err != nil {
		return nil, err
	}

	next := qty
	if item == nil {
		if available <= 0 {
			return nil, fmt.Errorf("%w: product %d is sold out", utils.ErrInsufficientStock, productID)
		}
		if next > available {
			next = available
		}
	} else {
		next = item.Quantity + qty
		if next > available {
			return nil, fmt.Errorf("%w: product %d has %d, cart would hold %d", utils.ErrInsufficientStock, productID, available, next)
		}
	}

	if err := s.stores.Sessions.SetItemQuantity(ctx, session.ID, productID, next); err != nil {
		return nil, err
	}
	log.Debug().Int("session_id", session.ID).Int("product_id", productID).Int("quantity", next).Msg("Cart item set")
	return s.refresh(ctx, session.ID)
}

// Update sets the quantity of a line already in the cart. Zero removes it.
func (s *CartService) Update(ctx context.Context, owner CartOwner, productID, qty int) (*Cart, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: %d", utils.ErrInvalidQuantity, qty)
	}
	session, item, err := s.existingItem(ctx, owner, productID)
	if err != nil {
		return nil, err
	}

	if qty == 0 {
		if err := s.stores.Sessions.DeleteItem(ctx, session.ID, item.ProductID); err != nil {
			return nil, err
		}
		return s.refresh(ctx, session.ID)
	}

	available, err := NewInventoryLedger(s.stores.Inventory).Available(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > available {
		return nil, fmt.Errorf("%w: product %d has %d, requested %d", utils.ErrInsufficientStock, productID, available, qty)
	}
	if err := s.stores.Sessions.SetItemQuantity(ctx, session.ID, productID, qty); err != nil {
		return nil, err
	}
	return s.refresh(ctx, session.ID)
}

// Remove takes one unit of a product out of the cart, dropping the line at zero.
func (s *CartService) Remove(ctx context.Context, owner CartOwner, productID int) (*Cart, error) {
	session, item, err := s.existingItem(ctx, owner, productID)
	if err != nil {
		return nil, err
	}
	if item.Quantity > 1 {
		err = s.stores.Sessions.SetItemQuantity(ctx, session.ID, productID, item.Quantity-1)
	} else {
		err = s.stores.Sessions.DeleteItem(ctx, session.ID, productID)
	}
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, session.ID)
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, owner CartOwner) (*Cart, error) {
	session, err := s.session(ctx, owner, false)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Sessions.ClearItems(ctx, session.ID); err != nil {
		return nil, err
	}
	return s.refresh(ctx, session.ID)
}

// MigrateAnonymous moves an anonymous cart into the user's session after
// login. Quantities of lines present in both carts are summed and capped at
// the available stock. The anonymous session is removed.
func (s *CartService) MigrateAnonymous(ctx context.Context, cartKey string, userID int) error {
	if cartKey == "" {
		return nil
	}
	anon, err := s.session(ctx, CartOwner{CartKey: cartKey}, false)
	if err != nil {
		if errors.Is(err, utils.ErrSessionMissing) {
			return nil
		}
		return err
	}

	moved := 0
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		target, err := st.Sessions.EnsureForUser(ctx, userID)
		if err != nil {
			return err
		}
		items, err := st.Sessions.Items(ctx, anon.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			qty := it.Quantity
			existing, err := st.Sessions.GetItem(ctx, target.ID, it.ProductID)
			if err != nil {
				return err
			}
			if existing != nil {
				qty += existing.Quantity
			}
			if qty > it.StockLevel {
				qty = it.StockLevel
			}
			if qty <= 0 {
				continue
			}
			if err := st.Sessions.SetItemQuantity(ctx, target.ID, it.ProductID, qty); err != nil {
				return err
			}
			moved++
		}
		if err := st.Sessions.Delete(ctx, anon.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate cart: %w", err)
	}

	if s.keys != nil {
		if err := s.keys.Forget(ctx, cartKey); err != nil {
			log.Warn().Err(err).Msg("Failed to forget cart key")
		}
	}
	log.Info().Int("user_id", userID).Int("lines", moved).Msg("Anonymous cart migrated")

	if target, err := s.stores.Sessions.GetByUser(ctx, userID); err == nil {
		if _, err := s.refresh(ctx, target.ID); err != nil {
			log.Warn().Err(err).Int("user_id", userID).Msg("Cart total refresh failed")
		}
	}
	return nil
}

func (s *CartService) existingItem(ctx context.Context, owner CartOwner, productID int) (*models.ShoppingSession, *models.CartItem, error) {
	session, err := s.session(ctx, owner, false)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.stores.Sessions.GetItem(ctx, session.ID, productID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, fmt.Errorf("%w: product %d is not in the cart", utils.ErrProductNotFound, productID)
	}
	return session, item, nil
}

// session resolves the owner's session. Authenticated users always have
// one; anonymous sessions are created only when create is set.
func (s *CartService) session(ctx context.Context, owner CartOwner, create bool) (*models.ShoppingSession, error) {
	if owner.authenticated() {
		return s.stores.Sessions.EnsureForUser(ctx, owner.UserID)
	}
	if owner.CartKey == "" {
		return nil, fmt.Errorf("%w: no cart key", utils.ErrSessionMissing)
	}

	if s.keys != nil {
		id, ok, err := s.keys.Lookup(ctx, owner.CartKey)
		if err != nil {
			log.Debug().Err(err).Msg("Cart key cache unavailable")
		}
		if ok {
			session, err := s.stores.Sessions.GetByID(ctx, id)
			if err == nil {
				return session, nil
			}
			if !errors.Is(err, utils.ErrSessionMissing) {
				return nil, err
			}
		}
	}

	session, err := s.stores.Sessions.GetByAnonKey(ctx, owner.CartKey)
	if errors.Is(err, utils.ErrSessionMissing) && create {
		session, err = s.stores.Sessions.CreateAnonymous(ctx, owner.CartKey)
	}
	if err != nil {
		return nil, err
	}

	if s.keys != nil {
		if err := s.keys.Remember(ctx, owner.CartKey, session.ID); err != nil {
			log.Warn().Err(err).Msg("Failed to cache cart key")
		}
	}
	return session, nil
}

// refresh recomputes and stores the session total, then returns the cart.
func (s *CartService) refresh(ctx context.Context, sessionID int) (*Cart, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Sessions.SetTotal(ctx, sessionID, cart.Total); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) load(ctx context.Context, sessionID int) (*Cart, error) {
	items, err := s.stores.Sessions.Items(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cart := &Cart{SessionID: sessionID, Items: items, Total: decimal.Zero}
	if cart.Items == nil {
		cart.Items = []models.CartLine{}
	}
	for i := range cart.Items {
		line := &cart.Items[i]
		price := line.Price
		if line.DynamicPrice.Valid {
			price = line.DynamicPrice.Decimal
		}
		cart.Total = cart.Total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		if s.images != nil {
			line.ImagePath = s.images.Resolve(ctx, line.ProductID, line.Name)
		}
	}
	cart.Total = cart.Total.Round(pricePlaces)
	return cart, nil
}
