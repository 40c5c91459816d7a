package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
)

// ProductStore reads products and writes the pricing/ranking owned columns.
type ProductStore interface {
	List(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id int) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]models.Product, error)
	UpdateDynamicPrice(ctx context.Context, id int, price decimal.Decimal) error
	UpdateRanking(ctx context.Context, id int, rank decimal.Decimal) error
}

// InventoryStore is the persistence behind the inventory ledger.
// DecrementIfSufficient must check and decrement in a single statement.
type InventoryStore interface {
	StockLevel(ctx context.Context, productID int) (int, error)
	StockLevels(ctx context.Context) (map[int]int, error)
	DecrementIfSufficient(ctx context.Context, productID, qty int) (bool, error)
	Increment(ctx context.Context, productID, qty int) error
}

// SignalStore holds the demand signals: hourly order patterns and
// all-time popularity scores.
type SignalStore interface {
	HourlyCounts(ctx context.Context, hour int) (map[int]int, error)
	PopularityScores(ctx context.Context) (map[int]decimal.Decimal, error)
	AddOrderPattern(ctx context.Context, productID, hour, qty int) error
	SubtractOrderPattern(ctx context.Context, productID, hour, qty int) error
	AddPopularity(ctx context.Context, productID, qty int) error
	SubtractPopularity(ctx context.Context, productID, qty int) error
	RebuildPopularity(ctx context.Context) (int, error)
}

// PromotionStore lists promotions.
type PromotionStore interface {
	ActiveOn(ctx context.Context, day time.Time) ([]models.Promotion, error)
}

// OrderStore persists orders and their lines.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	CreateLine(ctx context.Context, line *models.OrderLine) error
	GetByID(ctx context.Context, id int) (*models.Order, error)
	GetLines(ctx context.Context, orderID int) ([]models.OrderLine, error)
	Update(ctx context.Context, order *models.Order) error
	DeleteLines(ctx context.Context, orderID int) error
	Delete(ctx context.Context, id int) error
}

// SessionStore persists shopping sessions and their cart items.
type SessionStore interface {
	GetByID(ctx context.Context, id int) (*models.ShoppingSession, error)
	GetByUser(ctx context.Context, userID int) (*models.ShoppingSession, error)
	GetByAnonKey(ctx context.Context, key string) (*models.ShoppingSession, error)
	EnsureForUser(ctx context.Context, userID int) (*models.ShoppingSession, error)
	CreateAnonymous(ctx context.Context, key string) (*models.ShoppingSession, error)
	Delete(ctx context.Context, id int) error
	SetTotal(ctx context.Context, id int, total decimal.Decimal) error

	Items(ctx context.Context, sessionID int) ([]models.CartLine, error)
	GetItem(ctx context.Context, sessionID, productID int) (*models.CartItem, error)
	SetItemQuantity(ctx context.Context, sessionID, productID, qty int) error
	DeleteItem(ctx context.Context, sessionID, productID int) error
	ClearItems(ctx context.Context, sessionID int) error
}

// CustomerStore persists storefront accounts.
type CustomerStore interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id int) (*models.Customer, error)
	GetByEmail(ctx context.Context, email string) (*models.Customer, error)
}

// Stores bundles every store bound to the same connection or transaction.
type Stores struct {
	Products   ProductStore
	Inventory  InventoryStore
	Signals    SignalStore
	Promotions PromotionStore
	Orders     OrderStore
	Sessions   SessionStore
	Customers  CustomerStore
}

// TxRunner runs fn with stores bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
