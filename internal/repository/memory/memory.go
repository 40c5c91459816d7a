// Package memory provides map-backed implementations of the repository
// stores. It is used by unit tests and local demos; it keeps no data across
// restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/repository"
)

type patternKey struct {
	productID int
	hour      int
}

type state struct {
	products   map[int]models.Product
	stock      map[int]int
	patterns   map[patternKey]int
	popularity map[int]decimal.Decimal
	promotions []models.Promotion
	orders     map[int]models.Order
	lines      map[int][]models.OrderLine
	sessions   map[int]models.ShoppingSession
	items      map[int]map[int]models.CartItem
	customers  map[int]models.Customer
	seq        int
}

func newState() *state {
	return &state{
		products:   make(map[int]models.Product),
		stock:      make(map[int]int),
		patterns:   make(map[patternKey]int),
		popularity: make(map[int]decimal.Decimal),
		orders:     make(map[int]models.Order),
		lines:      make(map[int][]models.OrderLine),
		sessions:   make(map[int]models.ShoppingSession),
		items:      make(map[int]map[int]models.CartItem),
		customers:  make(map[int]models.Customer),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.patterns {
		c.patterns[k] = v
	}
	for k, v := range s.popularity {
		c.popularity[k] = v
	}
	c.promotions = append(c.promotions, s.promotions...)
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]models.OrderLine(nil), v...)
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.items {
		m := make(map[int]models.CartItem, len(v))
		for pk, item := range v {
			m[pk] = item
		}
		c.items[k] = m
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	c.seq = s.seq
	return c
}

// DB is an in-memory database. Transactions are serialized and roll back by
// restoring a snapshot taken when they begin.
type DB struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	data  *state
	fails map[string]error
	now   func() time.Time
}

// New creates an empty DB.
func New() *DB {
	return &DB{data: newState(), fails: make(map[string]error), now: time.Now}
}

// FailOn makes the named store operation return err until cleared with a nil err.
func (db *DB) FailOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.fails, op)
		return
	}
	db.fails[op] = err
}

func (db *DB) fail(op string) error {
	return db.fails[op]
}

func (db *DB) nextID() int {
	db.data.seq++
	return db.data.seq
}

// Stores returns every store bound to db.
func (db *DB) Stores() repository.Stores {
	return repository.Stores{
		Products:   productStore{db},
		Inventory:  inventoryStore{db},
		Signals:    signalStore{db},
		Promotions: promotionStore{db},
		Orders:     orderStore{db},
		Sessions:   sessionStore{db},
		Customers:  customerStore{db},
	}
}

// WithinTx implements repository.TxRunner.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snapshot := db.data.clone()
	db.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			db.restore(snapshot)
			panic(p)
		}
		if err != nil {
			db.restore(snapshot)
		}
	}()
	return fn(ctx, db.Stores())
}

func (db *DB) restore(s *state) {
	db.mu.Lock()
	db.data = s
	db.mu.Unlock()
}

// Seeding and inspection helpers.

// PutProduct inserts or replaces a product and, when stock >= 0, its inventory row.
func (db *DB) PutProduct(p models.Product, stock int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.products[p.ID] = p
	if stock >= 0 {
		db.data.stock[p.ID] = stock
	}
	if p.ID > db.data.seq {
		db.data.seq = p.ID
	}
}

// SetPopularity sets a product's all-time score.
func (db *DB) SetPopularity(productID int, score int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.popularity[productID] = decimal.NewFromInt(score)
}

// SetPattern sets the units ordered for a product in an hour bucket.
func (db *DB) SetPattern(productID, hour, count int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.patterns[patternKey{productID, hour}] = count
}

// AddPromotion adds a promotion.
func (db *DB) AddPromotion(p models.Promotion) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == 0 {
		p.ID = db.nextID()
	}
	db.data.promotions = append(db.data.promotions, p)
}

// AddCustomer inserts a customer and returns its id.
func (db *DB) AddCustomer(c models.Customer) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c.ID == 0 {
		c.ID = db.nextID()
	}
	db.data.customers[c.ID] = c
	return c.ID
}

// Stock returns a product's stock level and whether it has an inventory row.
func (db *DB) Stock(productID int) (int, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	level, ok := db.data.stock[productID]
	return level, ok
}

// Pattern returns the units ordered for a product in an hour bucket.
func (db *DB) Pattern(productID, hour int) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.data.patterns[patternKey{productID, hour}]
}

// Popularity returns a product's all-time score.
func (db *DB) Popularity(productID int) decimal.Decimal {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.data.popularity[productID]
}

// Product returns a stored product.
func (db *DB) Product(id int) models.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.data.products[id]
}

// OrderCount returns the number of stored orders.
func (db *DB) OrderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.data.orders)
}

// LineCount returns the number of stored order lines.
func (db *DB) LineCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, l := range db.data.lines {
		n += len(l)
	}
	return n
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

var _ repository.TxRunner = (*DB)(nil)
