package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/repository/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func product(id int, name, price string) models.Product {
	return models.Product{ID: id, Name: name, Category: "Coffee", Price: dec(price)}
}

// clockAt pins the clock to a Monday at the given hour, UTC.
func clockAt(hour int) Clock {
	return func() time.Time { return time.Date(2024, 6, 3, hour, 15, 0, 0, time.UTC) }
}

type recordingNotifier struct {
	mu        sync.Mutex
	newOrders []*models.OrderSummary
	menus     [][]models.MenuItem
	updates   []*models.OrderSummary
	withMenu  [][]models.MenuItem
}

func (n *recordingNotifier) NotifyNewOrder(order *models.OrderSummary, menu []models.MenuItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newOrders = append(n.newOrders, order)
	n.withMenu = append(n.withMenu, menu)
}

func (n *recordingNotifier) NotifyOrderUpdate(order *models.OrderSummary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, order)
}

func (n *recordingNotifier) NotifyMenuUpdate(menu []models.MenuItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.menus = append(n.menus, menu)
}

type stubImages struct{}

func (stubImages) Resolve(_ context.Context, productID int, name string) string {
	return "img/" + ImageBaseName(productID, name) + ".png"
}

type fixture struct {
	db        *memory.DB
	signals   *SignalService
	pricing   *PricingService
	ranking   *RankingService
	recompute *RecomputeService
	orders    *OrderService
	carts     *CartService
	notifier  *recordingNotifier
}

func newFixture(t *testing.T, hour int) *fixture {
	t.Helper()

	db := memory.New()
	stores := db.Stores()
	now := clockAt(hour)
	n := &recordingNotifier{}

	f := &fixture{db: db, notifier: n}
	f.signals = NewSignalService(stores, time.UTC)
	f.pricing = NewPricingService(stores.Products, f.signals, now)
	f.ranking = NewRankingService(stores.Products, f.signals, stubImages{}, nil, now)
	f.recompute = NewRecomputeService(f.signals, f.pricing, f.ranking, n)
	f.orders = NewOrderService(stores, db, f.recompute, stubImages{}, n, time.UTC, now)
	f.carts = NewCartService(stores, db, nil, stubImages{})
	return f
}

// withSession gives a customer a shopping session and returns the customer id.
func (f *fixture) withSession(t *testing.T, name string) int {
	t.Helper()
	id := f.db.AddCustomer(models.Customer{Name: name, Email: name + "@example.com", Role: models.RoleCustomer})
	if _, err := f.db.Stores().Sessions.EnsureForUser(context.Background(), id); err != nil {
		t.Fatalf("ensure session: %v", err)
	}
	return id
}
