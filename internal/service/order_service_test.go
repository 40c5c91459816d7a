package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/repository"
	"github.com/GTDGit/menu_api/internal/utils"
)

func orderOf(items ...OrderItemRequest) *CreateOrderRequest {
	return &CreateOrderRequest{OrderItems: items}
}

func line(productID, qty int) OrderItemRequest {
	return OrderItemRequest{ProductID: productID, Quantity: qty}
}

func strPtr(s string) *string { return &s }

func TestCreateOrder_InsufficientStockWritesNothing(t *testing.T) {
	f := newFixture(t, 14)
	f.db.PutProduct(product(1, "Latte", "3.00"), 3)
	userID := f.withSession(t, "ada")

	_, err := f.orders.CreateOrder(context.Background(), userID, orderOf(line(1, 5)))

	assert.ErrorIs(t, err, utils.ErrInsufficientStock)
	level, _ := f.db.Stock(1)
	assert.Equal(t, 3, level)
	assert.Zero(t, f.db.OrderCount())
	assert.Zero(t, f.db.LineCount())
	assert.Zero(t, f.db.Pattern(1, 14))
	assert.Empty(t, f.notifier.newOrders)
}

func TestCreateOrder_CommitsAndBroadcasts(t *testing.T) {
	f := newFixture(t, 12)
	p := product(1, "Latte", "10.00")
	p.DynamicPrice = decimal.NewNullDecimal(dec("11.55"))
	f.db.PutProduct(p, 10)
	f.db.PutProduct(product(2, "Scone", "2.50"), 40)
	userID := f.withSession(t, "ada")

	ctx := context.Background()
	sess, err := f.db.Stores().Sessions.GetByUser(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, f.db.Stores().Sessions.SetItemQuantity(ctx, sess.ID, 1, 2))

	summary, err := f.orders.CreateOrder(ctx, userID, orderOf(line(1, 2), line(2, 1)))
	require.NoError(t, err)

	assert.Equal(t, "ada", summary.CustomerName)
	assert.Equal(t, models.OrderStatusPending, summary.OrderStatus)
	assert.Equal(t, "2024-06-03", summary.OrderDate)
	assert.Equal(t, "12:15:00", summary.OrderTime)
	assert.Equal(t, "Latte (2 x £11.55), Scone (1 x £2.50)", summary.OrderDetails)
	assert.Equal(t, []string{"img/1_Latte.png", "img/2_Scone.png"}, summary.ProductImages)
	assert.Equal(t, "25.60", summary.Total.StringFixed(2))

	level, _ := f.db.Stock(1)
	assert.Equal(t, 8, level)
	assert.Equal(t, 2, f.db.Pattern(1, 12))
	assert.Equal(t, "2", f.db.Popularity(1).String())
	assert.Equal(t, 1, f.db.OrderCount())
	assert.Equal(t, 2, f.db.LineCount())

	items, err := f.db.Stores().Sessions.Items(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.Len(t, f.notifier.newOrders, 1)
	assert.Equal(t, summary, f.notifier.newOrders[0])
	require.Len(t, f.notifier.withMenu[0], 2)
	for _, it := range f.notifier.withMenu[0] {
		if it.ID == 1 {
			assert.Equal(t, 8, it.StockLevel)
			assert.True(t, it.IsLowStock)
		}
	}
}

func TestCreateOrder_MergesRepeatedProducts(t *testing.T) {
	f := newFixture(t, 9)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	userID := f.withSession(t, "ada")

	summary, err := f.orders.CreateOrder(context.Background(), userID, orderOf(line(1, 1), line(1, 2)))
	require.NoError(t, err)

	require.Len(t, summary.Lines, 1)
	assert.Equal(t, 3, summary.Lines[0].Quantity)
	assert.Equal(t, "9.00", summary.Total.StringFixed(2))
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	f := newFixture(t, 9)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	f.db.PutProduct(product(2, "Ghost", "1.00"), -1)
	userID := f.withSession(t, "ada")
	noSession := f.db.AddCustomer(models.Customer{Name: "bo", Email: "bo@example.com"})

	tests := []struct {
		name   string
		userID int
		req    *CreateOrderRequest
		want   error
	}{
		{"empty order", userID, orderOf(), utils.ErrInvalidQuantity},
		{"zero quantity", userID, orderOf(line(1, 0)), utils.ErrInvalidQuantity},
		{"unknown product", userID, orderOf(line(99, 1)), utils.ErrInvalidReference},
		{"product without inventory", userID, orderOf(line(2, 1)), utils.ErrInvalidReference},
		{"no shopping session", noSession, orderOf(line(1, 1)), utils.ErrSessionMissing},
		{"bad order date", userID, &CreateOrderRequest{OrderItems: []OrderItemRequest{line(1, 1)}, OrderDate: strPtr("yesterday")}, utils.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(context.Background(), tt.userID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	level, _ := f.db.Stock(1)
	assert.Equal(t, 10, level)
	assert.Zero(t, f.db.OrderCount())
}

func TestCreateOrder_ExplicitOrderDate(t *testing.T) {
	f := newFixture(t, 18)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	userID := f.withSession(t, "ada")

	req := orderOf(line(1, 1))
	req.OrderDate = strPtr("2024-05-20")
	summary, err := f.orders.CreateOrder(context.Background(), userID, req)
	require.NoError(t, err)

	assert.Equal(t, "2024-05-20", summary.OrderDate)
	// The demand bucket follows the checkout clock, not the stated date.
	assert.Equal(t, 1, f.db.Pattern(1, 18))
}

func TestCreateOrder_PersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t, 9)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	f.db.PutProduct(product(2, "Scone", "2.50"), 10)
	userID := f.withSession(t, "ada")
	f.db.FailOn("Sessions.ClearItems", errors.New("connection reset"))

	_, err := f.orders.CreateOrder(context.Background(), userID, orderOf(line(1, 2), line(2, 3)))

	assert.ErrorIs(t, err, utils.ErrPersistenceFailure)
	level1, _ := f.db.Stock(1)
	level2, _ := f.db.Stock(2)
	assert.Equal(t, 10, level1)
	assert.Equal(t, 10, level2)
	assert.Zero(t, f.db.OrderCount())
	assert.Zero(t, f.db.LineCount())
	assert.Zero(t, f.db.Pattern(1, 9))
	assert.True(t, f.db.Popularity(1).IsZero())
	assert.Empty(t, f.notifier.newOrders)
}

func TestCreateOrder_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t, 9)
	f.db.PutProduct(product(1, "Latte", "3.00"), 3)
	users := []int{f.withSession(t, "ada"), f.withSession(t, "bo")}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i, u int) {
			defer wg.Done()
			_, errs[i] = f.orders.CreateOrder(context.Background(), u, orderOf(line(1, 2)))
		}(i, u)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, utils.ErrInsufficientStock)
	}
	level, _ := f.db.Stock(1)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, level)
	assert.Equal(t, 1, f.db.OrderCount())
}

func TestDeleteOrder_RestoresSignals(t *testing.T) {
	f := newFixture(t, 12)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	f.db.SetPopularity(1, 5)
	f.db.SetPattern(1, 12, 1)
	userID := f.withSession(t, "ada")

	ctx := context.Background()
	summary, err := f.orders.CreateOrder(ctx, userID, orderOf(line(1, 2)))
	require.NoError(t, err)
	level, _ := f.db.Stock(1)
	require.Equal(t, 8, level)
	require.Equal(t, 3, f.db.Pattern(1, 12))

	require.NoError(t, f.orders.DeleteOrder(ctx, summary.OrderID))

	level, _ = f.db.Stock(1)
	assert.Equal(t, 10, level)
	assert.Equal(t, 1, f.db.Pattern(1, 12))
	assert.Equal(t, "5", f.db.Popularity(1).String())
	assert.Zero(t, f.db.OrderCount())
	assert.Zero(t, f.db.LineCount())
	require.Len(t, f.notifier.menus, 1)

	_, err = f.orders.GetOrder(ctx, summary.OrderID)
	assert.ErrorIs(t, err, utils.ErrOrderNotFound)
}

func TestDeleteOrder_FailureKeepsOrder(t *testing.T) {
	f := newFixture(t, 12)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	userID := f.withSession(t, "ada")

	ctx := context.Background()
	summary, err := f.orders.CreateOrder(ctx, userID, orderOf(line(1, 4)))
	require.NoError(t, err)

	f.db.FailOn("Orders.Delete", errors.New("lock timeout"))
	err = f.orders.DeleteOrder(ctx, summary.OrderID)

	assert.ErrorIs(t, err, utils.ErrPersistenceFailure)
	level, _ := f.db.Stock(1)
	assert.Equal(t, 6, level)
	assert.Equal(t, 4, f.db.Pattern(1, 12))
	assert.Equal(t, 1, f.db.OrderCount())
}

func TestDeleteOrder_Unknown(t *testing.T) {
	f := newFixture(t, 12)

	err := f.orders.DeleteOrder(context.Background(), 404)

	assert.ErrorIs(t, err, utils.ErrOrderNotFound)
}

func TestUpdateOrder(t *testing.T) {
	f := newFixture(t, 9)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	userID := f.withSession(t, "ada")
	other := f.db.AddCustomer(models.Customer{Name: "bo", Email: "bo@example.com"})

	ctx := context.Background()
	created, err := f.orders.CreateOrder(ctx, userID, orderOf(line(1, 1)))
	require.NoError(t, err)

	t.Run("status date and time", func(t *testing.T) {
		got, err := f.orders.UpdateOrder(ctx, created.OrderID, &UpdateOrderRequest{
			OrderStatus: strPtr("Completed"),
			OrderDate:   strPtr("2024-07-01"),
			OrderTime:   strPtr("09:30"),
		})
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusCompleted, got.OrderStatus)
		assert.Equal(t, "2024-07-01", got.OrderDate)
		assert.Equal(t, "09:30:00", got.OrderTime)
		require.NotEmpty(t, f.notifier.updates)
		assert.Equal(t, got, f.notifier.updates[len(f.notifier.updates)-1])
	})

	t.Run("customer", func(t *testing.T) {
		got, err := f.orders.UpdateOrder(ctx, created.OrderID, &UpdateOrderRequest{CustomerID: &other})
		require.NoError(t, err)
		assert.Equal(t, "bo", got.CustomerName)
	})

	t.Run("unknown customer", func(t *testing.T) {
		missing := 9999
		_, err := f.orders.UpdateOrder(ctx, created.OrderID, &UpdateOrderRequest{CustomerID: &missing})
		assert.ErrorIs(t, err, utils.ErrInvalidReference)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := f.orders.UpdateOrder(ctx, created.OrderID, &UpdateOrderRequest{OrderStatus: strPtr("Lost")})
		assert.ErrorIs(t, err, utils.ErrInvalidOrderUpdate)
	})

	t.Run("bad time", func(t *testing.T) {
		_, err := f.orders.UpdateOrder(ctx, created.OrderID, &UpdateOrderRequest{OrderTime: strPtr("noon")})
		assert.ErrorIs(t, err, utils.ErrInvalidDate)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.orders.UpdateOrder(ctx, 9999, &UpdateOrderRequest{OrderStatus: strPtr("Completed")})
		assert.ErrorIs(t, err, utils.ErrOrderNotFound)
	})
}

// writeLog records the product ids touched by row-locking writes, in call order.
type writeLog struct {
	mu  sync.Mutex
	ops map[string][]int
}

func (w *writeLog) add(op string, productID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ops == nil {
		w.ops = map[string][]int{}
	}
	w.ops[op] = append(w.ops[op], productID)
}

type loggedInventory struct {
	repository.InventoryStore
	log *writeLog
}

func (s loggedInventory) DecrementIfSufficient(ctx context.Context, productID, qty int) (bool, error) {
	s.log.add("decrement", productID)
	return s.InventoryStore.DecrementIfSufficient(ctx, productID, qty)
}

func (s loggedInventory) Increment(ctx context.Context, productID, qty int) error {
	s.log.add("increment", productID)
	return s.InventoryStore.Increment(ctx, productID, qty)
}

type loggedSignals struct {
	repository.SignalStore
	log *writeLog
}

func (s loggedSignals) AddOrderPattern(ctx context.Context, productID, hour, qty int) error {
	s.log.add("pattern", productID)
	return s.SignalStore.AddOrderPattern(ctx, productID, hour, qty)
}

func (s loggedSignals) AddPopularity(ctx context.Context, productID, qty int) error {
	s.log.add("popularity", productID)
	return s.SignalStore.AddPopularity(ctx, productID, qty)
}

func (s loggedSignals) SubtractPopularity(ctx context.Context, productID, qty int) error {
	s.log.add("unpopularity", productID)
	return s.SignalStore.SubtractPopularity(ctx, productID, qty)
}

type loggedTx struct {
	inner repository.TxRunner
	log   *writeLog
}

func (r loggedTx) WithinTx(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	return r.inner.WithinTx(ctx, func(ctx context.Context, s repository.Stores) error {
		s.Inventory = loggedInventory{InventoryStore: s.Inventory, log: r.log}
		s.Signals = loggedSignals{SignalStore: s.Signals, log: r.log}
		return fn(ctx, s)
	})
}

func TestOrderService_LocksRowsInProductOrder(t *testing.T) {
	f := newFixture(t, 12)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	f.db.PutProduct(product(2, "Scone", "2.50"), 10)
	f.db.PutProduct(product(3, "Mocha", "3.40"), 10)
	userID := f.withSession(t, "ada")

	writes := &writeLog{}
	orders := NewOrderService(f.db.Stores(), loggedTx{inner: f.db, log: writes}, f.recompute, stubImages{}, f.notifier, time.UTC, clockAt(12))

	ctx := context.Background()
	summary, err := orders.CreateOrder(ctx, userID, orderOf(line(3, 1), line(1, 2), line(2, 1)))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, writes.ops["decrement"])
	assert.Equal(t, []int{1, 2, 3}, writes.ops["pattern"])
	assert.Equal(t, []int{1, 2, 3}, writes.ops["popularity"])
	// The receipt keeps the order the customer asked in.
	assert.Equal(t, "Mocha (1 x £3.40), Latte (2 x £3.00), Scone (1 x £2.50)", summary.OrderDetails)

	require.NoError(t, orders.DeleteOrder(ctx, summary.OrderID))
	assert.Equal(t, []int{1, 2, 3}, writes.ops["increment"])
	assert.Equal(t, []int{1, 2, 3}, writes.ops["unpopularity"])
}

func TestCreateOrder_OppositeLineOrdersBothCommit(t *testing.T) {
	f := newFixture(t, 9)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	f.db.PutProduct(product(2, "Scone", "2.50"), 10)
	users := []int{f.withSession(t, "ada"), f.withSession(t, "bo")}
	requests := []*CreateOrderRequest{
		orderOf(line(1, 2), line(2, 3)),
		orderOf(line(2, 3), line(1, 2)),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orders.CreateOrder(context.Background(), users[i], requests[i])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	latte, _ := f.db.Stock(1)
	scone, _ := f.db.Stock(2)
	assert.Equal(t, 6, latte)
	assert.Equal(t, 4, scone)
	assert.Equal(t, 2, f.db.OrderCount())
}
