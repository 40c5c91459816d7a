package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/realtime"
	"github.com/GTDGit/menu_api/internal/repository"
	"github.com/GTDGit/menu_api/internal/utils"
)

// OrderState is a step of the checkout pipeline.
type OrderState string

const (
	StateValidating   OrderState = "Validating"
	StateReserving    OrderState = "Reserving"
	StatePersisting   OrderState = "Persisting"
	StateRecomputing  OrderState = "Recomputing"
	StateBroadcasting OrderState = "Broadcasting"
	StateCommitted    OrderState = "Committed"
	StateFailed       OrderState = "Failed"
)

const (
	orderDateLayout = "2006-01-02"
	orderTimeLayout = "15:04:05"
)

// OrderItemRequest is one requested product line.
type OrderItemRequest struct {
	ProductID int `json:"productId" binding:"required"`
	Quantity  int `json:"quantity"`
}

// CreateOrderRequest is the checkout body.
type CreateOrderRequest struct {
	OrderItems []OrderItemRequest `json:"orderItems" binding:"required"`
	OrderDate  *string            `json:"orderDate"`
}

// UpdateOrderRequest is a partial order update. Nil fields are left as is.
type UpdateOrderRequest struct {
	CustomerID  *int    `json:"customerId"`
	OrderDate   *string `json:"orderDate"`
	OrderTime   *string `json:"orderTime"`
	OrderStatus *string `json:"orderStatus"`
}

// orderRun tracks one pass through the pipeline for logging.
type orderRun struct {
	id     string
	userID int
	state  OrderState
	start  time.Time
}

func newOrderRun(userID int) *orderRun {
	r := &orderRun{id: uuid.NewString(), userID: userID, state: StateValidating, start: time.Now()}
	log.Debug().Str("run_id", r.id).Int("user_id", userID).Str("state", string(r.state)).Msg("Order pipeline started")
	return r
}

func (r *orderRun) advance(next OrderState) {
	log.Debug().
		Str("run_id", r.id).
		Str("from", string(r.state)).
		Str("to", string(next)).
		Msg("Order pipeline transition")
	r.state = next
}

func (r *orderRun) fail(err error) error {
	log.Warn().
		Err(err).
		Str("run_id", r.id).
		Int("user_id", r.userID).
		Str("state", string(r.state)).
		Msg("Order pipeline failed")
	r.state = StateFailed
	return err
}

// OrderService runs checkout and cancellation.
type OrderService struct {
	stores    repository.Stores
	tx        repository.TxRunner
	recompute *RecomputeService
	images    ImageResolver
	notifier  realtime.Notifier
	loc       *time.Location
	now       Clock
}

// NewOrderService constructs an OrderService.
func NewOrderService(
	stores repository.Stores,
	tx repository.TxRunner,
	recompute *RecomputeService,
	images ImageResolver,
	notifier realtime.Notifier,
	loc *time.Location,
	now Clock,
) *OrderService {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &OrderService{
		stores:    stores,
		tx:        tx,
		recompute: recompute,
		images:    images,
		notifier:  notifier,
		loc:       loc,
		now:       now,
	}
}

// CreateOrder validates, reserves and persists an order in one transaction,
// then recomputes prices and ranking and broadcasts the new order.
func (s *OrderService) CreateOrder(ctx context.Context, userID int, req *CreateOrderRequest) (*models.OrderSummary, error) {
	run := newOrderRun(userID)

	ids, wanted, err := aggregateItems(req.OrderItems)
	if err != nil {
		return nil, run.fail(err)
	}

	now := s.now().In(s.loc)
	orderedAt := now
	if req.OrderDate != nil && *req.OrderDate != "" {
		if orderedAt, err = s.parseOrderDate(*req.OrderDate); err != nil {
			return nil, run.fail(err)
		}
	}

	if err := s.validateStock(ctx, ids, wanted); err != nil {
		return nil, run.fail(err)
	}

	session, err := s.stores.Sessions.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrSessionMissing) {
			return nil, run.fail(fmt.Errorf("%w: no active shopping session for user %d", utils.ErrSessionMissing, userID))
		}
		return nil, run.fail(fmt.Errorf("%w: %v", utils.ErrPersistenceFailure, err))
	}

	order := &models.Order{
		CustomerID:  userID,
		OrderedAt:   orderedAt,
		Status:      models.OrderStatusPending,
		PatternHour: now.Hour(),
	}
	var lines []models.OrderLine
	// Rows shared between checkouts are written in product id order so
	// concurrent orders never wait on each other's locks in a cycle.
	locked := ascendingIDs(ids)

	err = s.tx.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		run.advance(StateReserving)
		ledger := NewInventoryLedger(st.Inventory)
		for _, id := range locked {
			if err := ledger.CheckAndReserve(ctx, id, wanted[id]); err != nil {
				return err
			}
		}

		run.advance(StatePersisting)
		products, err := st.Products.GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if err := st.Orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		total := decimal.Zero
		lines = make([]models.OrderLine, 0, len(ids))
		for _, id := range ids {
			p, ok := products[id]
			if !ok {
				return fmt.Errorf("%w: product %d", utils.ErrInvalidReference, id)
			}
			qty := wanted[id]
			price := p.SellingPrice()
			line := models.OrderLine{
				OrderID:     order.ID,
				ProductID:   id,
				Quantity:    qty,
				UnitPrice:   price,
				TotalPrice:  price.Mul(decimal.NewFromInt(int64(qty))).Round(pricePlaces),
				ProductName: p.Name,
			}
			if err := st.Orders.CreateLine(ctx, &line); err != nil {
				return fmt.Errorf("create order line: %w", err)
			}
			total = total.Add(line.TotalPrice)
			lines = append(lines, line)
		}

		for _, id := range locked {
			if err := st.Signals.AddOrderPattern(ctx, id, order.PatternHour, wanted[id]); err != nil {
				return fmt.Errorf("credit order pattern: %w", err)
			}
			if err := st.Signals.AddPopularity(ctx, id, wanted[id]); err != nil {
				return fmt.Errorf("credit popularity: %w", err)
			}
		}

		if err := st.Sessions.ClearItems(ctx, session.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if err := st.Sessions.SetTotal(ctx, session.ID, total); err != nil {
			return fmt.Errorf("set session total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, run.fail(persistenceError(err))
	}

	log.Info().
		Str("run_id", run.id).
		Int("order_id", order.ID).
		Int("user_id", userID).
		Int("lines", len(lines)).
		Msg("Order committed")

	run.advance(StateRecomputing)
	menu := s.recompute.AfterStockChange(ctx)

	run.advance(StateBroadcasting)
	summary := s.summarize(ctx, order, lines)
	s.notifier.NotifyNewOrder(summary, menu)

	run.advance(StateCommitted)
	log.Info().
		Str("run_id", run.id).
		Int("order_id", order.ID).
		Str("total", summary.Total.StringFixed(pricePlaces)).
		Dur("duration", time.Since(run.start)).
		Msg("Order pipeline completed")
	return summary, nil
}

// aggregateItems sums quantities per product, keeping first-seen order.
func aggregateItems(items []OrderItemRequest) ([]int, map[int]int, error) {
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("%w: order has no items", utils.ErrInvalidQuantity)
	}
	ids := make([]int, 0, len(items))
	wanted := make(map[int]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, nil, fmt.Errorf("%w: product %d quantity %d", utils.ErrInvalidQuantity, it.ProductID, it.Quantity)
		}
		if _, seen := wanted[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		wanted[it.ProductID] += it.Quantity
	}
	return ids, wanted, nil
}

func ascendingIDs(ids []int) []int {
	out := append([]int(nil), ids...)
	sort.Ints(out)
	return out
}

// validateStock checks every product exists and has enough stock before
// anything is written.
func (s *OrderService) validateStock(ctx context.Context, ids []int, wanted map[int]int) error {
	products, err := s.stores.Products.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrPersistenceFailure, err)
	}
	ledger := NewInventoryLedger(s.stores.Inventory)
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return fmt.Errorf("%w: product %d", utils.ErrInvalidReference, id)
		}
		available, err := ledger.Available(ctx, id)
		if err != nil {
			return err
		}
		if available < wanted[id] {
			return fmt.Errorf("%w: product %d has %d, requested %d", utils.ErrInsufficientStock, id, available, wanted[id])
		}
	}
	return nil
}

// persistenceError keeps domain errors and wraps everything else.
func persistenceError(err error) error {
	for _, domain := range []error{
		utils.ErrInsufficientStock,
		utils.ErrInvalidReference,
		utils.ErrInvalidQuantity,
		utils.ErrSessionMissing,
		utils.ErrOrderNotFound,
	} {
		if errors.Is(err, domain) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", utils.ErrPersistenceFailure, err)
}

// GetOrder returns the summary of an order.
func (s *OrderService) GetOrder(ctx context.Context, id int) (*models.OrderSummary, error) {
	order, err := s.stores.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.stores.Orders.GetLines(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	return s.summarize(ctx, order, lines), nil
}

// UpdateOrder applies a partial update and broadcasts the new state.
func (s *OrderService) UpdateOrder(ctx context.Context, id int, req *UpdateOrderRequest) (*models.OrderSummary, error) {
	order, err := s.stores.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := false
	if req.CustomerID != nil && *req.CustomerID != order.CustomerID {
		if _, err := s.stores.Customers.GetByID(ctx, *req.CustomerID); err != nil {
			return nil, fmt.Errorf("%w: customer %d", utils.ErrInvalidReference, *req.CustomerID)
		}
		order.CustomerID = *req.CustomerID
		changed = true
	}
	if req.OrderStatus != nil {
		status := models.OrderStatus(*req.OrderStatus)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", utils.ErrInvalidOrderUpdate, *req.OrderStatus)
		}
		order.Status = status
		changed = true
	}
	if req.OrderDate != nil || req.OrderTime != nil {
		at, err := s.applyDateTime(order.OrderedAt, req.OrderDate, req.OrderTime)
		if err != nil {
			return nil, err
		}
		order.OrderedAt = at
		changed = true
	}

	if changed {
		if err := s.stores.Orders.Update(ctx, order); err != nil {
			if errors.Is(err, utils.ErrOrderNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", utils.ErrPersistenceFailure, err)
		}
		log.Info().Int("order_id", id).Str("status", string(order.Status)).Msg("Order updated")
	}

	summary, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyOrderUpdate(summary)
	return summary, nil
}

// DeleteOrder cancels an order: stock is released, the credited hour bucket
// and popularity are rolled back, and the rows are removed.
func (s *OrderService) DeleteOrder(ctx context.Context, id int) error {
	var released int
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		order, err := st.Orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		lines, err := st.Orders.GetLines(ctx, id)
		if err != nil {
			return fmt.Errorf("get order lines: %w", err)
		}

		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		ledger := NewInventoryLedger(st.Inventory)
		for _, l := range lines {
			if err := ledger.Release(ctx, l.ProductID, l.Quantity); err != nil {
				return fmt.Errorf("release stock: %w", err)
			}
			if err := st.Signals.SubtractOrderPattern(ctx, l.ProductID, order.PatternHour, l.Quantity); err != nil {
				return fmt.Errorf("roll back order pattern: %w", err)
			}
			if err := st.Signals.SubtractPopularity(ctx, l.ProductID, l.Quantity); err != nil {
				return fmt.Errorf("roll back popularity: %w", err)
			}
			released += l.Quantity
		}

		if err := st.Orders.DeleteLines(ctx, id); err != nil {
			return fmt.Errorf("delete order lines: %w", err)
		}
		return st.Orders.Delete(ctx, id)
	})
	if err != nil {
		return persistenceError(err)
	}

	log.Info().Int("order_id", id).Int("units_released", released).Msg("Order cancelled")

	menu := s.recompute.AfterStockChange(ctx)
	s.notifier.NotifyMenuUpdate(menu)
	return nil
}

func (s *OrderService) summarize(ctx context.Context, order *models.Order, lines []models.OrderLine) *models.OrderSummary {
	at := order.OrderedAt.In(s.loc)
	summary := &models.OrderSummary{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		OrderDate:     at.Format(orderDateLayout),
		OrderTime:     at.Format(orderTimeLayout),
		OrderStatus:   order.Status,
		ProductImages: make([]string, 0, len(lines)),
		Total:         decimal.Zero,
		Lines:         lines,
	}
	if summary.Lines == nil {
		summary.Lines = []models.OrderLine{}
	}

	if c, err := s.stores.Customers.GetByID(ctx, order.CustomerID); err == nil {
		summary.CustomerName = c.Name
	} else {
		log.Debug().Err(err).Int("customer_id", order.CustomerID).Msg("Customer name unavailable")
	}

	details := make([]string, 0, len(lines))
	for _, l := range lines {
		details = append(details, fmt.Sprintf("%s (%d x £%s)", l.ProductName, l.Quantity, l.UnitPrice.StringFixed(pricePlaces)))
		if s.images != nil {
			summary.ProductImages = append(summary.ProductImages, s.images.Resolve(ctx, l.ProductID, l.ProductName))
		}
		summary.Total = summary.Total.Add(l.TotalPrice)
	}
	summary.OrderDetails = strings.Join(details, ", ")
	return summary
}

// parseOrderDate accepts RFC 3339 timestamps and plain dates.
func (s *OrderService) parseOrderDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(s.loc), nil
	}
	if t, err := time.ParseInLocation(orderDateLayout, v, s.loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", utils.ErrInvalidDate, v)
}

// applyDateTime replaces the date and/or the time of day of cur.
func (s *OrderService) applyDateTime(cur time.Time, date, clock *string) (time.Time, error) {
	cur = cur.In(s.loc)
	y, m, d := cur.Date()
	hh, mm, ss := cur.Clock()

	if date != nil {
		t, err := s.parseOrderDate(*date)
		if err != nil {
			return time.Time{}, err
		}
		y, m, d = t.Date()
	}
	if clock != nil {
		t, err := time.Parse(orderTimeLayout, *clock)
		if err != nil {
			if t, err = time.Parse("15:04", *clock); err != nil {
				return time.Time{}, fmt.Errorf("%w: time %q", utils.ErrInvalidDate, *clock)
			}
		}
		hh, mm, ss = t.Clock()
	}
	return time.Date(y, m, d, hh, mm, ss, 0, s.loc), nil
}
