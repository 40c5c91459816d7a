package memory

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/utils"
)

type productStore struct{ db *DB }

func (s productStore) List(_ context.Context) ([]models.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Products.List"); err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(s.db.data.products))
	for _, id := range sortedIDs(s.db.data.products) {
		out = append(out, s.db.data.products[id])
	}
	return out, nil
}

func (s productStore) GetByID(_ context.Context, id int) (*models.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.data.products[id]
	if !ok {
		return nil, utils.ErrProductNotFound
	}
	return &p, nil
}

func (s productStore) GetByIDs(_ context.Context, ids []int) (map[int]models.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make(map[int]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.db.data.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s productStore) UpdateDynamicPrice(_ context.Context, id int, price decimal.Decimal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Products.UpdateDynamicPrice"); err != nil {
		return err
	}
	p, ok := s.db.data.products[id]
	if !ok {
		return nil
	}
	p.DynamicPrice = decimal.NewNullDecimal(price)
	p.LastUpdated = s.db.now()
	s.db.data.products[id] = p
	return nil
}

func (s productStore) UpdateRanking(_ context.Context, id int, rank decimal.Decimal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.data.products[id]
	if !ok {
		return nil
	}
	p.Ranking = rank
	s.db.data.products[id] = p
	return nil
}

type inventoryStore struct{ db *DB }

func (s inventoryStore) StockLevel(_ context.Context, productID int) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	level, ok := s.db.data.stock[productID]
	if !ok {
		return 0, utils.ErrProductNotFound
	}
	return level, nil
}

func (s inventoryStore) StockLevels(_ context.Context) (map[int]int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make(map[int]int, len(s.db.data.stock))
	for k, v := range s.db.data.stock {
		out[k] = v
	}
	return out, nil
}

func (s inventoryStore) DecrementIfSufficient(_ context.Context, productID, qty int) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Inventory.DecrementIfSufficient"); err != nil {
		return false, err
	}
	level, ok := s.db.data.stock[productID]
	if !ok || level < qty {
		return false, nil
	}
	s.db.data.stock[productID] = level - qty
	return true, nil
}

func (s inventoryStore) Increment(_ context.Context, productID, qty int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.data.stock[productID] += qty
	return nil
}

type signalStore struct{ db *DB }

func (s signalStore) HourlyCounts(_ context.Context, hour int) (map[int]int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make(map[int]int)
	for k, v := range s.db.data.patterns {
		if k.hour == hour {
			out[k.productID] += v
		}
	}
	return out, nil
}

func (s signalStore) PopularityScores(_ context.Context) (map[int]decimal.Decimal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make(map[int]decimal.Decimal, len(s.db.data.popularity))
	for k, v := range s.db.data.popularity {
		out[k] = v
	}
	return out, nil
}

func (s signalStore) AddOrderPattern(_ context.Context, productID, hour, qty int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Signals.AddOrderPattern"); err != nil {
		return err
	}
	s.db.data.patterns[patternKey{productID, hour}] += qty
	return nil
}

func (s signalStore) SubtractOrderPattern(_ context.Context, productID, hour, qty int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	k := patternKey{productID, hour}
	n, ok := s.db.data.patterns[k]
	if !ok {
		return nil
	}
	if n -= qty; n <= 0 {
		delete(s.db.data.patterns, k)
		return nil
	}
	s.db.data.patterns[k] = n
	return nil
}

func (s signalStore) AddPopularity(_ context.Context, productID, qty int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.data.popularity[productID] = s.db.data.popularity[productID].Add(decimal.NewFromInt(int64(qty)))
	return nil
}

func (s signalStore) SubtractPopularity(_ context.Context, productID, qty int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.data.popularity[productID]
	if !ok {
		return nil
	}
	next := cur.Sub(decimal.NewFromInt(int64(qty)))
	if next.IsNegative() {
		next = decimal.Zero
	}
	s.db.data.popularity[productID] = next
	return nil
}

func (s signalStore) RebuildPopularity(_ context.Context) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Signals.RebuildPopularity"); err != nil {
		return 0, err
	}
	sums := make(map[int]int64)
	for _, lines := range s.db.data.lines {
		for _, l := range lines {
			sums[l.ProductID] += int64(l.Quantity)
		}
	}
	for id, n := range sums {
		s.db.data.popularity[id] = decimal.NewFromInt(n)
	}
	return len(sums), nil
}

type promotionStore struct{ db *DB }

func (s promotionStore) ActiveOn(_ context.Context, day time.Time) ([]models.Promotion, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	d := truncateDay(day)
	var out []models.Promotion
	for _, p := range s.db.data.promotions {
		if !d.Before(truncateDay(p.StartDate)) && !d.After(truncateDay(p.EndDate)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type orderStore struct{ db *DB }

func (s orderStore) Create(_ context.Context, order *models.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Orders.Create"); err != nil {
		return err
	}
	order.ID = s.db.nextID()
	order.CreatedAt = s.db.now()
	s.db.data.orders[order.ID] = *order
	return nil
}

func (s orderStore) CreateLine(_ context.Context, line *models.OrderLine) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Orders.CreateLine"); err != nil {
		return err
	}
	line.ID = s.db.nextID()
	s.db.data.lines[line.OrderID] = append(s.db.data.lines[line.OrderID], *line)
	return nil
}

func (s orderStore) GetByID(_ context.Context, id int) (*models.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	o, ok := s.db.data.orders[id]
	if !ok {
		return nil, utils.ErrOrderNotFound
	}
	return &o, nil
}

func (s orderStore) GetLines(_ context.Context, orderID int) ([]models.OrderLine, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	lines := s.db.data.lines[orderID]
	out := make([]models.OrderLine, len(lines))
	for i, l := range lines {
		if p, ok := s.db.data.products[l.ProductID]; ok {
			l.ProductName = p.Name
		}
		out[i] = l
	}
	return out, nil
}

func (s orderStore) Update(_ context.Context, order *models.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.data.orders[order.ID]; !ok {
		return utils.ErrOrderNotFound
	}
	s.db.data.orders[order.ID] = *order
	return nil
}

func (s orderStore) DeleteLines(_ context.Context, orderID int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.data.lines, orderID)
	return nil
}

func (s orderStore) Delete(_ context.Context, id int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Orders.Delete"); err != nil {
		return err
	}
	if _, ok := s.db.data.orders[id]; !ok {
		return utils.ErrOrderNotFound
	}
	delete(s.db.data.orders, id)
	return nil
}

type sessionStore struct{ db *DB }

func (s sessionStore) find(match func(models.ShoppingSession) bool) (*models.ShoppingSession, error) {
	for _, id := range sortedIDs(s.db.data.sessions) {
		if sess := s.db.data.sessions[id]; match(sess) {
			return &sess, nil
		}
	}
	return nil, utils.ErrSessionMissing
}

func (s sessionStore) GetByID(_ context.Context, id int) (*models.ShoppingSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.data.sessions[id]
	if !ok {
		return nil, utils.ErrSessionMissing
	}
	return &sess, nil
}

func (s sessionStore) GetByUser(_ context.Context, userID int) (*models.ShoppingSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.find(func(sess models.ShoppingSession) bool {
		return sess.UserID != nil && *sess.UserID == userID
	})
}

func (s sessionStore) GetByAnonKey(_ context.Context, key string) (*models.ShoppingSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.find(func(sess models.ShoppingSession) bool {
		return sess.AnonKey != nil && *sess.AnonKey == key
	})
}

func (s sessionStore) EnsureForUser(_ context.Context, userID int) (*models.ShoppingSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if sess, err := s.find(func(sess models.ShoppingSession) bool {
		return sess.UserID != nil && *sess.UserID == userID
	}); err == nil {
		return sess, nil
	}
	uid := userID
	return s.create(models.ShoppingSession{UserID: &uid}), nil
}

func (s sessionStore) CreateAnonymous(_ context.Context, key string) (*models.ShoppingSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if sess, err := s.find(func(sess models.ShoppingSession) bool {
		return sess.AnonKey != nil && *sess.AnonKey == key
	}); err == nil {
		return sess, nil
	}
	k := key
	return s.create(models.ShoppingSession{AnonKey: &k}), nil
}

func (s sessionStore) create(sess models.ShoppingSession) *models.ShoppingSession {
	sess.ID = s.db.nextID()
	sess.Total = decimal.Zero
	sess.CreatedAt = s.db.now()
	sess.ModifiedAt = sess.CreatedAt
	s.db.data.sessions[sess.ID] = sess
	return &sess
}

func (s sessionStore) Delete(_ context.Context, id int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.data.sessions, id)
	delete(s.db.data.items, id)
	return nil
}

func (s sessionStore) SetTotal(_ context.Context, id int, total decimal.Decimal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Sessions.SetTotal"); err != nil {
		return err
	}
	sess, ok := s.db.data.sessions[id]
	if !ok {
		return utils.ErrSessionMissing
	}
	sess.Total = total
	sess.ModifiedAt = s.db.now()
	s.db.data.sessions[id] = sess
	return nil
}

func (s sessionStore) Items(_ context.Context, sessionID int) ([]models.CartLine, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	items := s.db.data.items[sessionID]
	out := make([]models.CartLine, 0, len(items))
	for _, pid := range sortedIDs(items) {
		p := s.db.data.products[pid]
		out = append(out, models.CartLine{
			CartItem:     items[pid],
			Name:         p.Name,
			Price:        p.Price,
			DynamicPrice: p.DynamicPrice,
			StockLevel:   s.db.data.stock[pid],
		})
	}
	return out, nil
}

func (s sessionStore) GetItem(_ context.Context, sessionID, productID int) (*models.CartItem, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	item, ok := s.db.data.items[sessionID][productID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s sessionStore) SetItemQuantity(_ context.Context, sessionID, productID, qty int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	items, ok := s.db.data.items[sessionID]
	if !ok {
		items = make(map[int]models.CartItem)
		s.db.data.items[sessionID] = items
	}
	item, ok := items[productID]
	if !ok {
		item = models.CartItem{ID: s.db.nextID(), SessionID: sessionID, ProductID: productID, DateAdded: s.db.now()}
	}
	item.Quantity = qty
	items[productID] = item
	return nil
}

func (s sessionStore) DeleteItem(_ context.Context, sessionID, productID int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.data.items[sessionID], productID)
	return nil
}

func (s sessionStore) ClearItems(_ context.Context, sessionID int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("Sessions.ClearItems"); err != nil {
		return err
	}
	delete(s.db.data.items, sessionID)
	return nil
}

type customerStore struct{ db *DB }

func (s customerStore) Create(_ context.Context, c *models.Customer) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.data.customers {
		if strings.EqualFold(existing.Email, c.Email) {
			return utils.ErrEmailTaken
		}
	}
	c.ID = s.db.nextID()
	c.CreatedAt = s.db.now()
	s.db.data.customers[c.ID] = *c
	return nil
}

func (s customerStore) GetByID(_ context.Context, id int) (*models.Customer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.data.customers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s customerStore) GetByEmail(_ context.Context, email string) (*models.Customer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, c := range s.db.data.customers {
		if strings.EqualFold(c.Email, email) {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}
