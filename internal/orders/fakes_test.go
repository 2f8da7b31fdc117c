package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/payment"
)

// memDB is an in-memory stand-in for the Postgres schema. WithinTx restores
// a snapshot when fn fails, so rollback behavior can be asserted.
type memDB struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	products map[string]*domain.Product
	carts    map[string]*domain.Cart
	coupons  map[string]*domain.Coupon

	failIncrementUsage error
}

func newMemDB() *memDB {
	return &memDB{
		orders:   make(map[string]*domain.Order),
		products: make(map[string]*domain.Product),
		carts:    make(map[string]*domain.Cart),
		coupons:  make(map[string]*domain.Coupon),
	}
}

type memSnapshot struct {
	orders   map[string]*domain.Order
	products map[string]*domain.Product
	carts    map[string]*domain.Cart
	coupons  map[string]*domain.Coupon
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := memSnapshot{
		orders:   make(map[string]*domain.Order, len(db.orders)),
		products: make(map[string]*domain.Product, len(db.products)),
		carts:    make(map[string]*domain.Cart, len(db.carts)),
		coupons:  make(map[string]*domain.Coupon, len(db.coupons)),
	}
	for k, v := range db.orders {
		s.orders[k] = cloneOrder(v)
	}
	for k, v := range db.products {
		p := *v
		s.products[k] = &p
	}
	for k, v := range db.carts {
		s.carts[k] = cloneCart(v)
	}
	for k, v := range db.coupons {
		c := *v
		s.coupons[k] = &c
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.orders = s.orders
	db.products = s.products
	db.carts = s.carts
	db.coupons = s.coupons
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := db.snapshot()
	if err := fn(ctx); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Lines = append([]domain.CartLine(nil), c.Lines...)
	return &out
}

func (db *memDB) product(id string) domain.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.products[id]
}

func (db *memDB) coupon(id string) domain.Coupon {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.coupons[id]
}

func (db *memDB) cart(owner string) *domain.Cart {
	db.mu.Lock()
	defer db.mu.Unlock()
	return cloneCart(db.carts[owner])
}

func (db *memDB) order(id string) *domain.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return cloneOrder(db.orders[id])
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

func (db *memDB) putOrder(o *domain.Order) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.orders[o.ID] = cloneOrder(o)
}

type memOrders struct{ db *memDB }

func (s memOrders) Create(_ context.Context, order *domain.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.UpdatedAt = order.CreatedAt
	s.db.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s memOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.FindByIDWithStatus(ctx, id)
}

func (s memOrders) FindByIDWithStatus(_ context.Context, id string, statuses ...domain.OrderStatus) (*domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	o, ok := s.db.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if len(statuses) > 0 {
		match := false
		for _, st := range statuses {
			if o.Status == st {
				match = true
			}
		}
		if !match {
			return nil, domain.ErrOrderNotFound
		}
	}
	return cloneOrder(o), nil
}

func (s memOrders) Transition(_ context.Context, id string, t domain.Transition) (*domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	o, ok := s.db.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !t.Allows(o.Status) {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, id, o.Status)
	}
	o.Apply(t)
	return cloneOrder(o), nil
}

func (s memOrders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := []domain.Order{}
	for _, o := range s.db.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memProducts struct{ db *memDB }

func (s memProducts) FindByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []domain.Product
	for _, id := range ids {
		if p, ok := s.db.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s memProducts) FindAvailable(_ context.Context, lines []domain.CartLine) ([]domain.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []domain.Product
	for _, line := range lines {
		if p, ok := s.db.products[line.ProductID]; ok && p.Stock >= line.Quantity {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s memProducts) DecrementStock(_ context.Context, productID string, quantity int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.products[productID]
	if !ok || p.Stock < quantity {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, productID)
	}
	p.Stock -= quantity
	return nil
}

func (s memProducts) IncrementStock(_ context.Context, productID string, quantity int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

type memCarts struct{ db *memDB }

func (s memCarts) FindByOwner(_ context.Context, ownerID string) (*domain.Cart, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.carts[ownerID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (s memCarts) RemoveProducts(_ context.Context, cartID string, productIDs []string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	drop := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		drop[id] = true
	}
	for _, c := range s.db.carts {
		if c.ID != cartID {
			continue
		}
		kept := []domain.CartLine{}
		for _, line := range c.Lines {
			if !drop[line.ProductID] {
				kept = append(kept, line)
			}
		}
		c.Lines = kept
	}
	return nil
}

type memCoupons struct{ db *memDB }

func (s memCoupons) FindActiveByCode(_ context.Context, code string) (*domain.Coupon, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, c := range s.db.coupons {
		if c.Code == code && c.IsActive {
			out := *c
			return &out, nil
		}
	}
	return nil, domain.ErrCouponNotFound
}

func (s memCoupons) GetByID(_ context.Context, id string) (*domain.Coupon, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.coupons[id]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	out := *c
	return &out, nil
}

func (s memCoupons) IncrementUsage(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.db.failIncrementUsage != nil {
		return s.db.failIncrementUsage
	}
	c := s.db.coupons[id]
	if c.UsedCount >= c.UsageLimit {
		return fmt.Errorf("%w: %s", domain.ErrCouponExpired, c.Code)
	}
	c.UsedCount++
	return nil
}

func (s memCoupons) ReleaseUsage(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if c := s.db.coupons[id]; c.UsedCount > 0 {
		c.UsedCount--
	}
	return nil
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePercentOffCoupon(ctx context.Context, percentOff decimal.Decimal) (string, error) {
	args := m.Called(ctx, percentOff)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutSessionRequest) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, paymentIntent string) (string, error) {
	args := m.Called(ctx, paymentIntent)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookEvent), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(domain.OrderEvent))
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdempotency) Key(source, eventID string) string {
	return source + ":" + eventID
}

func (m *memIdempotency) Processed(_ context.Context, key string) (bool, error) {
	return m.processed(key), nil
}

func (m *memIdempotency) MarkProcessed(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

func (m *memIdempotency) processed(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key]
}
