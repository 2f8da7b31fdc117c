package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/payment"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const webhookSource = "stripe"

type Config struct {
	// DeliveryWindow is added to the creation time to estimate arrives_at.
	DeliveryWindow time.Duration
	// ReleaseReservations restores stock and coupon usage when an order is
	// cancelled.
	ReleaseReservations bool
}

func DefaultConfig() Config {
	return Config{
		DeliveryWindow:      48 * time.Hour,
		ReleaseReservations: true,
	}
}

type Deps struct {
	Orders      OrderStore
	Products    ProductStore
	Carts       CartStore
	Coupons     CouponStore
	Gateway     PaymentGateway
	Events      EventPublisher
	Idempotency IdempotencyStore
	Tx          TxRunner
	Metrics     *telemetry.WorkflowMetrics
	Logger      *slog.Logger
}

type Service struct {
	orders      OrderStore
	products    ProductStore
	carts       CartStore
	coupons     CouponStore
	gateway     PaymentGateway
	events      EventPublisher
	idempotency IdempotencyStore
	tx          TxRunner
	metrics     *telemetry.WorkflowMetrics
	logger      *slog.Logger
	cfg         Config
	now         func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	return &Service{
		orders:      deps.Orders,
		products:    deps.Products,
		carts:       deps.Carts,
		coupons:     deps.Coupons,
		gateway:     deps.Gateway,
		events:      deps.Events,
		idempotency: deps.Idempotency,
		tx:          deps.Tx,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type CreateOrderRequest struct {
	Address       string               `json:"address"`
	Phone         string               `json:"phone"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Coupon        string               `json:"coupon,omitempty"`
}

func (r CreateOrderRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Address) == "" {
		problems = append(problems, "address is required")
	}
	if strings.TrimSpace(r.Phone) == "" {
		problems = append(problems, "phone is required")
	}
	if !r.PaymentMethod.Valid() {
		problems = append(problems, "payment_method must be one of CASH, CARD, EWALLET")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// CreateOrder turns the actor's cart into an order. Stock reservation, coupon
// usage and the cash-order cart clear commit together with the order row.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()

	var coupon *domain.Coupon
	if req.Coupon != "" {
		c, err := s.coupons.FindActiveByCode(ctx, req.Coupon)
		if err != nil {
			return nil, err
		}
		if !c.Usable(now) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCouponExpired, c.Code)
		}
		coupon = c
	}

	cart, err := s.carts.FindByOwner(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if cart.Empty() {
		return nil, domain.ErrCartNotFound
	}

	if err := s.checkAvailability(ctx, cart); err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:        actor.ID,
		UserEmail:     actor.Email,
		CartID:        cart.ID,
		Items:         cart.Items(),
		TotalPrice:    domain.ApplyDiscount(cart.SubTotal(), coupon),
		Address:       req.Address,
		Phone:         req.Phone,
		PaymentMethod: req.PaymentMethod,
		Status:        req.PaymentMethod.InitialStatus(),
		ArrivesAt:     now.Add(s.cfg.DeliveryWindow),
		CreatedAt:     now,
	}
	if coupon != nil {
		order.CouponID = coupon.ID
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range order.Items {
			if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if coupon != nil {
			if err := s.coupons.IncrementUsage(ctx, coupon.ID); err != nil {
				return err
			}
		}

		if order.PaymentMethod == domain.PaymentMethodCash {
			if err := s.carts.RemoveProducts(ctx, cart.ID, order.ProductIDs()); err != nil {
				return fmt.Errorf("clear ordered products from cart: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated(ctx, order.PaymentMethod)
	s.publish(ctx, domain.EventOrderCreated, order)

	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"user_id", order.UserID,
		"status", order.Status,
		"total_price", order.TotalPrice.String(),
	)
	return order, nil
}

func (s *Service) checkAvailability(ctx context.Context, cart *domain.Cart) error {
	available, err := s.products.FindAvailable(ctx, cart.Lines)
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}

	if len(available) == len(cart.Lines) {
		return nil
	}

	found := make(map[string]bool, len(available))
	for _, p := range available {
		found[p.ID] = true
	}

	var missing []string
	for _, line := range cart.Lines {
		if !found[line.ProductID] {
			missing = append(missing, line.ProductID)
		}
	}

	return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, strings.Join(missing, ", "))
}

// Checkout opens a hosted payment session for a pending order owned by the
// actor and returns the URL to redirect the customer to.
func (s *Service) Checkout(ctx context.Context, actor Actor, orderID string) (string, error) {
	order, err := s.orders.FindByIDWithStatus(ctx, orderID, domain.OrderStatusPending)
	if err != nil {
		return "", err
	}
	if order.UserID != actor.ID {
		return "", domain.ErrOrderNotFound
	}

	lineItems, err := s.lineItems(ctx, order)
	if err != nil {
		return "", err
	}

	req := payment.CheckoutSessionRequest{
		OrderID:       order.ID,
		CustomerEmail: order.UserEmail,
		LineItems:     lineItems,
	}

	if order.HasCoupon() {
		coupon, err := s.coupons.GetByID(ctx, order.CouponID)
		if err != nil {
			return "", err
		}

		req.CouponID, err = s.gateway.CreatePercentOffCoupon(ctx, coupon.Discount)
		if err != nil {
			s.metrics.GatewayFailed(ctx, "create_coupon")
			return "", err
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.metrics.GatewayFailed(ctx, "create_checkout_session")
		return "", err
	}

	s.logger.InfoContext(ctx, "checkout session created", "order_id", order.ID, "session_id", session.ID)
	return session.URL, nil
}

func (s *Service) lineItems(ctx context.Context, order *domain.Order) ([]domain.CheckoutLineItem, error) {
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load order products: %w", err)
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]domain.CheckoutLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
		}

		line, err := domain.NewCheckoutLineItem(item, product)
		if err != nil {
			return nil, err
		}
		items = append(items, line)
	}

	return items, nil
}

// HandleWebhook applies a signed gateway event. It returns a nil order for
// events that do not reference an order.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.Order, error) {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.metrics.WebhookHandled(ctx, "unknown", "rejected")
		return nil, err
	}

	if event.OrderID == "" {
		s.metrics.WebhookHandled(ctx, event.Type, "ignored")
		s.logger.InfoContext(ctx, "webhook event ignored", "event_id", event.ID, "type", event.Type)
		return nil, nil
	}

	order, err := s.orders.GetByID(ctx, event.OrderID)
	if err != nil {
		return nil, err
	}

	if event.Type != payment.EventCheckoutSessionCompleted {
		s.metrics.WebhookHandled(ctx, event.Type, "ignored")
		return order, nil
	}

	if alreadyPaid(order) {
		s.metrics.WebhookHandled(ctx, event.Type, "duplicate")
		return order, nil
	}

	key := s.idempotency.Key(webhookSource, event.ID)
	processed, err := s.idempotency.Processed(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check webhook event: %w", err)
	}
	if processed && order.Status != domain.OrderStatusPending {
		s.metrics.WebhookHandled(ctx, event.Type, "duplicate")
		s.logger.InfoContext(ctx, "duplicate webhook event", "event_id", event.ID, "order_id", order.ID)
		return order, nil
	}
	if processed {
		s.logger.WarnContext(ctx, "webhook event recorded but order still pending", "event_id", event.ID, "order_id", order.ID)
	}

	paid, err := s.markPaid(ctx, order, event.PaymentIntent)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			current, gErr := s.orders.GetByID(ctx, order.ID)
			if gErr == nil && alreadyPaid(current) {
				s.metrics.WebhookHandled(ctx, event.Type, "duplicate")
				return current, nil
			}
		}

		s.metrics.WebhookHandled(ctx, event.Type, "failed")
		return nil, err
	}

	// Recorded only after the payment committed; a crash before this line
	// leaves the order PENDING and the next delivery pays it.
	if err := s.idempotency.MarkProcessed(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to record webhook event", "error", err, "event_id", event.ID)
	}

	s.metrics.WebhookHandled(ctx, event.Type, "paid")
	s.logger.InfoContext(ctx, "order paid", "order_id", paid.ID, "payment_intent", paid.PaymentIntent)
	return paid, nil
}

// alreadyPaid reports whether a payment has been applied to the order, either
// still PAID or delivered after payment.
func alreadyPaid(o *domain.Order) bool {
	switch o.Status {
	case domain.OrderStatusPaid:
		return true
	case domain.OrderStatusDelivered:
		return o.PaymentIntent != ""
	default:
		return false
	}
}

func (s *Service) markPaid(ctx context.Context, order *domain.Order, paymentIntent string) (*domain.Order, error) {
	t := domain.NewTransition(domain.OrderStatusPaid, "", s.now())
	t.PaymentIntent = paymentIntent

	var paid *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		paid, err = s.orders.Transition(ctx, order.ID, t)
		if err != nil {
			return err
		}

		if err := s.carts.RemoveProducts(ctx, order.CartID, order.ProductIDs()); err != nil {
			return fmt.Errorf("clear ordered products from cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitioned(ctx, paid.Status)
	s.publish(ctx, domain.EventOrderPaid, paid)
	return paid, nil
}

// Refund cancels an order that has not been paid or fulfilled yet, and for
// card payments with a captured payment intent refunds it through the gateway.
func (s *Service) Refund(ctx context.Context, actor Actor, orderID string) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	cancelled, err := s.cancel(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	if cancelled.PaymentMethod != domain.PaymentMethodCard || cancelled.PaymentIntent == "" {
		return cancelled, nil
	}

	refundID, err := s.gateway.Refund(ctx, cancelled.PaymentIntent)
	if err != nil {
		s.metrics.GatewayFailed(ctx, "refund")
		s.logger.ErrorContext(ctx, "gateway refund failed", "error", err, "order_id", cancelled.ID)
		return nil, err
	}

	refunded, err := s.orders.Transition(ctx, cancelled.ID,
		domain.NewTransition(domain.OrderStatusRefunded, actor.ID, s.now()))
	if err != nil {
		return nil, err
	}

	s.metrics.Transitioned(ctx, refunded.Status)
	s.publish(ctx, domain.EventOrderRefunded, refunded)

	s.logger.InfoContext(ctx, "order refunded", "order_id", refunded.ID, "refund_id", refundID)
	return refunded, nil
}

func (s *Service) cancel(ctx context.Context, actor Actor, orderID string) (*domain.Order, error) {
	t := domain.NewTransition(domain.OrderStatusCancelled, actor.ID, s.now())

	var cancelled *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = s.orders.Transition(ctx, orderID, t)
		if err != nil {
			return err
		}

		if !s.cfg.ReleaseReservations {
			return nil
		}

		for _, item := range cancelled.Items {
			if err := s.products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}

		if cancelled.HasCoupon() {
			if err := s.coupons.ReleaseUsage(ctx, cancelled.CouponID); err != nil {
				return fmt.Errorf("release coupon: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitioned(ctx, cancelled.Status)
	s.publish(ctx, domain.EventOrderCancelled, cancelled)

	s.logger.InfoContext(ctx, "order cancelled", "order_id", cancelled.ID, "canceled_by", actor.ID)
	return cancelled, nil
}

// Deliver marks a paid or cash order as handed over to the customer.
func (s *Service) Deliver(ctx context.Context, actor Actor, orderID string) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	delivered, err := s.orders.Transition(ctx, orderID,
		domain.NewTransition(domain.OrderStatusDelivered, actor.ID, s.now()))
	if err != nil {
		return nil, err
	}

	s.metrics.Transitioned(ctx, delivered.Status)
	s.publish(ctx, domain.EventOrderDelivered, delivered)

	s.logger.InfoContext(ctx, "order delivered", "order_id", delivered.ID, "delivered_by", actor.ID)
	return delivered, nil
}

// GetOrder returns an order visible to the actor. Orders of other users are
// reported as missing unless the actor is an admin.
func (s *Service) GetOrder(ctx context.Context, actor Actor, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID && !actor.IsAdmin() {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, actor Actor) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, actor.ID)
}

// publish emits a domain event after the state change it describes has been
// committed. Delivery failures are logged and do not fail the operation.
func (s *Service) publish(ctx context.Context, eventType domain.EventType, order *domain.Order) {
	if s.events == nil {
		return
	}

	event := domain.NewOrderEvent(eventType, order, s.now())
	if err := s.events.Publish(ctx, order.ID, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order event", "error", err, "order_id", order.ID, "type", eventType)
	}
}
