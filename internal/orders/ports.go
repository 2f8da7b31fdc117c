package orders

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/payment"
)

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	FindByIDWithStatus(ctx context.Context, id string, statuses ...domain.OrderStatus) (*domain.Order, error)
	Transition(ctx context.Context, id string, t domain.Transition) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

type ProductStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	FindAvailable(ctx context.Context, lines []domain.CartLine) ([]domain.Product, error)
	DecrementStock(ctx context.Context, productID string, quantity int) error
	IncrementStock(ctx context.Context, productID string, quantity int) error
}

type CartStore interface {
	FindByOwner(ctx context.Context, ownerID string) (*domain.Cart, error)
	RemoveProducts(ctx context.Context, cartID string, productIDs []string) error
}

type CouponStore interface {
	FindActiveByCode(ctx context.Context, code string) (*domain.Coupon, error)
	GetByID(ctx context.Context, id string) (*domain.Coupon, error)
	IncrementUsage(ctx context.Context, id string) error
	ReleaseUsage(ctx context.Context, id string) error
}

type PaymentGateway interface {
	CreatePercentOffCoupon(ctx context.Context, percentOff decimal.Decimal) (string, error)
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutSessionRequest) (*payment.CheckoutSession, error)
	Refund(ctx context.Context, paymentIntent string) (string, error)
	ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

// EventPublisher is satisfied by both the Kafka producer and the NATS
// publisher in the messaging package.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// IdempotencyStore remembers gateway events whose effects have been
// committed.
type IdempotencyStore interface {
	Key(source, eventID string) string
	Processed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
