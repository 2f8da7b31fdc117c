package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "CASH"
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodEWallet PaymentMethod = "EWALLET"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodEWallet:
		return true
	}
	return false
}

// InitialStatus is PLACED for cash orders and PENDING for orders awaiting an
// online payment.
func (m PaymentMethod) InitialStatus() OrderStatus {
	if m == PaymentMethodCash {
		return OrderStatusPlaced
	}
	return OrderStatusPending
}

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderChanges struct {
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
	CanceledBy  string     `json:"canceled_by,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	DeliveredBy string     `json:"delivered_by,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	RefundedBy  string     `json:"refunded_by,omitempty"`
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	UserEmail     string          `json:"user_email"`
	CartID        string          `json:"cart_id"`
	CouponID      string          `json:"coupon_id,omitempty"`
	Items         []OrderItem     `json:"items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Address       string          `json:"address"`
	Phone         string          `json:"phone"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	ArrivesAt     time.Time       `json:"arrives_at"`
	PaymentIntent string          `json:"payment_intent,omitempty"`
	Changes       OrderChanges    `json:"order_changes"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (o *Order) HasCoupon() bool {
	return o.CouponID != ""
}

// ProductIDs lists the products the order was placed for.
func (o *Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Apply copies the effects of a successful transition onto the in-memory order.
func (o *Order) Apply(t Transition) {
	o.Status = t.To
	o.UpdatedAt = t.At
	at := t.At
	switch t.To {
	case OrderStatusPaid:
		o.PaymentIntent = t.PaymentIntent
		o.Changes.PaidAt = &at
	case OrderStatusCancelled:
		o.Changes.CanceledAt = &at
		o.Changes.CanceledBy = t.Actor
	case OrderStatusDelivered:
		o.Changes.DeliveredAt = &at
		o.Changes.DeliveredBy = t.Actor
	case OrderStatusRefunded:
		o.Changes.RefundedAt = &at
		o.Changes.RefundedBy = t.Actor
	}
}
