package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderPaid      EventType = "order.paid"
	EventOrderCancelled EventType = "order.cancelled"
	EventOrderRefunded  EventType = "order.refunded"
	EventOrderDelivered EventType = "order.delivered"
)

type OrderEvent struct {
	Type          EventType       `json:"type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	UserEmail     string          `json:"user_email"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	ArrivesAt     time.Time       `json:"arrives_at"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewOrderEvent(eventType EventType, order *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		UserEmail:     order.UserEmail,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice,
		ArrivesAt:     order.ArrivesAt,
		Timestamp:     at,
	}
}

// EventName is used as the routing name on the event bus.
func (e OrderEvent) EventName() string {
	return string(e.Type)
}
