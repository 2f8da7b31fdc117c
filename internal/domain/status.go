package domain

import (
	"slices"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

var allStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPlaced,
	OrderStatusPaid,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// transitions is the complete order state machine. Statuses without an entry
// are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPlaced:    {OrderStatusCancelled, OrderStatusDelivered},
	OrderStatusPaid:      {OrderStatusDelivered},
	OrderStatusCancelled: {OrderStatusRefunded},
}

func (s OrderStatus) Valid() bool {
	return slices.Contains(allStatuses, s)
}

func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	return slices.Contains(transitions[s], to)
}

// SourcesOf returns every status that may move to the given one.
func SourcesOf(to OrderStatus) []OrderStatus {
	var from []OrderStatus
	for _, s := range allStatuses {
		if s.CanTransitionTo(to) {
			from = append(from, s)
		}
	}
	return from
}

// Transition is a status change request. Stores must apply it only while the
// order is still in one of From.
type Transition struct {
	From          []OrderStatus
	To            OrderStatus
	Actor         string
	At            time.Time
	PaymentIntent string
}

func NewTransition(to OrderStatus, actor string, at time.Time) Transition {
	return Transition{
		From:  SourcesOf(to),
		To:    to,
		Actor: actor,
		At:    at,
	}
}

func (t Transition) Allows(current OrderStatus) bool {
	return slices.Contains(t.From, current)
}
