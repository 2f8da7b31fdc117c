package domain

import (
	"slices"
	"testing"
	"time"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPlaced, OrderStatusCancelled, true},
		{OrderStatusPlaced, OrderStatusDelivered, true},
		{OrderStatusPaid, OrderStatusDelivered, true},
		{OrderStatusCancelled, OrderStatusRefunded, true},
		{OrderStatusPaid, OrderStatusPaid, false},
		{OrderStatusPaid, OrderStatusCancelled, false},
		{OrderStatusPlaced, OrderStatusPaid, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusRefunded, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusDelivered, OrderStatusRefunded} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusPlaced, OrderStatusPaid, OrderStatusCancelled} {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestNoTransitionReturnsToInitialStatus(t *testing.T) {
	for _, initial := range []OrderStatus{OrderStatusPending, OrderStatusPlaced} {
		if from := SourcesOf(initial); len(from) != 0 {
			t.Errorf("expected no way back to %s, got sources %v", initial, from)
		}
	}
}

func TestNewTransition(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	cancel := NewTransition(OrderStatusCancelled, "admin-1", at)
	want := []OrderStatus{OrderStatusPending, OrderStatusPlaced}
	if !slices.Equal(cancel.From, want) {
		t.Fatalf("expected from %v, got %v", want, cancel.From)
	}
	if !cancel.Allows(OrderStatusPlaced) {
		t.Error("expected PLACED to be cancellable")
	}
	if cancel.Allows(OrderStatusPaid) {
		t.Error("expected PAID not to be cancellable")
	}

	refund := NewTransition(OrderStatusRefunded, "admin-1", at)
	if !slices.Equal(refund.From, []OrderStatus{OrderStatusCancelled}) {
		t.Fatalf("expected refund only from CANCELLED, got %v", refund.From)
	}
}

func TestOrder_Apply(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	order := &Order{ID: "o-1", Status: OrderStatusPending}

	paid := NewTransition(OrderStatusPaid, "", at)
	paid.PaymentIntent = "pi_123"
	order.Apply(paid)

	if order.Status != OrderStatusPaid {
		t.Fatalf("expected PAID, got %s", order.Status)
	}
	if order.PaymentIntent != "pi_123" {
		t.Errorf("expected payment intent pi_123, got %s", order.PaymentIntent)
	}
	if order.Changes.PaidAt == nil || !order.Changes.PaidAt.Equal(at) {
		t.Errorf("expected paid_at %v, got %v", at, order.Changes.PaidAt)
	}

	order.Apply(NewTransition(OrderStatusDelivered, "admin-1", at.Add(time.Hour)))
	if order.Changes.DeliveredBy != "admin-1" {
		t.Errorf("expected delivered_by admin-1, got %s", order.Changes.DeliveredBy)
	}
}
