// Package payment talks to the hosted payment gateway: checkout sessions,
// percent-off coupons, refunds and signed webhook events.
package payment

import (
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"

	// MetadataOrderID is the checkout session metadata key that carries the
	// order id back in webhook events.
	MetadataOrderID = "order_id"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type CheckoutSessionRequest struct {
	OrderID       string
	CustomerEmail string
	LineItems     []domain.CheckoutLineItem
	// CouponID is the gateway-side coupon id, empty when the order has none.
	CouponID string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// WebhookEvent is the part of a verified gateway event the order workflow
// consumes.
type WebhookEvent struct {
	ID            string
	Type          string
	OrderID       string
	PaymentIntent string
}

// GatewayError wraps any failure reported by the gateway for a named
// operation.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
