package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type StripeGateway struct {
	api *client.API
	cfg StripeConfig
}

// NewStripeGateway builds a gateway against the Stripe API. backends may be
// nil to use the default Stripe endpoints.
func NewStripeGateway(cfg StripeConfig, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		api: client.New(cfg.SecretKey, backends),
		cfg: cfg,
	}
}

func (g *StripeGateway) CreatePercentOffCoupon(ctx context.Context, percentOff decimal.Decimal) (string, error) {
	params := &stripe.CouponParams{
		Duration:   stripe.String(string(stripe.CouponDurationForever)),
		PercentOff: stripe.Float64(percentOff.InexactFloat64()),
	}
	params.Context = ctx

	coupon, err := g.api.Coupons.New(params)
	if err != nil {
		return "", &GatewayError{Op: "create coupon", Err: err}
	}

	return coupon.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(req.CustomerEmail),
		SuccessURL:         stripe.String(g.cfg.SuccessURL),
		CancelURL:          stripe.String(g.cfg.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, req.OrderID)

	for _, item := range req.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Image != "" {
			productData.Images = stripe.StringSlice([]string{item.Image})
		}

		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.cfg.Currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	if req.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(req.CouponID)},
		}
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, &GatewayError{Op: "create checkout session", Err: err}
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentIntent string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntent),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return "", &GatewayError{Op: "refund", Err: err}
	}

	return refund.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header against the endpoint
// secret and extracts the order reference from checkout session events.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	parsed := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return parsed, nil
	}

	if !strings.HasPrefix(parsed.Type, "checkout.session.") {
		var object struct {
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", event.Type, err)
		}
		parsed.OrderID = object.Metadata[MetadataOrderID]
		return parsed, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	parsed.OrderID = session.Metadata[MetadataOrderID]
	if session.PaymentIntent != nil {
		parsed.PaymentIntent = session.PaymentIntent.ID
	}

	return parsed, nil
}
