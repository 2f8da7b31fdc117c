package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const testWebhookSecret = "whsec_test"

type recordedRequest struct {
	path string
	form url.Values
}

func newTestGateway(t *testing.T, status int, response string) (*StripeGateway, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		requests = append(requests, recordedRequest{path: r.URL.Path, form: r.PostForm})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})

	gw := NewStripeGateway(StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Currency:      "egp",
		SuccessURL:    "http://localhost:3000/order/success",
		CancelURL:     "http://localhost:3000/order/cancel",
	}, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return gw, &requests
}

func TestStripeGateway_CreateCheckoutSession(t *testing.T) {
	gw, requests := newTestGateway(t, http.StatusOK,
		`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`)

	session, err := gw.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		OrderID:       "order-1",
		CustomerEmail: "ada@example.com",
		CouponID:      "coupon_abc",
		LineItems: []domain.CheckoutLineItem{
			{ProductID: "PROD-001", Name: "Mug", Image: "http://img/mug.png", UnitAmount: 1050, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.URL != "https://checkout.stripe.com/c/pay/cs_test_1" {
		t.Errorf("expected session url, got %q", session.URL)
	}

	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	req := (*requests)[0]
	if req.path != "/v1/checkout/sessions" {
		t.Errorf("expected path /v1/checkout/sessions, got %s", req.path)
	}

	want := map[string]string{
		"mode":                                               "payment",
		"customer_email":                                     "ada@example.com",
		"metadata[order_id]":                                 "order-1",
		"discounts[0][coupon]":                               "coupon_abc",
		"line_items[0][quantity]":                            "2",
		"line_items[0][price_data][currency]":                "egp",
		"line_items[0][price_data][unit_amount]":             "1050",
		"line_items[0][price_data][product_data][name]":      "Mug",
		"line_items[0][price_data][product_data][images][0]": "http://img/mug.png",
		"success_url":                                        "http://localhost:3000/order/success",
	}
	for key, value := range want {
		if got := req.form.Get(key); got != value {
			t.Errorf("form %s: expected %q, got %q", key, value, got)
		}
	}
}

func TestStripeGateway_CreateCheckoutSessionWithoutCoupon(t *testing.T) {
	gw, requests := newTestGateway(t, http.StatusOK, `{"id":"cs_test_2","url":"https://checkout/2"}`)

	_, err := gw.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		OrderID:   "order-2",
		LineItems: []domain.CheckoutLineItem{{ProductID: "P", Name: "Pen", UnitAmount: 100, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := (*requests)[0].form.Get("discounts[0][coupon]"); got != "" {
		t.Errorf("expected no discount, got %q", got)
	}
}

func TestStripeGateway_CreatePercentOffCoupon(t *testing.T) {
	gw, requests := newTestGateway(t, http.StatusOK, `{"id":"coupon_abc","object":"coupon"}`)

	id, err := gw.CreatePercentOffCoupon(context.Background(), decimal.RequireFromString("12.5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "coupon_abc" {
		t.Errorf("expected coupon_abc, got %s", id)
	}

	req := (*requests)[0]
	if req.path != "/v1/coupons" {
		t.Errorf("expected path /v1/coupons, got %s", req.path)
	}
	if req.form.Get("duration") != "forever" {
		t.Errorf("expected forever duration, got %q", req.form.Get("duration"))
	}
	if req.form.Get("percent_off") != "12.5" {
		t.Errorf("expected percent_off 12.5, got %q", req.form.Get("percent_off"))
	}
}

func TestStripeGateway_Refund(t *testing.T) {
	gw, requests := newTestGateway(t, http.StatusOK, `{"id":"re_1","object":"refund","status":"succeeded"}`)

	id, err := gw.Refund(context.Background(), "pi_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "re_1" {
		t.Errorf("expected re_1, got %s", id)
	}

	req := (*requests)[0]
	if req.path != "/v1/refunds" {
		t.Errorf("expected path /v1/refunds, got %s", req.path)
	}
	if req.form.Get("payment_intent") != "pi_123" {
		t.Errorf("expected payment_intent pi_123, got %q", req.form.Get("payment_intent"))
	}
	if req.form.Get("reason") != "requested_by_customer" {
		t.Errorf("expected reason requested_by_customer, got %q", req.form.Get("reason"))
	}
}

func TestStripeGateway_ErrorsAreGatewayErrors(t *testing.T) {
	gw, _ := newTestGateway(t, http.StatusPaymentRequired,
		`{"error":{"type":"card_error","message":"charge already refunded"}}`)

	_, err := gw.Refund(context.Background(), "pi_123")
	if err == nil {
		t.Fatal("expected error")
	}

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %T", err)
	}
	if gwErr.Op != "refund" {
		t.Errorf("expected op refund, got %s", gwErr.Op)
	}
}

func signPayload(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()

	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeGateway_ParseWebhook(t *testing.T) {
	gw, _ := newTestGateway(t, http.StatusOK, `{}`)

	completed := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"metadata": {"order_id": "order-1"},
			"payment_intent": "pi_123"
		}}
	}`)

	tests := []struct {
		name          string
		payload       []byte
		signature     string
		expectErr     error
		expectType    string
		expectOrderID string
		expectIntent  string
	}{
		{
			name:          "checkout session completed",
			payload:       completed,
			signature:     signPayload(t, completed, testWebhookSecret, time.Now()),
			expectType:    EventCheckoutSessionCompleted,
			expectOrderID: "order-1",
			expectIntent:  "pi_123",
		},
		{
			name:      "wrong secret",
			payload:   completed,
			signature: signPayload(t, completed, "whsec_other", time.Now()),
			expectErr: ErrInvalidSignature,
		},
		{
			name:      "stale timestamp",
			payload:   completed,
			signature: signPayload(t, completed, testWebhookSecret, time.Now().Add(-time.Hour)),
			expectErr: ErrInvalidSignature,
		},
		{
			name:      "missing header",
			payload:   completed,
			signature: "",
			expectErr: ErrInvalidSignature,
		},
		{
			name:       "other event type without order reference",
			payload:    []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`),
			expectType: "customer.created",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signature := tt.signature
			if signature == "" && tt.expectErr == nil {
				signature = signPayload(t, tt.payload, testWebhookSecret, time.Now())
			}

			event, err := gw.ParseWebhook(tt.payload, signature)
			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Fatalf("expected %v, got %v", tt.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if event.Type != tt.expectType {
				t.Errorf("expected type %s, got %s", tt.expectType, event.Type)
			}
			if event.OrderID != tt.expectOrderID {
				t.Errorf("expected order id %q, got %q", tt.expectOrderID, event.OrderID)
			}
			if event.PaymentIntent != tt.expectIntent {
				t.Errorf("expected payment intent %q, got %q", tt.expectIntent, event.PaymentIntent)
			}
		})
	}
}
