package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	coupons map[string]domain.Coupon
	err     error
}

func (f *fakeStore) Create(_ context.Context, c *domain.Coupon) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.coupons[c.Code]; ok {
		return domain.ErrCouponExists
	}
	c.ID = "coupon-" + c.Code
	f.coupons[c.Code] = *c
	return nil
}

func newTestMux(store Store) *http.ServeMux {
	handler := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	handler.now = func() time.Time { return testNow }
	mux := http.NewServeMux()
	mux.HandleFunc("POST /coupons", handler.HandleCreate)
	return mux
}

func post(mux http.Handler, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/coupons", strings.NewReader(body))
	if role != "" {
		req.Header.Set(identity.HeaderUserID, "someone")
		req.Header.Set(identity.HeaderUserRole, role)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_HandleCreate(t *testing.T) {
	t.Run("admin creates a coupon with defaults", func(t *testing.T) {
		store := &fakeStore{coupons: map[string]domain.Coupon{}}
		rec := post(newTestMux(store), identity.RoleAdmin, `{"code": "SPRING", "discount": "15"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var c domain.Coupon
		if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if c.ID != "coupon-SPRING" || c.UsageLimit != 1 || !c.IsActive {
			t.Errorf("unexpected coupon %+v", c)
		}
		if !c.Discount.Equal(decimal.NewFromInt(15)) {
			t.Errorf("expected discount 15, got %s", c.Discount)
		}
		if c.ExpiryDate == nil || !c.ExpiryDate.Equal(testNow.Add(domain.CouponLifetime)) {
			t.Errorf("expected default expiry, got %v", c.ExpiryDate)
		}
	})

	tests := []struct {
		name       string
		role       string
		body       string
		store      *fakeStore
		wantStatus int
	}{
		{
			name:       "anonymous",
			body:       `{"code": "X", "discount": 10}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "customer",
			role:       "user",
			body:       `{"code": "X", "discount": 10}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "duplicate code",
			role:       identity.RoleAdmin,
			body:       `{"code": "WELCOME10", "discount": 10}`,
			store:      &fakeStore{coupons: map[string]domain.Coupon{"WELCOME10": {Code: "WELCOME10"}}},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "discount out of range",
			role:       identity.RoleAdmin,
			body:       `{"code": "X", "discount": 150}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			role:       identity.RoleAdmin,
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store failure",
			role:       identity.RoleAdmin,
			body:       `{"code": "X", "discount": 10}`,
			store:      &fakeStore{err: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				store = &fakeStore{coupons: map[string]domain.Coupon{}}
			}
			rec := post(newTestMux(store), tt.role, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}
