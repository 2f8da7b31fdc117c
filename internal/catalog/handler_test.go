package catalog

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

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type fakeStore struct {
	products map[string]domain.Product
	err      error
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (f *fakeStore) Restock(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p.Stock += quantity
	p.Quantity += quantity
	f.products[id] = p
	return &p, nil
}

func newTestMux(store Store) *http.ServeMux {
	handler := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", handler.HandleList)
	mux.HandleFunc("GET /products/{id}", handler.HandleGet)
	mux.HandleFunc("POST /products/{id}/restock", handler.HandleRestock)
	return mux
}

func seededStore() *fakeStore {
	return &fakeStore{products: map[string]domain.Product{
		"PROD-001": {ID: "PROD-001", Name: "Desk Lamp", Price: decimal.NewFromInt(100), Stock: 10, Quantity: 10},
	}}
}

func TestHandler_HandleGet(t *testing.T) {
	mux := newTestMux(seededStore())

	t.Run("returns product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/PROD-001", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var p domain.Product
		if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if p.Name != "Desk Lamp" || p.Stock != 10 {
			t.Errorf("unexpected product %+v", p)
		}
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/nope", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleList(t *testing.T) {
	t.Run("lists products", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux(seededStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var products []domain.Product
		if err := json.NewDecoder(rec.Body).Decode(&products); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(products) != 1 {
			t.Errorf("expected 1 product, got %d", len(products))
		}
	})

	t.Run("returns 500 on store failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux(&fakeStore{err: errors.New("db down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleRestock(t *testing.T) {
	store := seededStore()
	mux := newTestMux(store)

	t.Run("adds stock", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/products/PROD-001/restock", strings.NewReader(`{"quantity": 5}`))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := store.products["PROD-001"].Stock; got != 15 {
			t.Errorf("expected stock 15, got %d", got)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/products/PROD-001/restock", strings.NewReader(`{"quantity": 0}`))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}
