package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type Store interface {
	FindByOwner(ctx context.Context, ownerID string) (*domain.Cart, error)
	AddLine(ctx context.Context, ownerID string, line domain.CartLine) (*domain.Cart, error)
	UpdateLine(ctx context.Context, ownerID string, line domain.CartLine) (*domain.Cart, error)
	RemoveLine(ctx context.Context, ownerID, productID string) (*domain.Cart, error)
}

// Products resolves the current price and stock of a product.
type Products interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Handler struct {
	store    Store
	products Products
	logger   *slog.Logger
}

func NewHandler(store Store, products Products, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		products: products,
		logger:   logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	c, err := h.store.FindByOwner(r.Context(), actor.ID)
	if err != nil {
		h.handleStoreError(w, r, err, "failed to get cart")
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

type addLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	line, ok := h.priceLine(w, r, req.ProductID, req.Quantity)
	if !ok {
		return
	}

	c, err := h.store.AddLine(r.Context(), actor.ID, line)
	if err != nil {
		h.handleStoreError(w, r, err, "failed to add product to cart")
		return
	}

	h.logger.InfoContext(r.Context(), "product added to cart", "user_id", actor.ID, "product_id", line.ProductID, "quantity", line.Quantity)
	h.writeJSON(w, http.StatusCreated, c)
}

type updateLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	var req updateLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	line, ok := h.priceLine(w, r, productID, req.Quantity)
	if !ok {
		return
	}

	c, err := h.store.UpdateLine(r.Context(), actor.ID, line)
	if err != nil {
		h.handleStoreError(w, r, err, "failed to update cart line")
		return
	}

	h.logger.InfoContext(r.Context(), "cart line updated", "user_id", actor.ID, "product_id", productID, "quantity", line.Quantity)
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	c, err := h.store.RemoveLine(r.Context(), actor.ID, productID)
	if err != nil {
		h.handleStoreError(w, r, err, "failed to remove cart line")
		return
	}

	h.logger.InfoContext(r.Context(), "product removed from cart", "user_id", actor.ID, "product_id", productID)
	h.writeJSON(w, http.StatusOK, c)
}

// priceLine builds a cart line priced at the product's current price. Products
// whose stock cannot cover quantity are reported as not found.
func (h *Handler) priceLine(w http.ResponseWriter, r *http.Request, productID string, quantity int) (domain.CartLine, bool) {
	if quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "quantity must be positive")
		return domain.CartLine{}, false
	}

	product, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		h.handleStoreError(w, r, err, "failed to get product")
		return domain.CartLine{}, false
	}

	if product.Stock < quantity {
		h.writeError(w, http.StatusNotFound, "product not found")
		return domain.CartLine{}, false
	}

	return domain.CartLine{ProductID: product.ID, Quantity: quantity, FinalPrice: product.Price}, true
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor := identity.FromRequest(r)
	if actor.ID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return actor, false
	}
	return actor, true
}

func (h *Handler) handleStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, domain.ErrCartNotFound):
		h.writeError(w, http.StatusNotFound, "cart not found")
	case errors.Is(err, domain.ErrCartLineNotFound):
		h.writeError(w, http.StatusNotFound, "product not in cart")
	case errors.Is(err, domain.ErrCartLineExists):
		h.writeError(w, http.StatusConflict, "product already in cart")
	default:
		h.logger.ErrorContext(r.Context(), msg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
