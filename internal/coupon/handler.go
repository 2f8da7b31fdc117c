package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type Store interface {
	Create(ctx context.Context, c *domain.Coupon) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

type createRequest struct {
	Code       string          `json:"code"`
	Discount   decimal.Decimal `json:"discount"`
	UsageLimit int             `json:"usage_limit"`
	ExpiryDate *time.Time      `json:"expiry_date"`
}

// HandleCreate issues a new coupon. Only admins may call it.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor := identity.FromRequest(r)
	if actor.ID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	if !actor.IsAdmin() {
		h.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := domain.NewCoupon(req.Code, req.Discount, req.UsageLimit, req.ExpiryDate, h.now())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), c); err != nil {
		if errors.Is(err, domain.ErrCouponExists) {
			h.writeError(w, http.StatusConflict, "coupon already exists")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create coupon", "error", err, "code", c.Code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "coupon created", "coupon_id", c.ID, "code", c.Code, "created_by", actor.ID)
	h.writeJSON(w, http.StatusCreated, c)
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
