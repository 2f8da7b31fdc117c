package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/payment"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const maxWebhookBody = 64 << 10

// Workflow is the order workflow as seen by the HTTP layer.
type Workflow interface {
	CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*domain.Order, error)
	Checkout(ctx context.Context, actor Actor, orderID string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.Order, error)
	Refund(ctx context.Context, actor Actor, orderID string) (*domain.Order, error)
	Deliver(ctx context.Context, actor Actor, orderID string) (*domain.Order, error)
	GetOrder(ctx context.Context, actor Actor, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, actor Actor) ([]domain.Order, error)
}

type Handler struct {
	workflow Workflow
	logger   *slog.Logger
}

func NewHandler(workflow Workflow, logger *slog.Logger) *Handler {
	return &Handler{
		workflow: workflow,
		logger:   logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.ChiRoute)

	r.Post("/webhooks/stripe", h.HandleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireActor)

		r.Post("/orders", h.HandleCreate)
		r.Get("/orders", h.HandleList)
		r.Get("/orders/{id}", h.HandleGet)
		r.Post("/orders/{id}/checkout", h.HandleCheckout)
		r.Patch("/orders/{id}/refund", h.HandleRefund)
		r.Patch("/orders/{id}/deliver", h.HandleDeliver)
	})

	return r
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	actor, _ := ActorFrom(r.Context())
	order, err := h.workflow.CreateOrder(r.Context(), actor, req)
	if err != nil {
		h.writeServiceError(w, r, "failed to create order", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	order, err := h.workflow.GetOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "failed to get order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	orders, err := h.workflow.ListOrders(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, "failed to list orders", err)
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type checkoutResponse struct {
	URL string `json:"url"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	url, err := h.workflow.Checkout(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "failed to create checkout session", err)
		return
	}

	h.writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	order, err := h.workflow.Refund(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "failed to refund order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDeliver(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	order, err := h.workflow.Deliver(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "failed to deliver order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type webhookResponse struct {
	Received bool          `json:"received"`
	Order    *domain.Order `json:"order,omitempty"`
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.workflow.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.writeServiceError(w, r, "failed to handle webhook", err)
		return
	}

	h.writeJSON(w, http.StatusOK, webhookResponse{Received: true, Order: order})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var gatewayErr *payment.GatewayError

	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrCouponNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		h.writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, payment.ErrInvalidSignature):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, r, http.StatusForbidden, err.Error())
	case errors.As(err, &gatewayErr):
		h.logger.ErrorContext(r.Context(), msg, "error", err, "operation", gatewayErr.Op)
		h.writeError(w, r, http.StatusBadGateway, "payment gateway error")
	default:
		h.logger.ErrorContext(r.Context(), msg, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := map[string]string{"error": message}
	if id := middleware.GetReqID(r.Context()); id != "" {
		body["request_id"] = id
	}
	h.writeJSON(w, status, body)
}
