package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

var errPermanent = errors.New("permanent delivery failure")

// NotificationHandler turns order events into emails sent through the email
// service.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

type sendRequest struct {
	To       string         `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// Handle sends the notification for one event. Malformed events and events
// the email service rejects are logged and skipped; transport failures are
// returned so the event is redelivered.
func (h *NotificationHandler) Handle(ctx context.Context, d messaging.Delivery) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		h.logger.ErrorContext(ctx, "skipping malformed order event", "error", err, "key", d.Key)
		return nil
	}

	if event.UserEmail == "" {
		h.logger.WarnContext(ctx, "skipping order event without recipient", "order_id", event.OrderID, "type", event.Type)
		return nil
	}

	req := sendRequest{
		To:       event.UserEmail,
		Template: string(event.Type),
		Data: map[string]any{
			"order_id":       event.OrderID,
			"status":         string(event.Status),
			"payment_method": string(event.PaymentMethod),
			"total_price":    event.TotalPrice.StringFixed(2),
			"arrives_at":     event.ArrivesAt.Format(time.RFC1123),
		},
	}

	err := h.sendEmail(ctx, req)
	if errors.Is(err, errPermanent) {
		h.logger.ErrorContext(ctx, "email rejected", "error", err, "order_id", event.OrderID, "type", event.Type)
		return nil
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to send email", "error", err, "order_id", event.OrderID, "type", event.Type)
		return fmt.Errorf("send %s email: %w", event.Type, err)
	}

	h.logger.InfoContext(ctx, "notification sent", "order_id", event.OrderID, "type", event.Type)
	return nil
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body sendRequest) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: email service returned status %d", errPermanent, resp.StatusCode)
	default:
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}
}
