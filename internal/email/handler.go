package email

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
)

// Handler renders notification templates and delivers them. Delivery is a
// structured log line; there is no SMTP transport.
type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type sendRequest struct {
	To       string         `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

type sendResponse struct {
	Status  string `json:"status"`
	Subject string `json:"subject"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := mail.ParseAddress(req.To); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recipient")
		return
	}

	msg, err := Render(req.Template, req.To, req.Data)
	if errors.Is(err, ErrUnknownTemplate) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render email", "error", err, "template", req.Template)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "email sent", "to", msg.To, "subject", msg.Subject, "template", req.Template)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent", Subject: msg.Subject})
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
