package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/OrlandoBitencourt/flare/internal/poller"
)

// Webhook events that trigger a snapshot refresh
const (
	EventFlagsChanged = "flags.changed"
	EventFlagUpdated  = "flag.updated"
	EventFlagDeleted  = "flag.deleted"
)

// WebhookHandler handles change notifications from the Flare service
type WebhookHandler struct {
	refresher Refresher
	secret    string
	logger    zerolog.Logger
}

// WebhookPayload represents the webhook payload
type WebhookPayload struct {
	Event     string   `json:"event"`
	FlagKeys  []string `json:"flagKeys"`
	Timestamp string   `json:"timestamp"`
}

// NewWebhookHandler creates a new webhook handler. An empty secret
// disables signature verification.
func NewWebhookHandler(refresher Refresher, secret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		refresher: refresher,
		secret:    secret,
		logger:    logger,
	}
}

// ServeHTTP implements http.Handler
func (h *WebhookHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(rw, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "failed to read body")
		return
	}

	if h.secret != "" && !h.verifySignature(r, body) {
		writeError(rw, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid JSON")
		return
	}

	status := h.handleEvent(context.WithoutCancel(r.Context()), payload)

	writeJSON(rw, http.StatusOK, map[string]string{"status": status})
}

func (h *WebhookHandler) verifySignature(r *http.Request, body []byte) bool {
	signature := r.Header.Get("X-Webhook-Signature")
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}

func (h *WebhookHandler) handleEvent(ctx context.Context, payload WebhookPayload) string {
	switch payload.Event {
	case EventFlagsChanged, EventFlagUpdated, EventFlagDeleted:
	default:
		h.logger.Debug().Str("event", payload.Event).Msg("ignoring webhook event")
		return "ignored"
	}

	err := h.refresher.Refresh(ctx)
	switch {
	case errors.Is(err, poller.ErrRefreshInFlight):
		return "skipped"
	case err != nil:
		h.logger.Error().Err(err).Str("event", payload.Event).Msg("webhook refresh failed")
		return "failed"
	}

	h.logger.Info().
		Str("event", payload.Event).
		Strs("flags", payload.FlagKeys).
		Msg("snapshot refreshed from webhook")
	return "ok"
}
