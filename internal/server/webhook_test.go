package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/flare/internal/poller"
)

func sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func webhookStatus(t *testing.T, body []byte) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp["status"]
}

func TestWebhook_FlagsChanged(t *testing.T) {
	srv, _, refresher, _ := setupServer(t)

	body := []byte(`{"event":"flags.changed","flagKeys":["a","b"]}`)
	w := do(srv, http.MethodPost, "/webhook", body, map[string]string{
		"X-Webhook-Signature": sign("abc123", body),
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", webhookStatus(t, w.Body.Bytes()))
	assert.Equal(t, 1, refresher.calls())
}

func TestWebhook_InvalidSignature(t *testing.T) {
	srv, _, refresher, _ := setupServer(t)

	body := []byte(`{"event":"flags.changed"}`)
	w := do(srv, http.MethodPost, "/webhook", body, map[string]string{
		"X-Webhook-Signature": "invalid",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, refresher.calls())

	w = do(srv, http.MethodPost, "/webhook", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhook_IgnoredEvent(t *testing.T) {
	refresher := &mockRefresher{}
	handler := NewWebhookHandler(refresher, "", zerolog.Nop())

	w := serve(handler, http.MethodPost, []byte(`{"event":"segment.created"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ignored", webhookStatus(t, w.Body.Bytes()))
	assert.Equal(t, 0, refresher.calls())
}

func TestWebhook_RefreshOutcomes(t *testing.T) {
	tests := []struct {
		err    error
		status string
	}{
		{poller.ErrRefreshInFlight, "skipped"},
		{errors.New("boom"), "failed"},
	}

	for _, tt := range tests {
		refresher := &mockRefresher{refreshErr: tt.err}
		handler := NewWebhookHandler(refresher, "", zerolog.Nop())

		w := serve(handler, http.MethodPost, []byte(`{"event":"flag.updated","flagKeys":["x"]}`))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tt.status, webhookStatus(t, w.Body.Bytes()))
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	handler := NewWebhookHandler(&mockRefresher{}, "", zerolog.Nop())

	w := serve(handler, http.MethodPost, []byte("{invalid_json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(handler, http.MethodGet, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
