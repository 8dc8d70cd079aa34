package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	of "github.com/open-feature/go-sdk/openfeature"
	"github.com/rs/zerolog"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	"github.com/OrlandoBitencourt/flare/internal/poller"
)

// SnapshotStore defines what the admin server needs from the snapshot
type SnapshotStore interface {
	Snapshot() map[string]string
	SetValue(key, value string)
	Len() int
}

// Refresher defines what the admin server needs from the poller
type Refresher interface {
	Refresh(ctx context.Context) error
	Stats() poller.Stats
}

// Evaluator resolves a single boolean flag
type Evaluator interface {
	Resolve(ctx context.Context, flagKey string, defaultValue bool, flatCtx of.FlattenedContext) (of.BoolResolutionDetail, error)
}

// AdminHandler serves the admin endpoints
type AdminHandler struct {
	store     SnapshotStore
	refresher Refresher
	evaluator Evaluator
	section   string
	logger    zerolog.Logger
}

// NewAdminHandler creates the admin endpoint handlers
func NewAdminHandler(store SnapshotStore, refresher Refresher, evaluator Evaluator, section string, logger zerolog.Logger) *AdminHandler {
	if section == "" {
		section = domain.DefaultSection
	}
	return &AdminHandler{
		store:     store,
		refresher: refresher,
		evaluator: evaluator,
		section:   section,
		logger:    logger,
	}
}

// Routes registers the admin endpoints on r
func (a *AdminHandler) Routes(r chi.Router) {
	r.Get("/health", a.handleHealth)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/snapshot", a.handleSnapshot)
		r.Put("/snapshot/{key}", a.handleSetValue)
		r.Get("/stats", a.handleStats)
		r.Post("/refresh", a.handleRefresh)
		r.Get("/evaluate/{flagKey}", a.handleEvaluate)
	})
}

func (a *AdminHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := a.refresher.Stats()

	status := "healthy"
	switch {
	case stats.LastSuccess.IsZero():
		status = "starting"
	case stats.ConsecutiveFailures > 0:
		status = "degraded"
	}

	resp := map[string]interface{}{
		"status":       status,
		"snapshotSize": a.store.Len(),
		"timestamp":    time.Now().Format(time.RFC3339),
	}
	if !stats.LastSuccess.IsZero() {
		resp["lastSuccess"] = stats.LastSuccess.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *AdminHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.Snapshot())
}

func (a *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.refresher.Stats())
}

func (a *AdminHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := a.refresher.Refresh(r.Context())
	switch {
	case errors.Is(err, poller.ErrRefreshInFlight):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, poller.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		a.logger.Error().Err(err).Msg("manual refresh failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"flags":  a.store.Len(),
	})
}

func (a *AdminHandler) handleSetValue(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if strings.TrimSpace(key) == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if !strings.Contains(key, ":") {
		key = domain.SnapshotKey(a.section, key)
	}

	var req struct {
		Value *bool `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeError(w, http.StatusBadRequest, `body must be {"value": true|false}`)
		return
	}

	value := domain.SnapshotValue(*req.Value)
	a.store.SetValue(key, value)
	a.logger.Info().Str("key", key).Str("value", value).Msg("snapshot value overridden")

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"key":    key,
		"value":  value,
	})
}

// EvaluationResponse is the body of GET /admin/evaluate/{flagKey}
type EvaluationResponse struct {
	FlagKey      string                 `json:"flagKey"`
	Value        bool                   `json:"value"`
	Variant      string                 `json:"variant,omitempty"`
	Reason       string                 `json:"reason"`
	ErrorCode    string                 `json:"errorCode,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

func (a *AdminHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	flagKey := chi.URLParam(r, "flagKey")

	defaultValue := false
	if raw := r.URL.Query().Get("default"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "default must be a boolean")
			return
		}
		defaultValue = parsed
	}

	flatCtx, _ := GetEvalContext(r.Context())

	detail, err := a.evaluator.Resolve(r.Context(), flagKey, defaultValue, flatCtx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	res := detail.ResolutionDetail()
	writeJSON(w, http.StatusOK, EvaluationResponse{
		FlagKey:      flagKey,
		Value:        detail.Value,
		Variant:      detail.Variant,
		Reason:       string(detail.Reason),
		ErrorCode:    string(res.ErrorCode),
		ErrorMessage: res.ErrorMessage,
		Metadata:     detail.FlagMetadata,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
