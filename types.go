package flare

import (
	"time"

	of "github.com/open-feature/go-sdk/openfeature"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	remote "github.com/OrlandoBitencourt/flare/internal/flare"
	"github.com/OrlandoBitencourt/flare/internal/poller"
	"github.com/OrlandoBitencourt/flare/internal/snapshot"
)

type (
	// FlagEntry is one evaluated flag as returned by the service.
	FlagEntry = domain.FlagEntry

	// FlagMetadata is the informational metadata attached to a FlagEntry.
	FlagMetadata = domain.FlagMetadata

	// Listener receives every published snapshot.
	Listener = snapshot.Listener

	// Stats describes the poller.
	Stats = poller.Stats

	// RemoteClient is the wire client used to reach the service.
	RemoteClient = remote.Client
)

// ScopeKey is the evaluation context attribute carrying the scope.
const ScopeKey = remote.ScopeKey

// Context holds request context for a single flag resolution.
type Context struct {
	// Scope the flag is evaluated in. Falls back to the client's default scope.
	Scope string

	// TargetingKey identifies the subject, usually a user ID
	TargetingKey string

	// Attributes are passed through to OpenFeature hooks
	Attributes map[string]any
}

// NewContext creates a new evaluation context for scope.
func NewContext(scope string) Context {
	return Context{
		Scope:      scope,
		Attributes: make(map[string]any),
	}
}

// WithTargetingKey sets the targeting key (fluent interface).
func (c Context) WithTargetingKey(key string) Context {
	c.TargetingKey = key
	return c
}

// WithAttribute adds an attribute to the context (fluent interface).
func (c Context) WithAttribute(key string, value any) Context {
	attrs := make(map[string]any, len(c.Attributes)+1)
	for k, v := range c.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	c.Attributes = attrs
	return c
}

// Flatten converts the context into an OpenFeature flattened context.
func (c Context) Flatten() of.FlattenedContext {
	flat := make(of.FlattenedContext, len(c.Attributes)+2)
	for k, v := range c.Attributes {
		flat[k] = v
	}
	if c.Scope != "" {
		flat[ScopeKey] = c.Scope
	}
	if c.TargetingKey != "" {
		flat[of.TargetingKey] = c.TargetingKey
	}
	return flat
}

// Result represents the outcome of one flag resolution.
type Result struct {
	// FlagKey is the key of the evaluated flag
	FlagKey string `json:"flagKey"`

	// Value is the resolved value, or the caller's default on error
	Value bool `json:"value"`

	// Variant reported by the service
	Variant string `json:"variant,omitempty"`

	// Reason is the OpenFeature reason (STATIC, TARGETING_MATCH, ERROR, ...)
	Reason string `json:"reason"`

	// ErrorCode is empty unless Reason is ERROR
	ErrorCode string `json:"errorCode,omitempty"`

	// ErrorMessage explains ErrorCode
	ErrorMessage string `json:"errorMessage,omitempty"`

	// Metadata carries scopeAlias, scopeId and updatedAt when present
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsEnabled returns true if the flag resolved to true without error.
func (r *Result) IsEnabled() bool {
	return r.Value && r.ErrorCode == ""
}

// UpdatedAt returns the flag's last modification time, if the service sent one.
func (r *Result) UpdatedAt() (time.Time, bool) {
	raw, ok := r.Metadata["updatedAt"].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func toResult(flagKey string, detail of.BoolResolutionDetail) *Result {
	res := detail.ResolutionDetail()

	metadata := make(map[string]any, len(res.FlagMetadata))
	for k, v := range res.FlagMetadata {
		metadata[k] = v
	}

	return &Result{
		FlagKey:      flagKey,
		Value:        detail.Value,
		Variant:      res.Variant,
		Reason:       string(res.Reason),
		ErrorCode:    string(res.ErrorCode),
		ErrorMessage: res.ErrorMessage,
		Metadata:     metadata,
	}
}

// Metrics represents client health and cache metrics.
type Metrics struct {
	// Poller stats
	Poller Stats

	// SnapshotSize is the number of keys in the current snapshot
	SnapshotSize int

	// Cache metrics, zero when the resolution cache is disabled
	Cache CacheMetrics
}

// CacheMetrics represents resolution cache metrics.
type CacheMetrics struct {
	// KeysAdded is the total number of resolutions cached
	KeysAdded uint64

	// KeysEvicted is the total number of resolutions evicted
	KeysEvicted uint64

	// HitRatio is the cache hit ratio (0.0 to 1.0)
	HitRatio float64
}
