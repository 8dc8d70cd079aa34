package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSection is the key namespace used when none is configured.
const DefaultSection = "FeatureFlags"

// FlagEntry is a single flag evaluation as returned by the Flare service.
// Entries are immutable once received.
type FlagEntry struct {
	Key      string        `json:"flagKey"`
	Value    bool          `json:"value"`
	Variant  *string       `json:"variant"`
	Reason   string        `json:"reason"`
	Metadata *FlagMetadata `json:"flagMetadata"`
}

// FlagMetadata is informational only and never drives control flow.
type FlagMetadata struct {
	ScopeAlias *string    `json:"scopeAlias"`
	ScopeID    *uuid.UUID `json:"scopeId"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// EvaluationContext carries the scope and targeting key sent with a
// single-flag evaluation.
type EvaluationContext struct {
	Scope        string
	TargetingKey string
}

// NewEvaluationContext creates a context for the given scope.
func NewEvaluationContext(scope string) EvaluationContext {
	return EvaluationContext{Scope: scope}
}

// WithTargetingKey sets the targeting key (fluent interface).
func (c EvaluationContext) WithTargetingKey(key string) EvaluationContext {
	c.TargetingKey = key
	return c
}

// Validate reports whether the context carries a usable scope.
func (c EvaluationContext) Validate() error {
	if strings.TrimSpace(c.Scope) == "" {
		return NewInvalidArgumentError("scope", "scope cannot be empty")
	}
	return nil
}

// Validate validates a flag entry received from the service.
func (f *FlagEntry) Validate() error {
	if f.Key == "" {
		return NewParseError("flag entry has an empty flagKey", nil)
	}
	return nil
}

// VariantOrEmpty returns the variant, or "" when the service sent none.
func (f *FlagEntry) VariantOrEmpty() string {
	if f.Variant == nil {
		return ""
	}
	return *f.Variant
}

// SnapshotKey returns the namespaced key "{section}:{flagKey}".
func SnapshotKey(section, flagKey string) string {
	if section == "" {
		section = DefaultSection
	}
	return fmt.Sprintf("%s:%s", section, flagKey)
}

// SnapshotValue returns the lower-cased string form of a flag value.
func SnapshotValue(value bool) string {
	return strconv.FormatBool(value)
}

// BuildSnapshot transforms flag entries into a flat snapshot mapping.
// Entries with an empty key are skipped. Keys are compared
// case-insensitively and the later entry wins, in response order.
func BuildSnapshot(section string, entries []FlagEntry) map[string]string {
	out := make(map[string]string, len(entries))
	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		key := SnapshotKey(section, e.Key)
		lower := strings.ToLower(key)
		if prev, ok := seen[lower]; ok {
			delete(out, prev)
		}
		seen[lower] = key
		out[key] = SnapshotValue(e.Value)
	}
	return out
}
