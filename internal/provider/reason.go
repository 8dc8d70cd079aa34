package provider

import (
	"strings"
	"time"

	of "github.com/open-feature/go-sdk/openfeature"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

var canonicalReasons = map[string]of.Reason{
	"STATIC":          of.StaticReason,
	"DEFAULT":         of.DefaultReason,
	"TARGETING_MATCH": of.TargetingMatchReason,
	"SPLIT":           of.SplitReason,
	"CACHED":          of.CachedReason,
	"DISABLED":        of.DisabledReason,
	"ERROR":           of.ErrorReason,
}

// MapReason converts the service's free-form reason to a canonical one,
// ignoring case. Empty and unrecognised reasons map to UNKNOWN; the second
// return value reports whether raw was recognised.
func MapReason(raw string) (of.Reason, bool) {
	reason, ok := canonicalReasons[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return of.UnknownReason, false
	}
	return reason, true
}

// Metadata flattens flag metadata for an OpenFeature resolution. updatedAt
// is rendered as RFC 3339 in UTC with nanoseconds so it sorts lexically.
func Metadata(meta *domain.FlagMetadata) of.FlagMetadata {
	if meta == nil {
		return nil
	}

	out := of.FlagMetadata{}
	if !meta.UpdatedAt.IsZero() {
		out["updatedAt"] = meta.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	if meta.ScopeAlias != nil {
		out["scopeAlias"] = *meta.ScopeAlias
	}
	if meta.ScopeID != nil {
		out["scopeId"] = meta.ScopeID.String()
	}
	return out
}
