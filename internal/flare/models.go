package flare

import "github.com/OrlandoBitencourt/flare/internal/domain"

// =======================
// REQUESTS
// =======================

// RequestContext is the evaluation context sent on the wire
type RequestContext struct {
	Scope        string  `json:"scope"`
	TargetingKey *string `json:"targetingKey"`
}

// EvaluateAllRequest is the body of POST /sdk/v1/flags/evaluate-all
type EvaluateAllRequest struct {
	Context RequestContext `json:"context"`
}

// EvaluateRequest is the body of POST /sdk/v1/flags/evaluate
type EvaluateRequest struct {
	FlagKey string         `json:"flagKey"`
	Context RequestContext `json:"context"`
}

// =======================
// RESPONSES
// =======================

// EvaluateAllResponse is the body returned by evaluate-all.
// The single evaluate endpoint returns a bare domain.FlagEntry.
type EvaluateAllResponse struct {
	Flags []domain.FlagEntry `json:"flags"`
}

// =======================
// ADAPTERS
// =======================

// RequestContextFromDomain converts an evaluation context to its wire form
func RequestContextFromDomain(evalCtx domain.EvaluationContext) RequestContext {
	rc := RequestContext{Scope: evalCtx.Scope}
	if evalCtx.TargetingKey != "" {
		key := evalCtx.TargetingKey
		rc.TargetingKey = &key
	}
	return rc
}
