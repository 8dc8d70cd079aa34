package flare

import (
	"strings"

	of "github.com/open-feature/go-sdk/openfeature"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

// ScopeKey is the evaluation context attribute that carries the scope.
const ScopeKey = "scope"

// FromFlattenedContext resolves an EvaluationContext from an OpenFeature
// flattened context. There is no implicit default scope here: a context
// without a non-empty "scope" string is an InvalidArgumentError.
func FromFlattenedContext(flatCtx of.FlattenedContext) (domain.EvaluationContext, error) {
	scope, _ := flatCtx[ScopeKey].(string)
	if strings.TrimSpace(scope) == "" {
		return domain.EvaluationContext{}, domain.NewInvalidArgumentError(ScopeKey,
			"evaluation context must carry a non-empty \"scope\" attribute")
	}

	evalCtx := domain.NewEvaluationContext(scope)
	if key, ok := flatCtx[of.TargetingKey].(string); ok {
		evalCtx = evalCtx.WithTargetingKey(key)
	}
	return evalCtx, nil
}
