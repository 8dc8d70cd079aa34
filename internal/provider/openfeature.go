package provider

import (
	"context"

	of "github.com/open-feature/go-sdk/openfeature"
)

var _ of.FeatureProvider = (*Provider)(nil)

// Init marks the provider ready. The client is stateless, so there is
// nothing to connect.
func (p *Provider) Init(_ of.EvaluationContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = of.ReadyState
	return nil
}

// Shutdown marks the provider not ready and closes the result cache.
func (p *Provider) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to close resolution cache")
		}
	}
	p.state = of.NotReadyState
}

// Status returns the current provider state.
func (p *Provider) Status() of.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Hooks returns empty slice as provider does not have any hooks.
func (p *Provider) Hooks() []of.Hook {
	return []of.Hook{}
}

// Metadata returns value of Metadata (name of current service, exposed to openfeature sdk).
func (p *Provider) Metadata() of.Metadata {
	return of.Metadata{
		Name: Name,
	}
}

// BooleanEvaluation evaluates a boolean feature flag. OpenFeature has no
// error return here, so caller cancellation is reported as GENERAL.
func (p *Provider) BooleanEvaluation(ctx context.Context, flag string, defaultValue bool, evalCtx of.FlattenedContext) of.BoolResolutionDetail {
	detail, err := p.Resolve(ctx, flag, defaultValue, evalCtx)
	if err != nil {
		return errorDetail(defaultValue, of.NewGeneralResolutionError(err.Error()))
	}
	return detail
}

// StringEvaluation is not supported by the Flare protocol.
func (p *Provider) StringEvaluation(ctx context.Context, flag string, defaultValue string, evalCtx of.FlattenedContext) of.StringResolutionDetail {
	return p.ResolveString(ctx, flag, defaultValue, evalCtx)
}

// FloatEvaluation is not supported by the Flare protocol.
func (p *Provider) FloatEvaluation(ctx context.Context, flag string, defaultValue float64, evalCtx of.FlattenedContext) of.FloatResolutionDetail {
	return p.ResolveDouble(ctx, flag, defaultValue, evalCtx)
}

// IntEvaluation is not supported by the Flare protocol.
func (p *Provider) IntEvaluation(ctx context.Context, flag string, defaultValue int64, evalCtx of.FlattenedContext) of.IntResolutionDetail {
	return p.ResolveInteger(ctx, flag, defaultValue, evalCtx)
}

// ObjectEvaluation is not supported by the Flare protocol.
func (p *Provider) ObjectEvaluation(ctx context.Context, flag string, defaultValue any, evalCtx of.FlattenedContext) of.InterfaceResolutionDetail {
	return p.ResolveStructure(ctx, flag, defaultValue, evalCtx)
}
