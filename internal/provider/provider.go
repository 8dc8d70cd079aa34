// Package provider resolves single flags against the Flare service and
// exposes them through the OpenFeature provider interface.
//
// # Boolean Flag Evaluation
//
// The Flare protocol only knows boolean flags. String, integer, float and
// object evaluations always return the caller's default with
// TYPE_MISMATCH and never touch the network.
//
// # Error Mapping
//
// Failures never surface as Go errors except caller cancellation:
//   - APIError -> GENERAL
//   - NetworkError -> PROVIDER_NOT_READY ("request timeout" on timeouts)
//   - ParseError -> PARSE_ERROR
//   - anything else, including a context without a scope -> GENERAL
package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	of "github.com/open-feature/go-sdk/openfeature"
	"github.com/rs/zerolog"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	"github.com/OrlandoBitencourt/flare/internal/flare"
	"github.com/OrlandoBitencourt/flare/internal/storage"
	"github.com/OrlandoBitencourt/flare/internal/telemetry"
)

// Name is reported through Metadata.
const Name = "Flare Provider"

const typeMismatchMessage = "Flare provider only supports boolean flag evaluation for now"

// Provider is an OpenFeature provider backed by a flare.Client.
type Provider struct {
	client    flare.Client
	cache     storage.Storage
	cacheTTL  time.Duration
	logger    zerolog.Logger
	telemetry telemetry.Provider

	mu    sync.RWMutex
	state of.State
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(provider telemetry.Provider) Option {
	return func(p *Provider) {
		p.telemetry = provider
	}
}

// WithCache serves repeated resolutions from cache for ttl. Only
// successful resolutions are stored.
func WithCache(cache storage.Storage, ttl time.Duration) Option {
	return func(p *Provider) {
		p.cache = cache
		p.cacheTTL = ttl
	}
}

// New creates a provider. It starts in NotReady state until Init is called.
func New(client flare.Client, opts ...Option) *Provider {
	p := &Provider{
		client: client,
		logger: zerolog.Nop(),
		state:  of.NotReadyState,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.telemetry = telemetry.OrNoOp(p.telemetry)
	p.logger = p.logger.With().Str("component", "provider").Logger()

	return p
}

// Resolve evaluates one boolean flag. The returned error is non-nil only
// when ctx was cancelled by the caller; every other failure is reported in
// the detail together with defaultValue.
func (p *Provider) Resolve(ctx context.Context, flagKey string, defaultValue bool, flatCtx of.FlattenedContext) (of.BoolResolutionDetail, error) {
	start := time.Now()

	detail, err := p.resolve(ctx, flagKey, defaultValue, flatCtx)
	if err != nil {
		return of.BoolResolutionDetail{}, err
	}

	p.telemetry.RecordEvaluation(ctx, string(detail.Reason),
		string(detail.ResolutionDetail().ErrorCode), time.Since(start))

	return detail, nil
}

func (p *Provider) resolve(ctx context.Context, flagKey string, defaultValue bool, flatCtx of.FlattenedContext) (of.BoolResolutionDetail, error) {
	evalCtx, err := flare.FromFlattenedContext(flatCtx)
	if err != nil {
		p.logger.Error().Err(err).Str("flag", flagKey).Msg("cannot resolve evaluation context")
		return errorDetail(defaultValue, of.NewGeneralResolutionError(err.Error())), nil
	}

	if cached, ok := p.fromCache(ctx, evalCtx, flagKey); ok {
		detail := successDetail(cached)
		detail.Reason = of.CachedReason
		return detail, nil
	}

	entry, err := p.client.FetchOne(ctx, flagKey, evalCtx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.logger.Warn().Err(ctxErr).Str("flag", flagKey).Msg("flag evaluation cancelled")
			return of.BoolResolutionDetail{}, ctxErr
		}

		p.logger.Error().Err(err).Str("flag", flagKey).Msg("flag evaluation failed")
		return errorDetail(defaultValue, classify(err)), nil
	}

	p.toCache(ctx, evalCtx, flagKey, *entry)
	return successDetail(*entry), nil
}

// classify maps a client error onto the OpenFeature error taxonomy.
func classify(err error) of.ResolutionError {
	switch {
	case domain.IsTimeout(err):
		return of.NewProviderNotReadyResolutionError("request timeout")
	case domain.IsNetwork(err):
		return of.NewProviderNotReadyResolutionError(err.Error())
	case domain.IsAPI(err):
		return of.NewGeneralResolutionError(err.Error())
	case domain.IsParse(err):
		return of.NewParseErrorResolutionError(err.Error())
	default:
		return of.NewGeneralResolutionError(err.Error())
	}
}

func (p *Provider) fromCache(ctx context.Context, evalCtx domain.EvaluationContext, flagKey string) (domain.FlagEntry, bool) {
	if p.cache == nil {
		return domain.FlagEntry{}, false
	}

	entry, err := p.cache.Get(ctx, storage.Key(evalCtx, flagKey))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug().Err(err).Str("flag", flagKey).Msg("cache lookup failed")
		}
		return domain.FlagEntry{}, false
	}
	return *entry, true
}

// toCache stores entry under the requested flagKey, matching fromCache,
// even when the service echoes the key in another case.
func (p *Provider) toCache(ctx context.Context, evalCtx domain.EvaluationContext, flagKey string, entry domain.FlagEntry) {
	if p.cache == nil {
		return
	}

	if err := p.cache.Set(ctx, storage.Key(evalCtx, flagKey), entry, p.cacheTTL); err != nil {
		p.logger.Debug().Err(err).Str("flag", flagKey).Msg("resolution not cached")
	}
}

// ResolveString always reports TYPE_MISMATCH.
func (p *Provider) ResolveString(ctx context.Context, flagKey string, defaultValue string, flatCtx of.FlattenedContext) of.StringResolutionDetail {
	return of.StringResolutionDetail{
		Value:                    defaultValue,
		ProviderResolutionDetail: typeMismatch(),
	}
}

// ResolveInteger always reports TYPE_MISMATCH.
func (p *Provider) ResolveInteger(ctx context.Context, flagKey string, defaultValue int64, flatCtx of.FlattenedContext) of.IntResolutionDetail {
	return of.IntResolutionDetail{
		Value:                    defaultValue,
		ProviderResolutionDetail: typeMismatch(),
	}
}

// ResolveDouble always reports TYPE_MISMATCH.
func (p *Provider) ResolveDouble(ctx context.Context, flagKey string, defaultValue float64, flatCtx of.FlattenedContext) of.FloatResolutionDetail {
	return of.FloatResolutionDetail{
		Value:                    defaultValue,
		ProviderResolutionDetail: typeMismatch(),
	}
}

// ResolveStructure always reports TYPE_MISMATCH.
func (p *Provider) ResolveStructure(ctx context.Context, flagKey string, defaultValue any, flatCtx of.FlattenedContext) of.InterfaceResolutionDetail {
	return of.InterfaceResolutionDetail{
		Value:                    defaultValue,
		ProviderResolutionDetail: typeMismatch(),
	}
}

func typeMismatch() of.ProviderResolutionDetail {
	return of.ProviderResolutionDetail{
		ResolutionError: of.NewTypeMismatchResolutionError(typeMismatchMessage),
		Reason:          of.ErrorReason,
	}
}

func errorDetail(defaultValue bool, resErr of.ResolutionError) of.BoolResolutionDetail {
	return of.BoolResolutionDetail{
		Value: defaultValue,
		ProviderResolutionDetail: of.ProviderResolutionDetail{
			ResolutionError: resErr,
			Reason:          of.ErrorReason,
		},
	}
}

func successDetail(entry domain.FlagEntry) of.BoolResolutionDetail {
	reason, recognised := MapReason(entry.Reason)

	metadata := Metadata(entry.Metadata)
	if !recognised && entry.Reason != "" {
		if metadata == nil {
			metadata = of.FlagMetadata{}
		}
		metadata["rawReason"] = entry.Reason
	}

	return of.BoolResolutionDetail{
		Value: entry.Value,
		ProviderResolutionDetail: of.ProviderResolutionDetail{
			Reason:       reason,
			Variant:      entry.VariantOrEmpty(),
			FlagMetadata: metadata,
		},
	}
}
