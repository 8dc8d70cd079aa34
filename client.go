// Package flare keeps a live snapshot of remote feature-flag state in sync
// with the Flare evaluation service, and resolves single flags on demand
// through an OpenFeature provider.
package flare

import (
	"context"
	"errors"
	"fmt"
	"time"

	of "github.com/open-feature/go-sdk/openfeature"
	"github.com/rs/zerolog"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	"github.com/OrlandoBitencourt/flare/internal/filter"
	remote "github.com/OrlandoBitencourt/flare/internal/flare"
	"github.com/OrlandoBitencourt/flare/internal/poller"
	"github.com/OrlandoBitencourt/flare/internal/provider"
	"github.com/OrlandoBitencourt/flare/internal/server"
	"github.com/OrlandoBitencourt/flare/internal/snapshot"
	"github.com/OrlandoBitencourt/flare/internal/storage"
	"github.com/OrlandoBitencourt/flare/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Client is the main entry point for Flare.
// It owns the snapshot, the poller keeping it fresh, and the provider
// used for single flag resolutions.
type Client struct {
	config       Config
	defaultScope string
	logger       zerolog.Logger

	store     *snapshot.Store
	remote    RemoteClient
	poller    *poller.Poller
	provider  *provider.Provider
	cache     *storage.MemoryStorage
	server    *server.Server
	telemetry telemetry.Provider
}

// New creates a new Flare client with the given options.
//
// Example:
//
//	client, err := flare.New(
//	    flare.WithBaseURL("https://flare.example.com"),
//	    flare.WithAPIKey(os.Getenv("FLARE_API_KEY")),
//	    flare.WithScope("production"),
//	    flare.WithReloadInterval(time.Minute),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.config.validate(cfg.remoteClient == nil); err != nil {
		return nil, err
	}

	c := &Client{
		config:       cfg.config,
		defaultScope: cfg.defaultScope,
		logger:       cfg.logger,
		store:        snapshot.New(),
		remote:       cfg.remoteClient,
		telemetry:    telemetry.OrNoOp(cfg.telemetry),
	}

	if c.remote == nil {
		c.remote = remote.NewHTTPClient(remote.Config{
			BaseURL:      cfg.config.Service.BaseURL,
			APIKey:       cfg.config.Service.APIKey,
			Timeout:      cfg.config.Service.Timeout,
			MaxRetries:   cfg.config.Service.MaxRetries,
			RetryBackoff: cfg.config.Service.RetryBackoff,
			HTTPClient:   cfg.httpClient,
			Telemetry:    c.telemetry,
		})
	}

	f, err := filter.New(filter.Config{
		OnlyEnabled: cfg.config.Filter.OnlyEnabled,
		Expression:  cfg.config.Filter.Expression,
	})
	if err != nil {
		return nil, &ConfigError{Field: "Filter.Expression", Message: err.Error()}
	}

	c.poller, err = poller.New(c.remote, c.store, poller.Config{
		Scope:        cfg.config.Snapshot.Scope,
		Section:      cfg.config.Snapshot.Section,
		Interval:     cfg.config.Snapshot.ReloadInterval,
		FetchTimeout: cfg.config.Snapshot.FetchTimeout,
	},
		poller.WithLogger(c.logger),
		poller.WithTelemetry(c.telemetry),
		poller.WithFilter(f),
	)
	if err != nil {
		return nil, err
	}

	providerOpts := []provider.Option{
		provider.WithLogger(c.logger),
		provider.WithTelemetry(c.telemetry),
	}
	if ttl := cfg.config.Cache.TTL; ttl > 0 {
		storageCfg := storage.DefaultConfig()
		storageCfg.MaxCost = cfg.config.Cache.MaxEntries
		storageCfg.NumCounters = cfg.config.Cache.MaxEntries * 10
		storageCfg.DefaultTTL = ttl

		c.cache, err = storage.NewMemoryStorage(storageCfg)
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, provider.WithCache(c.cache, ttl))
	}
	c.provider = provider.New(c.remote, providerOpts...)

	for _, fn := range cfg.listeners {
		c.store.AddListener(fn)
	}

	if cfg.serverAddr != "" {
		c.server = server.New(server.Config{
			Addr:          cfg.serverAddr,
			WebhookSecret: cfg.webhookSecret,
			DefaultScope:  cfg.defaultScope,
			Section:       cfg.config.Snapshot.Section,
		}, c.store, c.poller, c, c.logger)
	}

	return c, nil
}

// Start marks the provider ready and begins background synchronization.
// The first poll runs immediately in the background; use Sync to wait for
// a fresh snapshot.
//
// When WithServer was given, the admin server is started as well.
func (c *Client) Start(ctx context.Context) error {
	if err := c.provider.Init(of.EvaluationContext{}); err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}

	if err := c.poller.Start(ctx); err != nil {
		return err
	}

	if c.server != nil {
		go func() {
			if err := c.server.Start(); err != nil {
				c.logger.Error().Err(err).Msg("admin server stopped")
			}
		}()
	}

	return nil
}

// Sync runs one poll right now and returns its error.
// Returns ErrRefreshInFlight if a poll is already running and ErrStopped
// after Stop.
func (c *Client) Sync(ctx context.Context) error {
	if c.poller == nil {
		return errors.New("flare client sync - poller not initialized")
	}
	return c.poller.Refresh(ctx)
}

// Stop gracefully shuts down the client and its background processes.
func (c *Client) Stop() error {
	var errs []error
	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop admin server: %w", err))
		}
	}

	c.poller.Stop()

	c.provider.Shutdown()

	if err := c.telemetry.Shutdown(context.Background()); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Snapshot returns a copy of the current snapshot.
func (c *Client) Snapshot() map[string]string {
	return c.store.Snapshot()
}

// Get looks up a raw snapshot key ("{section}:{flagKey}"), ignoring case.
func (c *Client) Get(key string) (string, bool) {
	return c.store.Get(key)
}

// Enabled reports the snapshot value of flagKey in the configured section.
// Missing flags are reported as false.
func (c *Client) Enabled(flagKey string) bool {
	v, ok := c.store.Get(domain.SnapshotKey(c.config.Snapshot.Section, flagKey))
	return ok && v == domain.SnapshotValue(true)
}

// AddListener registers fn for every published snapshot. fn is called
// right away with the current snapshot.
func (c *Client) AddListener(fn Listener) (unsubscribe func()) {
	return c.store.AddListener(fn)
}

// SetValue overrides one snapshot key until the next poll replaces it.
func (c *Client) SetValue(key, value string) {
	c.store.SetValue(key, value)
}

// Resolve evaluates flagKey through the provider. The client's default
// scope is added when flatCtx has none.
func (c *Client) Resolve(ctx context.Context, flagKey string, defaultValue bool, flatCtx of.FlattenedContext) (of.BoolResolutionDetail, error) {
	return c.provider.Resolve(ctx, flagKey, defaultValue, c.withDefaultScope(flatCtx))
}

// Bool evaluates a flag and returns its value.
// Returns defaultValue if the flag cannot be resolved.
//
// Example:
//
//	enabled := client.Bool(ctx, "new-checkout",
//	    flare.NewContext("production").WithTargetingKey("user-123"), false)
func (c *Client) Bool(ctx context.Context, flagKey string, evalCtx Context, defaultValue bool) bool {
	detail, err := c.Resolve(ctx, flagKey, defaultValue, evalCtx.Flatten())
	if err != nil {
		return defaultValue
	}
	return detail.Value
}

// Evaluate performs a full resolution and returns the detailed result.
// The error is non-nil only when ctx is done.
func (c *Client) Evaluate(ctx context.Context, flagKey string, evalCtx Context, defaultValue bool) (*Result, error) {
	detail, err := c.Resolve(ctx, flagKey, defaultValue, evalCtx.Flatten())
	if err != nil {
		return nil, err
	}
	return toResult(flagKey, detail), nil
}

// Provider returns the OpenFeature provider, ready to be registered with
// openfeature.SetProviderAndWait.
func (c *Client) Provider() of.FeatureProvider {
	return c.provider
}

// Stats returns the poller stats.
func (c *Client) Stats() Stats {
	return c.poller.Stats()
}

// Metrics returns current poller and cache metrics.
func (c *Client) Metrics() Metrics {
	m := Metrics{
		Poller:       c.poller.Stats(),
		SnapshotSize: c.store.Len(),
	}

	if c.cache != nil {
		cacheMetrics := c.cache.Metrics()
		m.Cache = CacheMetrics{
			KeysAdded:   cacheMetrics.KeysAdded,
			KeysEvicted: cacheMetrics.KeysEvicted,
			HitRatio:    cacheMetrics.HitRatio,
		}
	}

	return m
}

// InvalidateCache drops every cached resolution.
func (c *Client) InvalidateCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}

func (c *Client) withDefaultScope(flatCtx of.FlattenedContext) of.FlattenedContext {
	if c.defaultScope == "" {
		return flatCtx
	}
	if scope, ok := flatCtx[ScopeKey].(string); ok && scope != "" {
		return flatCtx
	}

	out := make(of.FlattenedContext, len(flatCtx)+1)
	for k, v := range flatCtx {
		out[k] = v
	}
	out[ScopeKey] = c.defaultScope
	return out
}
