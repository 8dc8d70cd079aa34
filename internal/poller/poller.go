package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	"github.com/OrlandoBitencourt/flare/internal/filter"
	"github.com/OrlandoBitencourt/flare/internal/flare"
	"github.com/OrlandoBitencourt/flare/internal/snapshot"
	"github.com/OrlandoBitencourt/flare/internal/telemetry"
)

// ErrRefreshInFlight is returned when a tick is skipped because another
// fetch has not finished yet.
var ErrRefreshInFlight = errors.New("refresh already in flight")

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("poller already started")

// ErrStopped is returned by Start and Refresh once Stop has been called.
var ErrStopped = errors.New("poller stopped")

// Config holds poller configuration
type Config struct {
	// Scope sent with every evaluate-all request
	Scope string

	// Section prefixes every snapshot key ("{section}:{flagKey}")
	Section string

	// Interval between ticks. Zero fetches once at startup and stops.
	Interval time.Duration

	// FetchTimeout bounds a single tick
	FetchTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Section:      domain.DefaultSection,
		Interval:     30 * time.Second,
		FetchTimeout: 30 * time.Second,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Scope == "" {
		return fmt.Errorf("scope is required")
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval cannot be negative")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch timeout cannot be negative")
	}
	return nil
}

// Stats is a point-in-time view of poller state
type Stats struct {
	LastSuccess         time.Time `json:"lastSuccess"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	TotalTicks          uint64    `json:"totalTicks"`
	SkippedTicks        uint64    `json:"skippedTicks"`
	Generation          uint64    `json:"generation"`
	InFlight            bool      `json:"inFlight"`
}

// Poller periodically fetches every flag and replaces the snapshot
type Poller struct {
	// Dependencies (injected)
	client    flare.Client
	store     *snapshot.Store
	filter    *filter.Filter
	logger    zerolog.Logger
	telemetry telemetry.Provider

	config Config

	// State management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inFlight   atomic.Bool
	stopped    atomic.Bool
	generation atomic.Uint64

	// publishMu orders generations against store.Replace
	publishMu sync.Mutex
	published uint64

	mu               sync.RWMutex
	lastSuccess      time.Time
	lastErr          error
	consecutiveFails int
	totalTicks       uint64
	skippedTicks     uint64
}

// Option is a functional option for configuring Poller
type Option func(*Poller)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithTelemetry sets the telemetry provider
func WithTelemetry(provider telemetry.Provider) Option {
	return func(p *Poller) {
		p.telemetry = provider
	}
}

// WithFilter sets the entry filter applied before publishing
func WithFilter(f *filter.Filter) Option {
	return func(p *Poller) {
		p.filter = f
	}
}

// New creates a new poller
func New(client flare.Client, store *snapshot.Store, config Config, opts ...Option) (*Poller, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.Section == "" {
		config.Section = domain.DefaultSection
	}
	if config.FetchTimeout == 0 {
		config.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}

	p := &Poller{
		client: client,
		store:  store,
		config: config,
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.telemetry = telemetry.OrNoOp(p.telemetry)
	p.logger = p.logger.With().Str("component", "poller").Str("scope", config.Scope).Logger()

	return p, nil
}

// Start launches the background loop. The first fetch happens right away;
// later ones follow the configured interval.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped.Load() {
		p.mu.Unlock()
		return ErrStopped
	}
	if p.cancel != nil {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()

	return nil
}

// Stop cancels the loop and waits for it to exit. An in-flight fetch is
// cancelled and never publishes, and no tick publishes after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped.Store(true)
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	// wait out a publish that passed its checks before stopped was set
	p.publishMu.Lock()
	p.publishMu.Unlock()
}

// Refresh runs one tick on demand. It returns ErrRefreshInFlight when a
// fetch is already running and ErrStopped after Stop.
func (p *Poller) Refresh(ctx context.Context) error {
	return p.tick(ctx)
}

func (p *Poller) run() {
	defer p.wg.Done()

	if err := p.tick(p.ctx); err != nil && !errors.Is(err, ErrRefreshInFlight) && !errors.Is(err, ErrStopped) {
		p.logger.Error().Err(err).Msg("initial flag fetch failed")
	}

	if p.config.Interval <= 0 {
		p.logger.Debug().Msg("reload interval is zero, periodic refresh disabled")
		return
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-ticker.C:
			if err := p.tick(p.ctx); err != nil && !errors.Is(err, ErrRefreshInFlight) && !errors.Is(err, ErrStopped) {
				p.logger.Error().Err(err).Msg("flag refresh failed, keeping previous snapshot")
			}
		}
	}
}

// tick performs one fetch-filter-transform-replace cycle
func (p *Poller) tick(ctx context.Context) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.mu.Lock()
		p.skippedTicks++
		p.mu.Unlock()

		p.telemetry.RecordPollSkipped(ctx)
		p.logger.Debug().Msg("skipping tick, previous fetch still in flight")
		return ErrRefreshInFlight
	}
	defer p.inFlight.Store(false)

	gen := p.generation.Add(1)
	start := time.Now()

	p.mu.Lock()
	p.totalTicks++
	p.mu.Unlock()

	p.logger.Debug().Uint64("generation", gen).Msg("fetching flags")

	fetchCtx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	entries, err := p.client.FetchAll(fetchCtx, p.config.Scope)
	if err != nil {
		p.recordFailure(ctx, err, time.Since(start))
		return fmt.Errorf("failed to fetch flags: %w", err)
	}

	entries, filterErrs := p.filter.Apply(entries)
	for _, ferr := range filterErrs {
		p.logger.Warn().Err(ferr).Msg("flag excluded from snapshot")
	}

	next := domain.BuildSnapshot(p.config.Section, entries)

	published, err := p.publish(ctx, gen, next)
	if err != nil {
		p.recordFailure(ctx, err, time.Since(start))
		return err
	}
	if !published {
		p.logger.Debug().Uint64("generation", gen).Msg("newer snapshot already published, dropping result")
		return nil
	}

	p.recordSuccess(ctx, len(next), time.Since(start))
	p.logger.Info().
		Int("flags", len(next)).
		Uint64("generation", gen).
		Msg("snapshot updated")

	return nil
}

// publish replaces the snapshot unless ctx was cancelled during the fetch
// or a newer generation already published.
func (p *Poller) publish(ctx context.Context, gen uint64, next map[string]string) (bool, error) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	if p.stopped.Load() {
		return false, ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("tick cancelled before publish: %w", err)
	}
	if gen <= p.published {
		return false, nil
	}

	p.published = gen
	p.store.Replace(next)
	return true, nil
}

func (p *Poller) recordFailure(ctx context.Context, err error, duration time.Duration) {
	p.mu.Lock()
	p.consecutiveFails++
	p.lastErr = err
	p.mu.Unlock()

	p.telemetry.RecordPoll(ctx, false, duration, 0)
}

func (p *Poller) recordSuccess(ctx context.Context, count int, duration time.Duration) {
	p.mu.Lock()
	p.consecutiveFails = 0
	p.lastErr = nil
	p.lastSuccess = time.Now()
	p.mu.Unlock()

	p.telemetry.RecordPoll(ctx, true, duration, count)
	p.telemetry.RecordSnapshotSize(p.store.Len())
}

// Stats returns current poller statistics
func (p *Poller) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		LastSuccess:         p.lastSuccess,
		ConsecutiveFailures: p.consecutiveFails,
		TotalTicks:          p.totalTicks,
		SkippedTicks:        p.skippedTicks,
		Generation:          p.generation.Load(),
		InFlight:            p.inFlight.Load(),
	}
	if p.lastErr != nil {
		stats.LastError = p.lastErr.Error()
	}
	return stats
}
