package flare

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	"github.com/OrlandoBitencourt/flare/internal/telemetry"
)

// Client defines the interface for talking to the Flare evaluation service
type Client interface {
	// FetchAll evaluates every flag visible to scope
	FetchAll(ctx context.Context, scope string) ([]domain.FlagEntry, error)

	// FetchOne evaluates a single flag for the given context
	FetchOne(ctx context.Context, flagKey string, evalCtx domain.EvaluationContext) (*domain.FlagEntry, error)
}

// Config holds Flare client configuration
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
	Telemetry  telemetry.Provider
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Validate checks that the configuration can build a client
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base URL is required")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	return nil
}
