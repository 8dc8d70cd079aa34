package flare

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/OrlandoBitencourt/flare/internal/telemetry"
)

// Option configures a Flare client.
type Option func(*clientConfig) error

// clientConfig holds internal configuration.
type clientConfig struct {
	config Config

	defaultScope string
	httpClient   *http.Client
	remoteClient RemoteClient
	logger       zerolog.Logger
	telemetry    telemetry.Provider
	listeners    []Listener

	// Server options
	serverAddr    string
	webhookSecret string
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override individual fields.
func WithConfig(cfg Config) Option {
	return func(c *clientConfig) error {
		c.config = cfg
		return nil
	}
}

// WithBaseURL sets the Flare service base URL.
// This is required unless WithRemoteClient is used.
//
// Example: flare.WithBaseURL("https://flare.example.com")
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) error {
		if strings.TrimSpace(baseURL) == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		c.config.Service.BaseURL = baseURL
		return nil
	}
}

// WithAPIKey sets the bearer token sent to Flare.
func WithAPIKey(apiKey string) Option {
	return func(c *clientConfig) error {
		c.config.Service.APIKey = apiKey
		return nil
	}
}

// WithTimeout sets the HTTP timeout for Flare requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		c.config.Service.Timeout = timeout
		return nil
	}
}

// WithRetries sets how many times a retryable request is repeated and the
// linear backoff between attempts.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(c *clientConfig) error {
		if maxRetries < 0 {
			return fmt.Errorf("max retries cannot be negative")
		}
		if backoff < 0 {
			return fmt.Errorf("retry backoff cannot be negative")
		}
		c.config.Service.MaxRetries = maxRetries
		c.config.Service.RetryBackoff = backoff
		return nil
	}
}

// WithHTTPClient uses client for every request to Flare.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) error {
		c.httpClient = client
		return nil
	}
}

// WithRemoteClient replaces the HTTP wire client entirely, typically with a mock.
func WithRemoteClient(client RemoteClient) Option {
	return func(c *clientConfig) error {
		if client == nil {
			return fmt.Errorf("remote client cannot be nil")
		}
		c.remoteClient = client
		return nil
	}
}

// WithScope sets the scope the snapshot is synchronized for.
// This is required.
func WithScope(scope string) Option {
	return func(c *clientConfig) error {
		if strings.TrimSpace(scope) == "" {
			return fmt.Errorf("scope cannot be empty")
		}
		c.config.Snapshot.Scope = scope
		return nil
	}
}

// WithSection sets the snapshot key prefix.
// Default: "FeatureFlags"
func WithSection(section string) Option {
	return func(c *clientConfig) error {
		if strings.TrimSpace(section) == "" {
			return fmt.Errorf("section cannot be empty")
		}
		c.config.Snapshot.Section = section
		return nil
	}
}

// WithReloadInterval sets how often the snapshot is refreshed.
// Zero fetches once at Start. Default: 30 seconds
//
// Example: flare.WithReloadInterval(time.Minute)
func WithReloadInterval(interval time.Duration) Option {
	return func(c *clientConfig) error {
		if interval < 0 {
			return fmt.Errorf("reload interval cannot be negative")
		}
		c.config.Snapshot.ReloadInterval = interval
		return nil
	}
}

// WithFetchTimeout bounds a single poll.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("fetch timeout must be positive")
		}
		c.config.Snapshot.FetchTimeout = timeout
		return nil
	}
}

// WithDefaultScope is used for resolutions whose context has no scope.
func WithDefaultScope(scope string) Option {
	return func(c *clientConfig) error {
		c.defaultScope = scope
		return nil
	}
}

// WithOnlyEnabled drops flags that evaluate to false from the snapshot.
//
// Example: flare.WithOnlyEnabled(true)
func WithOnlyEnabled(enabled bool) Option {
	return func(c *clientConfig) error {
		c.config.Filter.OnlyEnabled = enabled
		return nil
	}
}

// WithFilterExpression keeps only the flags for which expression is true.
// The expression sees key, value, variant, reason and scopeAlias.
//
// Example: flare.WithFilterExpression(`key startsWith "checkout-"`)
func WithFilterExpression(expression string) Option {
	return func(c *clientConfig) error {
		c.config.Filter.Expression = expression
		return nil
	}
}

// WithEvaluationCache caches successful resolutions for ttl.
// Cached resolutions report reason CACHED.
func WithEvaluationCache(ttl time.Duration) Option {
	return func(c *clientConfig) error {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl must be positive")
		}
		c.config.Cache.TTL = ttl
		return nil
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}

// WithTelemetry enables tracing and metrics.
func WithTelemetry(provider telemetry.Provider) Option {
	return func(c *clientConfig) error {
		c.telemetry = provider
		return nil
	}
}

// WithOpenTelemetry records telemetry through the global OpenTelemetry providers.
func WithOpenTelemetry() Option {
	return func(c *clientConfig) error {
		provider, err := telemetry.NewOTel()
		if err != nil {
			return fmt.Errorf("failed to create telemetry provider: %w", err)
		}
		c.telemetry = provider
		return nil
	}
}

// WithListener registers fn before the first poll runs.
func WithListener(fn Listener) Option {
	return func(c *clientConfig) error {
		if fn == nil {
			return fmt.Errorf("listener cannot be nil")
		}
		c.listeners = append(c.listeners, fn)
		return nil
	}
}

// WithServer starts the admin and webhook HTTP server on addr.
// An empty secret disables webhook signature checks.
//
// Example: flare.WithServer(":8080", os.Getenv("FLARE_WEBHOOK_SECRET"))
func WithServer(addr, webhookSecret string) Option {
	return func(c *clientConfig) error {
		if addr == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		c.serverAddr = addr
		c.webhookSecret = webhookSecret
		return nil
	}
}
