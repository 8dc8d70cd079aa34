package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Flare struct {
		BaseURL        string        `mapstructure:"base_url"`
		APIKey         string        `mapstructure:"api_key"`
		Scope          string        `mapstructure:"scope"`
		Section        string        `mapstructure:"section"`
		ReloadInterval time.Duration `mapstructure:"reload_interval"`
		Timeout        time.Duration `mapstructure:"timeout"`
		MaxRetries     int           `mapstructure:"max_retries"`
	} `mapstructure:"flare"`

	Filter struct {
		OnlyEnabled bool   `mapstructure:"only_enabled"`
		Expression  string `mapstructure:"expression"`
	} `mapstructure:"filter"`

	Cache struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Server struct {
		Addr          string `mapstructure:"addr"`
		WebhookSecret string `mapstructure:"webhook_secret"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// Validate reports configuration that cannot start a synchronizer
func (c Config) Validate() error {
	var errs []error
	if c.Flare.BaseURL == "" {
		errs = append(errs, errors.New("flare.base_url is required"))
	}
	if c.Flare.Scope == "" {
		errs = append(errs, errors.New("flare.scope is required"))
	}
	if c.Flare.ReloadInterval < 0 {
		errs = append(errs, errors.New("flare.reload_interval cannot be negative"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl cannot be negative"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("flare.base_url", "")
	v.SetDefault("flare.api_key", "")
	v.SetDefault("flare.scope", "")
	v.SetDefault("flare.section", "FeatureFlags")
	v.SetDefault("flare.reload_interval", "30s")
	v.SetDefault("flare.timeout", "5s")
	v.SetDefault("flare.max_retries", 2)
	v.SetDefault("filter.only_enabled", false)
	v.SetDefault("filter.expression", "")
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.webhook_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Loader reads configuration from an optional file and FLARE_* env vars
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader. An empty path looks for flare.yaml in the
// working directory and ./configs; a missing file is not an error.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flare")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}

	v.SetEnvPrefix("FLARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load reads and decodes the configuration
func (l *Loader) Load() (Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("unable to read config: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, nil
}

// Viper exposes the underlying instance so CLI flags can be bound to it
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Watch calls onChange with the re-decoded configuration every time the
// config file changes. Decode failures are passed as err.
func (l *Loader) Watch(onChange func(cfg Config, err error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(l.decode())
	})
	l.v.WatchConfig()
}

// Load is a shortcut for NewLoader(path).Load()
func Load(path string) (Config, error) {
	return NewLoader(path).Load()
}
