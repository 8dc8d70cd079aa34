package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/OrlandoBitencourt/flare"
	"github.com/OrlandoBitencourt/flare/internal/config"
)

// rootOptions is shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE.
type rootOptions struct {
	configPath string

	loader *config.Loader
	cfg    config.Config
	logger zerolog.Logger
}

// flagBindings maps CLI flags onto config keys so flags win over file and env.
var flagBindings = map[string]string{
	"base-url":   "flare.base_url",
	"api-key":    "flare.api_key",
	"scope":      "flare.scope",
	"section":    "flare.section",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "flare",
		Short:         "Keep a local snapshot of Flare feature flags in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a config file (default ./flare.yaml)")
	flags.String("base-url", "", "Flare service base URL")
	flags.String("api-key", "", "Flare API key")
	flags.StringP("scope", "s", "", "Scope to synchronize")
	flags.String("section", "", "Snapshot key prefix")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console or json")

	cmd.AddCommand(
		newRunCmd(opts),
		newSnapshotCmd(opts),
		newEvalCmd(opts),
	)

	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	o.loader = config.NewLoader(o.configPath)

	v := o.loader.Viper()
	for flagName, key := range flagBindings {
		f := cmd.Flags().Lookup(flagName)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	cfg, err := o.loader.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.cfg = cfg
	o.logger = config.SetupLogging(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// clientOptions translates the loaded configuration into client options.
func (o *rootOptions) clientOptions() []flare.Option {
	cfg := flare.DefaultConfig()
	cfg.Service.BaseURL = o.cfg.Flare.BaseURL
	cfg.Service.APIKey = o.cfg.Flare.APIKey
	cfg.Snapshot.Scope = o.cfg.Flare.Scope
	cfg.Snapshot.ReloadInterval = o.cfg.Flare.ReloadInterval
	cfg.Filter.OnlyEnabled = o.cfg.Filter.OnlyEnabled
	cfg.Filter.Expression = o.cfg.Filter.Expression
	cfg.Cache.TTL = o.cfg.Cache.TTL

	if o.cfg.Flare.Section != "" {
		cfg.Snapshot.Section = o.cfg.Flare.Section
	}
	if o.cfg.Flare.Timeout > 0 {
		cfg.Service.Timeout = o.cfg.Flare.Timeout
	}
	if o.cfg.Flare.MaxRetries >= 0 {
		cfg.Service.MaxRetries = o.cfg.Flare.MaxRetries
	}

	return []flare.Option{
		flare.WithConfig(cfg),
		flare.WithDefaultScope(o.cfg.Flare.Scope),
		flare.WithLogger(o.logger),
	}
}
