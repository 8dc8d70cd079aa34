package main

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/OrlandoBitencourt/flare"
	"github.com/OrlandoBitencourt/flare/internal/config"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		addr      string
		telemetry bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Synchronize the snapshot and serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = opts.cfg.Server.Addr
			}

			clientOpts := append(opts.clientOptions(),
				flare.WithServer(addr, opts.cfg.Server.WebhookSecret),
				flare.WithListener(func(snapshot map[string]string) {
					opts.logger.Debug().Int("flags", len(snapshot)).Msg("snapshot published")
				}),
			)
			if telemetry {
				clientOpts = append(clientOpts, flare.WithOpenTelemetry())
			}

			client, err := flare.New(clientOpts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if opts.loader.Viper().ConfigFileUsed() != "" {
				opts.loader.Watch(func(cfg config.Config, err error) {
					if err != nil {
						opts.logger.Error().Err(err).Msg("config reload failed")
						return
					}
					level := config.ParseLevel(cfg.Log.Level)
					zerolog.SetGlobalLevel(level)
					opts.logger.Info().Str("level", level.String()).Msg("log level updated")
				})
			}

			if err := client.Start(ctx); err != nil {
				return err
			}
			opts.logger.Info().
				Str("scope", opts.cfg.Flare.Scope).
				Str("addr", addr).
				Dur("interval", opts.cfg.Flare.ReloadInterval).
				Msg("flare started")

			<-ctx.Done()
			opts.logger.Info().Msg("shutting down")

			return client.Stop()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Admin server listen address (default from config)")
	cmd.Flags().BoolVar(&telemetry, "otel", false, "Record traces and metrics through the global OpenTelemetry providers")

	return cmd
}

