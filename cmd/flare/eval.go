package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/OrlandoBitencourt/flare"
)

func newEvalCmd(opts *rootOptions) *cobra.Command {
	var (
		targetingKey string
		defaultValue bool
	)

	cmd := &cobra.Command{
		Use:   "eval <flagKey>",
		Short: "Resolve one flag and print the resolution detail as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flare.New(append(opts.clientOptions(), flare.WithReloadInterval(0))...)
			if err != nil {
				return err
			}

			evalCtx := flare.NewContext(opts.cfg.Flare.Scope).WithTargetingKey(targetingKey)

			result, err := client.Evaluate(cmd.Context(), args[0], evalCtx, defaultValue)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&targetingKey, "targeting-key", "t", "", "Targeting key, usually a user ID")
	cmd.Flags().BoolVarP(&defaultValue, "default", "d", false, "Value returned when the flag cannot be resolved")

	return cmd
}
