package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/OrlandoBitencourt/flare"
)

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch every flag once and print the snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flare.New(append(opts.clientOptions(), flare.WithReloadInterval(0))...)
			if err != nil {
				return err
			}

			if err := client.Sync(cmd.Context()); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(client.Snapshot())
		},
	}
}
