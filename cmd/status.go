package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database location and granule count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				location string
				count    int
			)
			err := ctx.withStore(cmd.Context(), false, func(s *store.SQLiteStore) error {
				var err error
				location = s.Location()
				count, err = s.Count(cmd.Context())
				return err
			})
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			cfg := ctx.config
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "(defaults)"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "granuledb status")
			fmt.Fprintln(out, "================")
			fmt.Fprintf(out, "Config:    %s\n", configPath)
			fmt.Fprintf(out, "Database:  %s\n", location)
			fmt.Fprintf(out, "Lock:      %s\n", yesNo(cfg.Store.Lock))
			fmt.Fprintf(out, "Telemetry: %s\n", yesNo(ctx.reporter.Enabled()))
			fmt.Fprintf(out, "Granules:  %d\n", count)
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
