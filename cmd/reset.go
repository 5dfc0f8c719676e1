package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/logging"
	"github.com/ghrcdaac/granuledb/internal/store"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the granule database and its WAL files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to delete the database without --yes")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lock, err := ctx.acquireLock(true)
			if err != nil {
				return err
			}
			if lock != nil {
				defer func() { _ = lock.Unlock() }()
			}

			if err := store.RemoveFiles(cfg.Store.Path); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			logging.WarnWithContext(ctx.logger, "granule database removed", "store_reset",
				logging.String("path", cfg.Store.Path),
				logging.String(logging.FieldImpact, "every granule will be reported as new on the next run"),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", cfg.Store.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm deletion")
	return cmd
}
