package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/store"
)

func newReplaceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "replace [FILE|-]",
		Short: "Record a batch, overwriting stored fingerprints",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd, args)
			if err != nil {
				return err
			}

			var n int
			err = ctx.withStore(cmd.Context(), true, func(s *store.SQLiteStore) error {
				n, err = s.Replace(cmd.Context(), batch)
				return err
			})
			if err := ctx.finishRun("replace", batch, n, err); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Replaced %d granule(s)\n", n)
			return nil
		},
	}
}
