package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/store"
)

func newStrictCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "strict [FILE|-]",
		Aliases: []string{"error"},
		Short:   "Record a batch, failing if any granule was seen before",
		Long: `Insert every granule of the batch. If any name is already on record the
whole batch is rejected, nothing is written, and the command exits with
status 2 listing every duplicate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd, args)
			if err != nil {
				return err
			}

			var n int
			err = ctx.withStore(cmd.Context(), true, func(s *store.SQLiteStore) error {
				n, err = s.InsertOrFail(cmd.Context(), batch)
				return err
			})
			if err := ctx.finishRun("strict", batch, n, err); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d granule(s)\n", n)
			return nil
		},
	}
}
