package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/store"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "match [FILE|-]",
		Short: "Show which granules of a batch are already recorded",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd, args)
			if err != nil {
				return err
			}

			var names []string
			err = ctx.withStore(cmd.Context(), false, func(s *store.SQLiteStore) error {
				names, err = s.SelectMatching(cmd.Context(), batch)
				return err
			})
			if err != nil {
				return fmt.Errorf("match: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No granules of the batch are recorded.")
				return nil
			}
			fmt.Fprintln(out, renderMatches(names, batch))
			return nil
		},
	}
}

func renderMatches(names []string, batch granule.Batch) string {
	rows := make([][]string, 0, len(names))
	for i, name := range names {
		fp := batch[name]
		rows = append(rows, []string{strconv.Itoa(i + 1), name, fp.ETag, fp.LastModified})
	}
	return renderTable(
		[]string{"#", "Name", "Batch ETag", "Batch Last-Modified"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}
