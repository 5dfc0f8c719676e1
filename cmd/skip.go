package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/store"
)

func newSkipCommand(ctx *commandContext) *cobra.Command {
	var printNames bool
	var emit bool

	cmd := &cobra.Command{
		Use:   "skip [FILE|-]",
		Short: "Record new and changed granules, skipping unchanged ones",
		Long: `Classify a discovery batch against the database. Names never seen
before and names whose ETag or Last-Modified differ are recorded and
counted; unchanged names are left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd, args)
			if err != nil {
				return err
			}

			var result store.Classification
			err = ctx.withStore(cmd.Context(), true, func(s *store.SQLiteStore) error {
				result, err = s.Classify(cmd.Context(), batch)
				return err
			})
			if err := ctx.finishRun("skip", batch, result.Count(), err); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case emit:
				return granule.EncodeBatch(out, batch.Subset(result.Actionable()))
			case printNames:
				for _, name := range result.Actionable() {
					fmt.Fprintln(out, name)
				}
				return nil
			default:
				fmt.Fprintf(out, "%d granule(s) to process: %d new, %d changed, %d unchanged\n",
					result.Count(), len(result.New), len(result.Changed), len(result.Unchanged))
				return nil
			}
		},
	}

	cmd.Flags().BoolVarP(&printNames, "print", "p", false, "Print actionable names, one per line")
	cmd.Flags().BoolVar(&emit, "emit", false, "Write the actionable subset of the batch as JSON")
	cmd.MarkFlagsMutuallyExclusive("print", "emit")
	return cmd
}
