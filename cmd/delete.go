package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/store"
)

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "delete [NAME...]",
		Short: "Forget recorded granules",
		Long: `Delete granules by name, or every name in a batch file with --from.
Names that were never recorded are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(args))
			for _, arg := range args {
				if name := strings.TrimSpace(arg); name != "" {
					names = append(names, name)
				}
			}
			if fromFile != "" {
				batch, err := granule.ReadBatchFile(fromFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				names = append(names, batch.Names()...)
			}
			if len(names) == 0 {
				return errors.New("no granule names given (pass names or --from FILE)")
			}

			var removed int
			err := ctx.withStore(cmd.Context(), true, func(s *store.SQLiteStore) error {
				var err error
				removed, err = s.DeleteByNames(cmd.Context(), names)
				return err
			})
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d granule(s)\n", removed, len(names))
			return nil
		},
	}

	cmd.Flags().StringVarP(&fromFile, "from", "f", "", "Batch file whose names should be deleted (- for stdin)")
	return cmd
}
