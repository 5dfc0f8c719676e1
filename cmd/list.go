package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded granules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var granules []granule.Granule
			err := ctx.withStore(cmd.Context(), false, func(s *store.SQLiteStore) error {
				var err error
				granules, err = s.List(cmd.Context(), limit)
				return err
			})
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(granules) == 0 {
				fmt.Fprintln(out, "No granules recorded.")
				return nil
			}

			rows := make([][]string, 0, len(granules))
			for _, g := range granules {
				rows = append(rows, []string{g.Name, g.Fingerprint.ETag, g.Fingerprint.LastModified})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "ETag", "Last-Modified"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultLimit, fmt.Sprintf("Maximum number of granules to show (max %d)", store.MaxLimit))
	return cmd
}
