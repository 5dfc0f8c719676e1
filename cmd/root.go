package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/store"
)

func newRootCommand() (*cobra.Command, *commandContext) {
	var configFlag, dbFlag, logLevelFlag string

	ctx := newCommandContext(&configFlag, &dbFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:   "granuledb",
		Short: "Track which remotely discovered granules are new or changed",
		Long: `granuledb remembers the granules a discovery crawler has already seen.
Feed it a batch of {"name": {"ETag": ..., "Last-Modified": ...}} and it reports
which entries are new or changed, rejects re-discovered names in strict mode,
or overwrites and forgets records on request.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			return ctx.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Granule database path (overrides store.path)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newSkipCommand(ctx))
	rootCmd.AddCommand(newStrictCommand(ctx))
	rootCmd.AddCommand(newReplaceCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newListingCommand(ctx))
	rootCmd.AddCommand(newResetCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd, ctx
}

func Execute() error {
	rootCmd, ctx := newRootCommand()
	defer ctx.close()
	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to a process exit status.
// Rejected duplicates get their own status so pipelines can tell them apart
// from storage failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, store.ErrDuplicateGranule):
		return 2
	default:
		return 1
	}
}
