package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/logging"
	"github.com/ghrcdaac/granuledb/internal/mcp"
	"github.com/ghrcdaac/granuledb/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the granule store as MCP tools over stdio",
		Long: `Starts granuledb as an MCP server. Requests are read from stdin and
responses written to stdout, one JSON-RPC message per line. The store lock
is held for the lifetime of the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withStore(sigCtx, true, func(s *store.SQLiteStore) error {
				server := mcp.NewServer(s, Version, ctx.logger, ctx.reporter)
				server.SetIO(cmd.InOrStdin(), cmd.OutOrStdout())
				ctx.logger.Info("mcp server started",
					logging.String(logging.FieldEventType, "serve_start"),
					logging.String("path", s.Location()),
				)

				errCh := make(chan error, 1)
				go func() { errCh <- server.Run(sigCtx) }()

				select {
				case err := <-errCh:
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				case <-sigCtx.Done():
					// Run may still be blocked reading stdin.
					ctx.logger.Info("mcp server stopping",
						logging.String(logging.FieldEventType, "serve_stop"),
					)
					return nil
				}
			})
		},
	}
}
