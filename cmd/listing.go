package cmd

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/listing"
	"github.com/ghrcdaac/granuledb/internal/logging"
)

func newListingCommand(ctx *commandContext) *cobra.Command {
	var baseURL string
	var pattern string

	cmd := &cobra.Command{
		Use:   "listing FILE|-",
		Short: "Convert a saved HTTP directory index into a batch",
		Long: `Parse an Apache, nginx or IIS style directory index page and print a JSON
batch keyed by file URL. The modification column becomes Last-Modified.
Pipe the output into skip, strict or replace.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := listing.Options{BaseURL: baseURL}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --pattern: %w", err)
				}
				opts.Pattern = re
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open listing: %w", err)
				}
				defer f.Close()
				in = f
			}

			granules, err := listing.Parse(in, opts)
			if err != nil {
				return err
			}
			if len(granules) == 0 {
				return listing.ErrNoEntries
			}

			ctx.logger.Debug("listing parsed",
				logging.String(logging.FieldEventType, "listing_parsed"),
				logging.Int("entries", len(granules)),
			)
			return granule.EncodeBatch(cmd.OutOrStdout(), listing.ToBatch(granules))
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "URL the index page was fetched from; relative links resolve against it")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Regular expression filenames must match")
	return cmd
}
