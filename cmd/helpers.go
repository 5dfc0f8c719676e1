package cmd

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/logging"
	"github.com/ghrcdaac/granuledb/internal/store"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// readBatch decodes the batch named by the first argument, or stdin when the
// argument is absent or "-".
func readBatch(cmd *cobra.Command, args []string) (granule.Batch, error) {
	path := "-"
	if len(args) > 0 {
		path = args[0]
	}
	batch, err := granule.ReadBatchFile(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// finishRun logs and reports the outcome of a dedup run.
func (c *commandContext) finishRun(mode string, batch granule.Batch, actionable int, err error) error {
	logger := c.logger.With(logging.String(logging.FieldMode, mode))
	if err != nil {
		var dup *store.DuplicateGranuleError
		if errors.As(err, &dup) {
			c.reporter.TrackError(dup.ErrorKind())
			return err
		}
		logging.ErrorWithContext(logger, "dedup run failed", "run_failed",
			logging.Int("batch_size", len(batch)),
			logging.Error(err),
		)
		c.reporter.TrackError(mode)
		return fmt.Errorf("%s: %w", mode, err)
	}
	logger.Info("dedup run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("batch_size", len(batch)),
		logging.Int("actionable", actionable),
	)
	c.reporter.TrackRun(mode, len(batch), actionable)
	return nil
}
