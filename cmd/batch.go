package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lightbox-cli/internal/export"
	"github.com/sells-group/lightbox-cli/internal/fetcher"
	"github.com/sells-group/lightbox-cli/pkg/geocode"
)

var (
	batchInput  string
	batchOutput string
	batchSize   int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Geocode an address spreadsheet",
	Long: `Reads a .csv or .xlsx file with Address, City, State and Zip Code columns,
geocodes every row and writes one result row per input row, in order.

The output kind follows the --output target: .csv, .xlsx, .geojson, .shp,
.db/.sqlite or a postgres:// URL. Without --output the configured store is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("batch-size") {
			cfg.Batch.Size = batchSize
		}
		client, err := newClient("batch")
		if err != nil {
			return err
		}

		records, err := fetcher.ReadAddresses(batchInput)
		if err != nil {
			return eris.Wrap(err, "batch: read input")
		}
		addrs := fetcher.Queries(records)

		zap.L().Info("batch: starting",
			zap.String("input", batchInput),
			zap.String("output", batchOutput),
			zap.Int("addresses", len(addrs)),
			zap.Int("batch_size", cfg.Batch.Size),
		)

		opts := []geocode.Option{geocode.WithLogger(zap.L())}
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar := progressbar.NewOptions(len(addrs),
				progressbar.OptionSetDescription("Geocoding"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			defer bar.Finish() //nolint:errcheck
			opts = append(opts, geocode.WithProgress(bar))
		}

		table, err := geocode.NewGeocoder(client, opts...).GeocodeBatch(ctx, addrs, cfg.Batch.Size)
		if err != nil {
			// Partial results are not written; a rerun starts from the top.
			zap.L().Error("batch: aborted",
				zap.Int("completed", len(table)),
				zap.Int("addresses", len(addrs)),
				zap.Error(err),
			)
			return eris.Wrap(err, "batch: geocode")
		}

		s := table.Summary()
		zap.L().Info("batch: complete",
			zap.Int("total", s.Total),
			zap.Int("matched", s.Matched),
			zap.Int("no_match", s.NoMatch),
			zap.Int("failed", s.Failed),
		)

		exportOpts := export.Options{Source: batchInput, BatchSize: cfg.Batch.Size}
		if batchOutput != "" {
			return export.Write(ctx, batchOutput, table, exportOpts)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := export.Save(ctx, st, table, exportOpts)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), run.ID)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchInput, "input", "i", "", "input .csv or .xlsx file")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "output file or postgres:// URL (default: configured store)")
	batchCmd.Flags().IntVar(&batchSize, "batch-size", 0, "addresses per batch (default from config)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}
