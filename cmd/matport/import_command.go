package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"matport/internal/config"
	"matport/internal/extraction"
	"matport/internal/importer"
	"matport/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <archive>...",
		Short: "Import material archives into the library",
		Long: "Extracts each archive with the configured external tool, parses the\n" +
			"definition files, and commits them to the library one transaction per\n" +
			"archive. Records edited in the library are never overwritten; the\n" +
			"incoming copies are reported as conflicts instead.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withWriteStore(func(cfg *config.Config, st *store.Store) error {
				client, err := extraction.New(cfg.Extractor.Binary, cfg.Extractor.TimeoutSeconds,
					extraction.WithLogger(logger))
				if err != nil {
					return err
				}
				pipeline, err := importer.New(cfg, st, client, logger)
				if err != nil {
					return err
				}

				runCtx, cancel := signalContext()
				defer cancel()

				var onProgress func(importer.Progress)
				if isatty.IsTerminal(os.Stderr.Fd()) {
					bar := progressbar.NewOptions(len(args),
						progressbar.OptionSetWriter(cmd.ErrOrStderr()),
						progressbar.OptionSetDescription("importing"),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
					onProgress = func(update importer.Progress) {
						if update.Stage == importer.StageCommit {
							_ = bar.Set(update.Done)
						}
					}
					defer func() { _ = bar.Finish() }()
				}

				batch, runErr := pipeline.Run(runCtx, args, onProgress)
				if batch != nil {
					printBatch(cmd, batch)
				}
				return runErr
			})
		},
	}
	return cmd
}

func printBatch(cmd *cobra.Command, batch *importer.BatchResult) {
	out := cmd.OutOrStdout()

	rows := make([][]string, 0, len(batch.Archives))
	for _, result := range batch.Archives {
		status := "ok"
		switch {
		case result.Skipped:
			status = "skipped"
		case result.Err != nil:
			status = "failed"
		}
		rows = append(rows, []string{
			result.Archive,
			status,
			strconv.Itoa(result.Parsed),
			strconv.Itoa(result.Imported),
			strconv.Itoa(result.Overwritten),
			strconv.Itoa(len(result.Conflicts)),
			strconv.Itoa(len(result.FileErrors)),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ARCHIVE", "STATUS", "PARSED", "NEW", "OVERWRITTEN", "CONFLICTS", "FILE ERRORS"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	fmt.Fprintf(out, "Committed %s records in %s\n",
		humanize.Comma(int64(batch.TotalCommitted())),
		batch.Finished.Sub(batch.Started).Round(time.Millisecond))

	for _, result := range batch.Archives {
		for _, conflict := range result.Conflicts {
			fmt.Fprintf(out, "conflict: %s (edited in library, incoming copy from %s skipped)\n",
				conflict.ID, conflict.Archive)
		}
		for _, fileErr := range result.FileErrors {
			fmt.Fprintf(out, "malformed: %s: %v\n", fileErr.Path, fileErr.Err)
		}
		if result.Err != nil && !result.Skipped {
			fmt.Fprintf(out, "failed: %s: %v\n", result.Archive, result.Err)
		}
	}
}
