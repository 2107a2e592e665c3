package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"matport/internal/config"
	"matport/internal/extraction"
	"matport/internal/material"
	"matport/internal/store"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		archivePath string
		outDir      string
	)

	cmd := &cobra.Command{
		Use:   "export <record-id>...",
		Short: "Re-serialize records as definition files or a repacked archive",
		Long: "Writes the selected records back out as definition XML. With\n" +
			"--archive the files are staged and repacked into an archive by the\n" +
			"configured external tool; with --out they are written loose into a\n" +
			"directory.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (archivePath == "") == (outDir == "") {
				return errors.New("give exactly one of --archive or --out")
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			return ctx.withReadStore(func(cfg *config.Config, st *store.Store) error {
				runCtx, cancel := signalContext()
				defer cancel()

				records := make([]*material.Record, 0, len(args))
				for _, id := range args {
					record, err := st.Get(runCtx, id)
					if err != nil {
						return err
					}
					records = append(records, record)
				}

				if outDir != "" {
					for _, record := range records {
						target := filepath.Join(outDir, filepath.FromSlash(record.ID)+".xml")
						if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
							return fmt.Errorf("create export dir: %w", err)
						}
						if err := os.WriteFile(target, material.Encode(record), 0o644); err != nil {
							return fmt.Errorf("write definition: %w", err)
						}
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d definitions to %s\n", len(records), outDir)
					return nil
				}

				client, err := extraction.New(cfg.Extractor.Binary, cfg.Extractor.TimeoutSeconds,
					extraction.WithLogger(logger))
				if err != nil {
					return err
				}

				workspace, err := extraction.CreateWorkspace(
					filepath.Join(cfg.Paths.StagingDir, uuid.New().String()))
				if err != nil {
					return err
				}
				defer func() { _ = workspace.Close() }()

				for _, record := range records {
					if err := workspace.WriteDefinition(record.ID+".xml", material.Encode(record)); err != nil {
						return err
					}
				}
				if err := client.Repack(runCtx, workspace.Root(), archivePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Repacked %d records into %s\n", len(records), archivePath)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "", "Repack the records into this archive")
	cmd.Flags().StringVar(&outDir, "out", "", "Write loose definition files into this directory")
	return cmd
}
