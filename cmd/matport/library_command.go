package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"matport/internal/config"
	"matport/internal/material"
	"matport/internal/store"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect the record libraries on disk",
	}

	libraryCmd.AddCommand(newLibraryListCommand(ctx))
	libraryCmd.AddCommand(newLibraryStatusCommand(ctx))
	return libraryCmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List libraries under the configured library directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			paths, err := filepath.Glob(filepath.Join(cfg.Paths.LibraryDir, "*.db"))
			if err != nil {
				return fmt.Errorf("list libraries: %w", err)
			}
			sort.Strings(paths)

			selected := ctx.libraryName()
			rows := make([][]string, 0, len(paths))
			for _, path := range paths {
				name := strings.TrimSuffix(filepath.Base(path), ".db")
				size := "?"
				if info, err := os.Stat(path); err == nil {
					size = humanize.Bytes(uint64(info.Size()))
				}
				marker := ""
				if name == selected {
					marker = "*"
				}
				rows = append(rows, []string{marker, name, size, path})
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "No libraries in %s\n", cfg.Paths.LibraryDir)
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"", "LIBRARY", "SIZE", "PATH"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newLibraryStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the selected library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReadStore(func(cfg *config.Config, st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				archives, err := st.Archives(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Library:  %s\n", ctx.libraryName())
				fmt.Fprintf(out, "Records:  %s\n", humanize.Comma(int64(stats.Records)))
				fmt.Fprintf(out, "Archives: %d\n", stats.Archives)
				for _, state := range []material.EditState{
					material.EditStateUnmodified,
					material.EditStateImported,
					material.EditStateEdited,
				} {
					if count := stats.ByEditState[state]; count > 0 {
						fmt.Fprintf(out, "  %-11s %d\n", string(state)+":", count)
					}
				}

				if len(archives) > 0 {
					names := make([]string, 0, len(archives))
					for name := range archives {
						names = append(names, name)
					}
					sort.Strings(names)
					rows := make([][]string, 0, len(names))
					for _, name := range names {
						rows = append(rows, []string{name, strconv.Itoa(archives[name])})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"ARCHIVE", "RECORDS"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}
