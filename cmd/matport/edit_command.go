package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"matport/internal/config"
	"matport/internal/edits"
	"matport/internal/store"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	editCmd := &cobra.Command{
		Use:   "edit",
		Short: "Batch-edit sampler texture paths with undo support",
	}

	editCmd.AddCommand(newEditReplaceCommand(ctx))
	editCmd.AddCommand(newEditUndoCommand(ctx))
	editCmd.AddCommand(newEditRedoCommand(ctx))
	editCmd.AddCommand(newEditHistoryCommand(ctx))
	return editCmd
}

func newEditReplaceCommand(ctx *commandContext) *cobra.Command {
	var (
		find        string
		replace     string
		pattern     bool
		samplerType string
		selectQuery string
	)

	cmd := &cobra.Command{
		Use:   "replace [record-id]...",
		Short: "Rewrite texture paths on the selected records",
		Long: "Selects records by identifier, or with --select-shader by shader path\n" +
			"substring. The whole batch commits in one transaction: a missing\n" +
			"identifier or a store failure changes nothing.\n\n" +
			"With --pattern, --find is a Go regular expression and --replace may\n" +
			"reference capture groups; write ${1} instead of $1 when a letter,\n" +
			"digit, or underscore follows the reference.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if len(args) == 0 && selectQuery == "" {
				return errors.New("select records by id or with --select-shader")
			}

			return ctx.withWriteStore(func(cfg *config.Config, st *store.Store) error {
				runCtx, cancel := signalContext()
				defer cancel()

				ids := args
				if selectQuery != "" {
					records, _, err := st.Query(runCtx, store.Filter{ShaderContains: selectQuery})
					if err != nil {
						return err
					}
					for _, record := range records {
						ids = append(ids, record.ID)
					}
				}

				manager, err := edits.New(cfg, st, logger)
				if err != nil {
					return err
				}
				result, err := manager.Apply(runCtx, ids, edits.Mutation{
					Find:        find,
					Replace:     replace,
					Pattern:     pattern,
					SamplerType: samplerType,
				})
				if result != nil {
					out := cmd.OutOrStdout()
					for _, rejection := range result.Rejected {
						fmt.Fprintf(out, "unchanged: %s (%s)\n", rejection.ID, rejection.Reason)
					}
					if len(result.Changed) > 0 {
						fmt.Fprintf(out, "Edited %d records (transaction %s)\n", len(result.Changed), result.TxID)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&find, "find", "", "Text to find in texture paths")
	cmd.Flags().StringVar(&replace, "replace", "", "Replacement text")
	cmd.Flags().BoolVar(&pattern, "pattern", false, "Treat --find as a regular expression")
	cmd.Flags().StringVar(&samplerType, "sampler-type", "", "Only rewrite slots of this sampler type")
	cmd.Flags().StringVar(&selectQuery, "select-shader", "", "Select records whose shader path contains this text")
	_ = cmd.MarkFlagRequired("find")
	return cmd
}

func newEditUndoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the newest applied edit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryStep(ctx, cmd, true)
		},
	}
}

func newEditRedoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Reapply the most recently undone edit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryStep(ctx, cmd, false)
		},
	}
}

func runHistoryStep(ctx *commandContext, cmd *cobra.Command, undo bool) error {
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	return ctx.withWriteStore(func(cfg *config.Config, st *store.Store) error {
		manager, err := edits.New(cfg, st, logger)
		if err != nil {
			return err
		}
		var result *edits.StepResult
		if undo {
			result, err = manager.Undo(cmd.Context())
		} else {
			result, err = manager.Redo(cmd.Context())
		}
		if err != nil {
			return err
		}
		verb := "Reapplied"
		if undo {
			verb = "Reverted"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %q on %d records\n", verb, result.Description, len(result.Records))
		return nil
	})
}

func newEditHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List edit transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withReadStore(func(cfg *config.Config, st *store.Store) error {
				manager, err := edits.New(cfg, st, logger)
				if err != nil {
					return err
				}
				entries, err := manager.History(cmd.Context(), limit)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					status := "undone"
					if entry.Applied {
						status = "applied"
					}
					rows = append(rows, []string{
						entry.TxID,
						entry.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						entry.Description,
						strconv.Itoa(entry.Records),
						status,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"TRANSACTION", "WHEN", "MUTATION", "RECORDS", "STATUS"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Show at most this many entries (0 for all)")
	return cmd
}
