package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"matport/internal/config"
	"matport/internal/material"
	"matport/internal/store"
)

func newQueryCommand(ctx *commandContext) *cobra.Command {
	var (
		shaderContains string
		shaderPattern  string
		samplerType    string
		hasParam       string
		archive        string
		editState      string
		offset         int
		limit          int
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List library records matching filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.Filter{
				ShaderContains: shaderContains,
				ShaderPattern:  shaderPattern,
				SamplerType:    samplerType,
				HasParam:       hasParam,
				Archive:        archive,
				Offset:         offset,
				Limit:          limit,
			}
			if editState != "" {
				state, ok := material.ParseEditState(editState)
				if !ok {
					return fmt.Errorf("unknown edit state %q (unmodified, imported, edited)", editState)
				}
				filter.EditState = state
			}

			return ctx.withReadStore(func(cfg *config.Config, st *store.Store) error {
				records, total, err := st.Query(cmd.Context(), filter)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					encoder := json.NewEncoder(out)
					encoder.SetIndent("", "  ")
					return encoder.Encode(map[string]any{
						"total":   total,
						"records": recordSummaries(records),
					})
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						record.ID,
						record.Name,
						record.ShaderPath,
						record.Archive,
						string(record.EditState),
						strconv.Itoa(len(record.Samplers)),
						strconv.Itoa(len(record.Params)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "NAME", "SHADER", "ARCHIVE", "STATE", "SAMPLERS", "PARAMS"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				fmt.Fprintf(out, "%d of %d records\n", len(records), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&shaderContains, "shader", "", "Filter by shader path substring")
	cmd.Flags().StringVar(&shaderPattern, "shader-regexp", "", "Filter by shader path regular expression")
	cmd.Flags().StringVar(&samplerType, "sampler-type", "", "Filter by sampler type (e.g. AlbedoMap)")
	cmd.Flags().StringVar(&hasParam, "param", "", "Filter by parameter name")
	cmd.Flags().StringVar(&archive, "archive", "", "Filter by source archive")
	cmd.Flags().StringVar(&editState, "state", "", "Filter by edit state")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many records")
	cmd.Flags().IntVar(&limit, "limit", 50, "Return at most this many records (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

type recordSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ShaderPath string `json:"shader_path"`
	Archive    string `json:"archive"`
	EditState  string `json:"edit_state"`
	Samplers   int    `json:"samplers"`
	Params     int    `json:"params"`
}

func recordSummaries(records []*material.Record) []recordSummary {
	summaries := make([]recordSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, recordSummary{
			ID:         record.ID,
			Name:       record.Name,
			ShaderPath: record.ShaderPath,
			Archive:    record.Archive,
			EditState:  string(record.EditState),
			Samplers:   len(record.Samplers),
			Params:     len(record.Params),
		})
	}
	return summaries
}
