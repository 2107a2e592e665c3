package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"matport/internal/config"
	"matport/internal/store"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <record-id>",
		Short: "Display one record with its parameters and samplers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReadStore(func(cfg *config.Config, st *store.Store) error {
				record, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", record.ID)
				fmt.Fprintf(out, "Name:        %s\n", record.Name)
				fmt.Fprintf(out, "Archive:     %s\n", record.Archive)
				fmt.Fprintf(out, "Shader:      %s\n", record.ShaderPath)
				if record.SourcePath != "" {
					fmt.Fprintf(out, "Source:      %s\n", record.SourcePath)
				}
				if record.Compression != "" {
					fmt.Fprintf(out, "Compression: %s\n", record.Compression)
				}
				fmt.Fprintf(out, "State:       %s\n", record.EditState)
				fmt.Fprintf(out, "Imported:    %s\n", record.ImportedAt.Format("2006-01-02 15:04:05 MST"))

				if len(record.Params) > 0 {
					rows := make([][]string, 0, len(record.Params))
					for _, param := range record.Params {
						rows = append(rows, []string{param.Name, param.Value.TypeName(), param.Value.String()})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"PARAMETER", "TYPE", "VALUE"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft},
					))
				}

				if len(record.Samplers) > 0 {
					rows := make([][]string, 0, len(record.Samplers))
					for _, sampler := range record.Samplers {
						path := sampler.PathValue()
						if sampler.Path == nil {
							path = "(unbound)"
						}
						rows = append(rows, []string{
							sampler.Slot,
							sampler.Type(),
							path,
							strconv.Itoa(sampler.ExtraX) + "/" + strconv.Itoa(sampler.ExtraY),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"SLOT", "TYPE", "TEXTURE", "XY"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
	return cmd
}
