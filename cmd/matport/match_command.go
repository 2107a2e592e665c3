package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"matport/internal/config"
	"matport/internal/material"
	"matport/internal/matcher"
	"matport/internal/store"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var (
		fromFile     string
		topK         int
		fastMode     bool
		weightSlots  float64
		weightParams float64
		weightShader float64
		weightName   float64
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "match <record-id>",
		Short: "Rank library records by similarity to a query material",
		Long: "The query is a record already in the library, or a definition file\n" +
			"given with --file. Results order by score, then shader similarity,\n" +
			"then identifier, so repeated runs agree exactly.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (fromFile == "") {
				return fmt.Errorf("give a record id or --file, not both")
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			return ctx.withReadStore(func(cfg *config.Config, st *store.Store) error {
				runCtx, cancel := signalContext()
				defer cancel()

				var query *material.Record
				if fromFile != "" {
					data, err := os.ReadFile(fromFile)
					if err != nil {
						return fmt.Errorf("read query definition: %w", err)
					}
					query, err = material.Parse(data, "", fromFile)
					if err != nil {
						return err
					}
				} else {
					query, err = st.Get(runCtx, args[0])
					if err != nil {
						return err
					}
				}

				var opts []matcher.Option
				if cmd.Flags().Changed("fast") {
					opts = append(opts, matcher.WithFastMode(fastMode))
				}
				if topK != 0 {
					opts = append(opts, matcher.WithTopK(topK))
				}
				if cmd.Flags().Changed("weight-slots") || cmd.Flags().Changed("weight-params") ||
					cmd.Flags().Changed("weight-shader") || cmd.Flags().Changed("weight-name") {
					opts = append(opts, matcher.WithWeights(matcher.Weights{
						SamplerSlots: weightSlots,
						Parameters:   weightParams,
						ShaderPath:   weightShader,
						NameTokens:   weightName,
					}))
				}
				m, err := matcher.New(cfg, logger, opts...)
				if err != nil {
					return err
				}

				corpus, err := st.All(runCtx)
				if err != nil {
					return err
				}
				// Never report the query record as its own best match.
				filtered := corpus[:0]
				for _, candidate := range corpus {
					if candidate.ID != query.ID {
						filtered = append(filtered, candidate)
					}
				}

				matches, err := m.Rank(runCtx, query, filtered)
				if err != nil {
					return err
				}
				printMatches(cmd, matches, asJSON)
				return nil
			})
		},
	}

	cfg := config.Default()
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Score against a definition file instead of a library record")
	cmd.Flags().IntVar(&topK, "top", 0, "Return at most this many matches (default from config)")
	cmd.Flags().BoolVar(&fastMode, "fast", cfg.Matcher.FastMode, "Prefilter candidates before scoring")
	cmd.Flags().Float64Var(&weightSlots, "weight-slots", cfg.Matcher.WeightSamplerSlots, "Sampler slot overlap weight")
	cmd.Flags().Float64Var(&weightParams, "weight-params", cfg.Matcher.WeightParameters, "Parameter agreement weight")
	cmd.Flags().Float64Var(&weightShader, "weight-shader", cfg.Matcher.WeightShaderPath, "Shader path similarity weight")
	cmd.Flags().Float64Var(&weightName, "weight-name", cfg.Matcher.WeightNameTokens, "Name token overlap weight")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func printMatches(cmd *cobra.Command, matches []matcher.Match, asJSON bool) {
	out := cmd.OutOrStdout()

	if asJSON {
		type matchOut struct {
			ID         string  `json:"id"`
			Score      float64 `json:"score"`
			Slots      float64 `json:"sampler_slots"`
			Params     float64 `json:"parameters"`
			Shader     float64 `json:"shader_path"`
			NameTokens float64 `json:"name_tokens"`
		}
		output := make([]matchOut, 0, len(matches))
		for _, match := range matches {
			output = append(output, matchOut{
				ID:         match.Record.ID,
				Score:      match.Score,
				Slots:      match.Breakdown.SamplerSlots,
				Params:     match.Breakdown.Parameters,
				Shader:     match.Breakdown.ShaderPath,
				NameTokens: match.Breakdown.NameTokens,
			})
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(output)
		return
	}

	rows := make([][]string, 0, len(matches))
	for _, match := range matches {
		rows = append(rows, []string{
			match.Record.ID,
			formatPercent(match.Score),
			formatPercent(match.Breakdown.SamplerSlots),
			formatPercent(match.Breakdown.Parameters),
			formatPercent(match.Breakdown.ShaderPath),
			formatPercent(match.Breakdown.NameTokens),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "SCORE", "SLOTS", "PARAMS", "SHADER", "NAME"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}
