package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"threatscope/internal/app"
	"threatscope/internal/config"
	"threatscope/internal/domain"
)

type analyzeFlags struct {
	policy    string
	noInsight bool
	compact   bool
}

func newAnalyzeCmd(rt runtime, rootOpts *rootOptions) *cobra.Command {
	flags := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Fetch one address, detect indicators and print the scored report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var override func(*config.Config)
			if flags.policy != "" {
				override = func(c *config.Config) { c.ScoringPolicy = flags.policy }
			}
			cfg, log, err := setup(rt, rootOpts, cmd.ErrOrStderr(), false, override)
			if err != nil {
				return err
			}
			a, err := rt.build(cmd.Context(), cfg, log, app.Options{SkipInsights: flags.noInsight})
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Analyzer.Report(cmd.Context(), args[0])
			var pe *domain.PersistenceError
			if err != nil && !errors.As(err, &pe) {
				return err
			}
			if pe != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", pe)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !flags.compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(rep)
		},
	}

	cmd.Flags().StringVar(&flags.policy, "policy", "", "Scoring policy: weighted or categorical (default SCORING_POLICY)")
	cmd.Flags().BoolVar(&flags.noInsight, "no-insight", false, "Skip the LLM insight even when GROQ_API_KEY is set")
	cmd.Flags().BoolVar(&flags.compact, "compact", false, "Print single-line JSON")
	return cmd
}
