package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"threatscope/internal/app"
	"threatscope/internal/domain"
)

type historyFlags struct {
	limit   int
	domain  string
	summary bool
}

func newHistoryCmd(rt runtime, rootOpts *rootOptions) *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(rt, rootOpts, cmd.ErrOrStderr(), true, nil)
			if err != nil {
				return err
			}
			a, err := rt.build(cmd.Context(), cfg, log, app.Options{SkipInsights: true})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			switch {
			case flags.summary:
				counts, err := a.History.TierDistribution(cmd.Context())
				if err != nil {
					return err
				}
				for _, t := range domain.Tiers {
					fmt.Fprintf(out, "%-6s %d\n", t, counts[t])
				}
				return nil
			case flags.domain != "":
				rec, err := a.History.LatestForDomain(cmd.Context(), flags.domain)
				if err != nil {
					return err
				}
				return printAnalyses(out, []domain.StoredAnalysis{rec})
			}
			rows, err := a.History.Recent(cmd.Context(), flags.limit)
			if err != nil {
				return err
			}
			return printAnalyses(out, rows)
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", 20, "Number of analyses to list")
	cmd.Flags().StringVar(&flags.domain, "domain", "", "Show the latest analysis for a registrable domain")
	cmd.Flags().BoolVar(&flags.summary, "summary", false, "Print the risk level distribution")
	return cmd
}

func printAnalyses(w io.Writer, rows []domain.StoredAnalysis) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ANALYZED\tTIER\tSCORE\tTRANSPORT\tADDRESS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.Record.AnalyzedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Record.Severity.Tier, r.Record.Severity.Score, r.Record.Transport, r.Record.Address)
	}
	return tw.Flush()
}
