package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"threatscope/internal/app"
)

func newMigrateCmd(rt runtime, rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(rt, rootOpts, cmd.ErrOrStderr(), true, nil)
			if err != nil {
				return err
			}
			cfg.MigrateOnStart = false
			a, err := rt.build(cmd.Context(), cfg, log, app.Options{SkipInsights: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.DB.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
