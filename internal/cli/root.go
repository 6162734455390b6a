package cli

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"threatscope/internal/app"
	"threatscope/internal/config"
	"threatscope/internal/logging"
)

var version = "dev"

// Execute builds the root command tree and runs the CLI.
func Execute() error {
	return newRootCmd(defaultRuntime()).Execute()
}

// runtime holds the seams the commands are built on.
type runtime struct {
	load  func(override func(*config.Config)) (config.Config, error)
	build func(ctx context.Context, cfg config.Config, log *logrus.Logger, opts app.Options) (*app.App, error)
}

func defaultRuntime() runtime {
	return runtime{load: config.LoadWith, build: app.Build}
}

type rootOptions struct {
	LogLevel string
}

func newRootCmd(rt runtime) *cobra.Command {
	rootOpts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "threatscope",
		Short:         "Scan web and onion addresses for leaked data and threat indicators",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetVersionTemplate("threatscope version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootOpts.LogLevel, "log-level", "", "Override LOG_LEVEL")

	rootCmd.AddCommand(
		newAnalyzeCmd(rt, rootOpts),
		newMigrateCmd(rt, rootOpts),
		newHistoryCmd(rt, rootOpts),
	)
	return rootCmd
}

// setup loads configuration and a logger writing to the command's stderr.
// requireDB turns a missing DATABASE_URL into an error. override may be nil.
func setup(rt runtime, opts *rootOptions, stderr io.Writer, requireDB bool, override func(*config.Config)) (config.Config, *logrus.Logger, error) {
	cfg, err := rt.load(override)
	if errors.Is(err, config.ErrNoDatabase) && !requireDB {
		err = nil
	}
	if err != nil {
		return cfg, nil, err
	}
	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	return cfg, logging.NewWithWriter(stderr, level, cfg.LogFormat), nil
}
