package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ligustah/stitch/internal/config"
)

// cli holds the root command and the state shared by subcommands.
type cli struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	configPath string
	// overrides collects flag values; zero values mean "not set".
	overrides config.Config

	cfg config.Config
	log *zap.Logger
}

func newCLI(stdout, stderr io.Writer) *cli {
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		log:    zap.NewNop(),
	}

	root := &cobra.Command{
		Use:   "stitch",
		Short: "Reconcile part files, fetch assets and publish them",
		Long: `stitch merges files split into name.partN.ext pieces back into whole
files, fetches remote assets with bounded concurrency and publishes the
results to object storage (file://, s3://, gs://).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(ExitInvalidArgs, err)
	})

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&c.overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")

	root.AddCommand(c.newReconcileCmd())
	root.AddCommand(c.newFetchCmd())
	root.AddCommand(c.newPublishCmd())
	root.AddCommand(c.newVerifyCmd())
	root.AddCommand(c.newUnpublishCmd())

	c.root = root
	return c
}

// setup resolves configuration and builds the logger before any subcommand
// runs. Precedence: defaults, config file, environment, flags.
func (c *cli) setup(*cobra.Command, []string) error {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(c.configPath); err != nil {
			return withCode(ExitInvalidArgs, err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return withCode(ExitInvalidArgs, err)
	}
	cfg = cfg.Merge(c.overrides)
	if err := cfg.Validate(); err != nil {
		return withCode(ExitInvalidArgs, err)
	}
	c.cfg = cfg

	log, err := newLogger(c.stderr, cfg.LogLevel)
	if err != nil {
		return withCode(ExitInvalidArgs, err)
	}
	c.log = log
	return nil
}

func (c *cli) syncLogger() {
	_ = c.log.Sync()
}

// newLogger builds a console logger writing plain text to w.
func newLogger(w io.Writer, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// argsWithCode marks argument validation failures as invalid usage.
func argsWithCode(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return withCode(ExitInvalidArgs, fn(cmd, args))
	}
}
