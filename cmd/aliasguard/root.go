package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignite/aliasguard/internal/config"
	"github.com/ignite/aliasguard/internal/pkg/logger"
)

// options holds the command-line flags shared by every subcommand.
type options struct {
	configPath string
	envFile    string
	dryRun     bool
	output     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "aliasguard",
		Short: "Deactivate addy.io aliases that appear in known data breaches",
		Long: `aliasguard lists every active addy.io alias, looks each one up in
Have I Been Pwned and deactivates the aliases found in a breach.

Credentials come from the environment (or a .env file):
  ADDY_TOKEN   addy.io API token (ANONADDY_TOKEN is accepted too)
  HIBP_TOKEN   Have I Been Pwned API key

Examples:
  aliasguard check --dry-run
  aliasguard check --output json > report.json
  aliasguard doctor`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.envFile, "env-file", "", "path to a .env file (default ./.env when present)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "report breached aliases without deactivating them")
	flags.StringVarP(&opts.output, "output", "o", "", "report format: text or json")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newCheckCmd(opts),
		newDoctorCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration, applies flag overrides, validates it
// and configures the default logger.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadFromEnv(opts.configPath, opts.envFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("dry-run") {
		cfg.Run.DryRun = opts.dryRun
	}
	if opts.output != "" {
		cfg.Run.Output = opts.output
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(level)
	logger.SetRedactPII(!cfg.Log.ShowPII)

	return cfg, nil
}
