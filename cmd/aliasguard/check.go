package main

import (
	"github.com/spf13/cobra"

	"github.com/ignite/aliasguard/internal/addy"
	"github.com/ignite/aliasguard/internal/hibp"
	"github.com/ignite/aliasguard/internal/pipeline"
	"github.com/ignite/aliasguard/internal/pkg/logger"
	"github.com/ignite/aliasguard/internal/report"
)

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check every active alias and deactivate the breached ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}
}

// runCheck executes one pipeline run and renders the report to stdout. A
// partial report is still rendered when the run aborts.
func runCheck(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	provider := addy.NewClient(cfg.Addy)
	p := pipeline.New(provider, hibp.NewClient(cfg.HIBP), provider, pipeline.Options{
		MinInterval:         cfg.HIBP.MinInterval(),
		MaxRateLimitRetries: cfg.HIBP.MaxRateLimitRetries,
		DryRun:              cfg.Run.DryRun,
		Logger:              logger.With("component", "pipeline"),
	})

	rep, runErr := p.Run(cmd.Context())
	if rep != nil {
		if err := report.Render(cmd.OutOrStdout(), rep, cfg.Run.Output); err != nil {
			logger.Error("Rendering report failed", "error", err)
			if runErr == nil {
				return err
			}
		}
	}
	return runErr
}
