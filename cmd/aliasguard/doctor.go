package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ignite/aliasguard/internal/addy"
	"github.com/ignite/aliasguard/internal/config"
	"github.com/ignite/aliasguard/internal/hibp"
)

var (
	colorGreen = color.New(color.FgGreen, color.Bold)
	colorCyan  = color.New(color.FgCyan)
)

type checkResult struct {
	Name    string
	Passed  bool
	Detail  string
	Elapsed time.Duration
}

func newDoctorCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify credentials and pacing before a real run",
		Long: `doctor confirms both API credentials are accepted and that the configured
lookup interval fits the Have I Been Pwned plan. It never deactivates anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}

func runDoctor(ctx context.Context, w io.Writer, cfg *config.Config) error {
	colorCyan.Fprintf(w, "aliasguard doctor\n")
	fmt.Fprintf(w, "addy.io:        %s\n", cfg.Addy.BaseURL)
	fmt.Fprintf(w, "haveibeenpwned: %s\n\n", cfg.HIBP.BaseURL)

	oracle := hibp.NewClient(cfg.HIBP)
	var sub *hibp.Subscription

	results := []checkResult{
		checkProviderToken(ctx, addy.NewClient(cfg.Addy)),
		checkOracleKey(ctx, oracle, &sub),
	}
	if sub != nil {
		results = append(results, checkPacing(cfg.HIBP, sub))
	}

	failed := 0
	for i, r := range results {
		status := colorGreen.Sprint("PASS ✓")
		if !r.Passed {
			status = colorRed.Sprint("FAIL ✗")
			failed++
		}
		fmt.Fprintf(w, "  [%d] %-32s %s  (%s)\n", i+1, r.Name, status, r.Elapsed.Round(time.Millisecond))
		if r.Detail != "" {
			for _, line := range strings.Split(r.Detail, "\n") {
				fmt.Fprintf(w, "      %s\n", line)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}

func checkProviderToken(ctx context.Context, client *addy.Client) checkResult {
	start := time.Now()
	name := "addy.io token accepted"

	details, err := client.TokenDetails(ctx)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: err.Error(), Elapsed: time.Since(start)}
	}

	detail := fmt.Sprintf("token %q", details.Name)
	if details.ExpiresAt != nil {
		detail += ", expires " + *details.ExpiresAt
	}
	return checkResult{Name: name, Passed: true, Detail: detail, Elapsed: time.Since(start)}
}

func checkOracleKey(ctx context.Context, client *hibp.Client, sub **hibp.Subscription) checkResult {
	start := time.Now()
	name := "haveibeenpwned key accepted"

	s, err := client.SubscriptionStatus(ctx)
	if err != nil {
		return checkResult{Name: name, Passed: false, Detail: err.Error(), Elapsed: time.Since(start)}
	}
	*sub = s

	return checkResult{
		Name:    name,
		Passed:  true,
		Detail:  fmt.Sprintf("plan %q, %d requests/min, until %s", s.SubscriptionName, s.Rpm, s.SubscribedUntil),
		Elapsed: time.Since(start),
	}
}

func checkPacing(cfg config.HIBPConfig, sub *hibp.Subscription) checkResult {
	name := "lookup interval fits plan"
	need := sub.MinInterval()
	have := cfg.MinInterval()

	if have < need {
		return checkResult{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("min_interval_ms is %d but the plan allows one lookup every %s; expect 429 responses", cfg.MinIntervalMS, need),
		}
	}
	return checkResult{Name: name, Passed: true, Detail: fmt.Sprintf("%s between lookups, plan needs %s", have, need)}
}
