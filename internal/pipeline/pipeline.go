// Package pipeline drives a run: list the active aliases, look each one up
// in the breach oracle, deactivate the breached ones and collect a report.
//
// Processing is strictly sequential. Oracle call N+1 is never issued before
// the pacing interval has elapsed since call N returned; after a
// rate-limited response the interval is stretched to the requested
// retry-after and the same alias is asked again.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aliasguard/internal/domain"
	"github.com/ignite/aliasguard/internal/pkg/logger"
)

// AliasSource lists the aliases to check.
type AliasSource interface {
	ListActiveAliases(ctx context.Context) ([]domain.Alias, error)
}

// BreachOracle reports the breaches an address appears in.
type BreachOracle interface {
	Check(ctx context.Context, address string) ([]domain.BreachRecord, error)
}

// AliasDeactivator marks an alias inactive at the provider.
type AliasDeactivator interface {
	Deactivate(ctx context.Context, alias domain.Alias) error
}

// Options tunes a Pipeline. Zero values are usable.
type Options struct {
	// MinInterval is the minimum gap between the return of one oracle call
	// and the start of the next.
	MinInterval time.Duration
	// MaxRateLimitRetries bounds how often one alias is re-queried after a
	// rate-limited response before the alias is recorded as failed.
	MaxRateLimitRetries int
	// DryRun reports breaches without deactivating anything.
	DryRun bool

	Clock  Clock
	Logger *logger.Logger
	// NewRunID overrides run id generation.
	NewRunID func() string
}

// Pipeline checks every active alias once per Run.
type Pipeline struct {
	source      AliasSource
	oracle      BreachOracle
	deactivator AliasDeactivator

	opts  Options
	clock Clock
	log   *logger.Logger

	// pacing state for the current run
	lastReturn time.Time
	gap        time.Duration
}

// New creates a Pipeline.
func New(source AliasSource, oracle BreachOracle, deactivator AliasDeactivator, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.MaxRateLimitRetries < 0 {
		opts.MaxRateLimitRetries = 0
	}
	return &Pipeline{
		source:      source,
		oracle:      oracle,
		deactivator: deactivator,
		opts:        opts,
		clock:       opts.Clock,
		log:         opts.Logger,
	}
}

// Run executes one full pass.
//
// A listing failure returns a nil report. A fatal failure while checking
// (rejected oracle credential, cancelled context) returns the results
// gathered so far together with the error; such a report is incomplete and
// must not be treated as a successful run.
func (p *Pipeline) Run(ctx context.Context) (*domain.Report, error) {
	report := &domain.Report{
		RunID:     p.opts.NewRunID(),
		StartedAt: p.clock.Now(),
		DryRun:    p.opts.DryRun,
	}
	log := p.log.With("run_id", report.RunID)
	p.lastReturn = time.Time{}
	p.gap = 0

	log.Info("Run started", "dry_run", p.opts.DryRun)

	aliases, err := p.source.ListActiveAliases(ctx)
	if err != nil {
		log.Error("Listing aliases failed", "error", err)
		return nil, fmt.Errorf("listing aliases: %w", err)
	}

	report.Results = make([]domain.CheckResult, 0, len(aliases))
	seen := make(map[string]bool, len(aliases))

	for i, alias := range aliases {
		if seen[alias.ID] {
			log.Warn("Skipping duplicate alias from listing", "alias_id", alias.ID)
			continue
		}
		seen[alias.ID] = true

		result, err := p.process(ctx, log, alias)
		if err != nil {
			report.FinishedAt = p.clock.Now()
			log.Error("Run aborted", "alias_id", alias.ID, "position", i+1, "error", err)
			return report, err
		}
		report.Results = append(report.Results, result)
	}

	report.FinishedAt = p.clock.Now()
	log.Info("Run finished",
		"checked", report.Checked(),
		"breached", report.Breached(),
		"deactivated", report.Deactivated(),
		"failed", report.Failed(),
		"duration", report.Duration())

	return report, nil
}

// process handles one alias. A non-nil error is fatal to the run; per-alias
// failures are recorded in the returned result.
func (p *Pipeline) process(ctx context.Context, log *logger.Logger, alias domain.Alias) (domain.CheckResult, error) {
	result := domain.CheckResult{Alias: alias, Breaches: []domain.BreachRecord{}}

	breaches, err := p.check(ctx, log, alias)
	if err != nil {
		if fatal(ctx, err) {
			return result, fmt.Errorf("checking alias %s: %w", alias.ID, err)
		}
		log.Warn("Breach check failed", "alias_id", alias.ID, "alias", alias.Email, "error", err)
		result.Error = domain.NewResultError(err)
		return result, nil
	}
	if breaches != nil {
		result.Breaches = breaches
	}

	if len(breaches) == 0 {
		log.Debug("No breaches", "alias_id", alias.ID, "alias", alias.Email)
		return result, nil
	}

	log.Info("Alias found in breaches",
		"alias_id", alias.ID,
		"alias", alias.Email,
		"breaches", len(breaches))

	if p.opts.DryRun {
		return result, nil
	}

	if err := p.deactivator.Deactivate(ctx, alias); err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("deactivating alias %s: %w", alias.ID, ctx.Err())
		}
		log.Warn("Deactivation failed", "alias_id", alias.ID, "alias", alias.Email, "error", err)
		result.Error = domain.NewResultError(err)
		return result, nil
	}

	result.Deactivated = true
	result.Alias.Active = false
	log.Info("Alias deactivated", "alias_id", alias.ID, "alias", alias.Email)
	return result, nil
}

// check queries the oracle for one alias, honouring the pacing interval and
// re-querying after rate-limited responses.
func (p *Pipeline) check(ctx context.Context, log *logger.Logger, alias domain.Alias) ([]domain.BreachRecord, error) {
	for attempt := 0; ; attempt++ {
		if err := p.waitTurn(ctx); err != nil {
			return nil, err
		}

		breaches, err := p.oracle.Check(ctx, alias.Email)
		p.lastReturn = p.clock.Now()
		p.gap = p.opts.MinInterval

		if err == nil {
			return breaches, nil
		}
		if domain.KindOf(err) != domain.KindRateLimited {
			return nil, err
		}

		if wait := domain.RetryAfterOf(err); wait > p.gap {
			p.gap = wait
		}
		if attempt >= p.opts.MaxRateLimitRetries {
			return nil, err
		}
		log.Warn("Breach oracle rate limited, waiting",
			"alias_id", alias.ID,
			"wait", p.gap,
			"attempt", attempt+1)
	}
}

// waitTurn blocks until the pacing gap since the last oracle return has
// elapsed.
func (p *Pipeline) waitTurn(ctx context.Context) error {
	if p.lastReturn.IsZero() {
		return ctx.Err()
	}
	wait := p.lastReturn.Add(p.gap).Sub(p.clock.Now())
	if wait <= 0 {
		return ctx.Err()
	}
	return p.clock.Sleep(ctx, wait)
}

// fatal reports whether err must abort the run: a rejected credential or a
// cancelled run context. An HTTP client timeout stays a per-alias failure.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return domain.KindOf(err) == domain.KindAuth
}
