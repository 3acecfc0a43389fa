package pipeline

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/aliasguard/internal/domain"
	"github.com/ignite/aliasguard/internal/pkg/logger"
)

type harness struct {
	clock       *fakeClock
	source      *fakeSource
	oracle      *fakeOracle
	deactivator *fakeDeactivator
	opts        Options
}

func newHarness(t *testing.T, aliases ...domain.Alias) *harness {
	clock := newFakeClock()
	return &harness{
		clock:       clock,
		source:      &fakeSource{aliases: aliases},
		oracle:      &fakeOracle{clock: clock, latency: 200 * time.Millisecond, replies: map[string][]oracleReply{}},
		deactivator: newFakeDeactivator(t),
		opts: Options{
			MinInterval:         6 * time.Second,
			MaxRateLimitRetries: 3,
			Clock:               clock,
			Logger:              logger.New(io.Discard, logger.DEBUG, true),
			NewRunID:            func() string { return "run-1" },
		},
	}
}

func (h *harness) run(ctx context.Context) (*domain.Report, error) {
	return New(h.source, h.oracle, h.deactivator, h.opts).Run(ctx)
}

func alias(id, email string) domain.Alias {
	return domain.Alias{ID: id, Email: email, Active: true}
}

// assertInvariants checks the per-result rules every report must satisfy.
func assertInvariants(t *testing.T, report *domain.Report) {
	t.Helper()
	seen := map[string]bool{}
	for _, r := range report.Results {
		assert.False(t, seen[r.Alias.ID], "alias %s reported twice", r.Alias.ID)
		seen[r.Alias.ID] = true
		if r.Deactivated {
			assert.NotEmpty(t, r.Breaches, "deactivated alias %s without breaches", r.Alias.ID)
			assert.False(t, r.Alias.Active)
		}
		if r.Error != nil {
			assert.False(t, r.Deactivated, "alias %s has error and is deactivated", r.Alias.ID)
		}
	}
}

func TestRun_EndToEndScenario(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"))
	h.oracle.replies["b@x.com"] = []oracleReply{{breaches: breaches("BreachCo")}}

	report, err := h.run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assertInvariants(t, report)

	assert.Equal(t, "run-1", report.RunID)
	require.Len(t, report.Results, 2)

	a := report.Results[0]
	assert.Equal(t, "a@x.com", a.Alias.Email)
	assert.Empty(t, a.Breaches)
	assert.False(t, a.Deactivated)
	assert.True(t, a.Alias.Active)
	assert.Nil(t, a.Error)

	b := report.Results[1]
	assert.Equal(t, "b@x.com", b.Alias.Email)
	assert.Equal(t, []string{"BreachCo"}, domain.BreachNames(b.Breaches))
	assert.True(t, b.Deactivated)
	assert.False(t, b.Alias.Active)
	assert.Nil(t, b.Error)

	assert.Equal(t, map[string]int{"2": 1}, h.deactivator.calls)
	assert.Equal(t, 1, h.source.calls)
	assert.Equal(t, 2, report.Checked())
	assert.Equal(t, 1, report.Breached())
	assert.Equal(t, 1, report.Deactivated())
	assert.Equal(t, 0, report.Failed())
}

func TestRun_NoDeactivationWithoutBreaches(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"), alias("3", "c@x.com"))
	h.deactivator.forbid = true

	report, err := h.run(context.Background())
	require.NoError(t, err)
	assertInvariants(t, report)

	require.Len(t, report.Results, 3)
	for _, r := range report.Results {
		assert.False(t, r.Deactivated)
		assert.Empty(t, r.Breaches)
	}
	assert.Zero(t, h.deactivator.total())
}

func TestRun_EachAliasCheckedExactlyOnce(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"), alias("1", "a@x.com"))

	report, err := h.run(context.Background())
	require.NoError(t, err)
	assertInvariants(t, report)

	assert.Len(t, report.Results, 2)
	assert.Equal(t, 1, h.oracle.callsFor("a@x.com"))
	assert.Equal(t, 1, h.oracle.callsFor("b@x.com"))
}

func TestRun_PacesOracleCalls(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"), alias("3", "c@x.com"))

	_, err := h.run(context.Background())
	require.NoError(t, err)

	require.Len(t, h.oracle.calls, 3)
	for i := 1; i < len(h.oracle.calls); i++ {
		gap := h.oracle.calls[i].started.Sub(h.oracle.calls[i-1].returned)
		assert.GreaterOrEqual(t, gap, h.opts.MinInterval, "call %d issued too early", i+1)
	}
	// no wait before the first call
	assert.Len(t, h.clock.sleeps, 2)
}

func TestRun_RateLimitDelaysNextAlias(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"))
	h.opts.MaxRateLimitRetries = 0
	h.oracle.replies["a@x.com"] = []oracleReply{{err: rateLimited(30 * time.Second)}}

	report, err := h.run(context.Background())
	require.NoError(t, err)
	assertInvariants(t, report)

	require.Len(t, h.oracle.calls, 2)
	gap := h.oracle.calls[1].started.Sub(h.oracle.calls[0].returned)
	assert.GreaterOrEqual(t, gap, 30*time.Second)

	require.Len(t, report.Results, 2)
	require.NotNil(t, report.Results[0].Error)
	assert.Equal(t, domain.KindRateLimited, report.Results[0].Error.Kind)
	assert.Nil(t, report.Results[1].Error)
}

func TestRun_RateLimitRequeriesSameAlias(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"))
	h.oracle.replies["a@x.com"] = []oracleReply{
		{err: rateLimited(20 * time.Second)},
		{breaches: breaches("Adobe")},
	}

	report, err := h.run(context.Background())
	require.NoError(t, err)
	assertInvariants(t, report)

	require.Len(t, h.oracle.calls, 3)
	assert.Equal(t, "a@x.com", h.oracle.calls[0].address)
	assert.Equal(t, "a@x.com", h.oracle.calls[1].address)
	assert.Equal(t, "b@x.com", h.oracle.calls[2].address)

	assert.GreaterOrEqual(t, h.oracle.calls[1].started.Sub(h.oracle.calls[0].returned), 20*time.Second)
	assert.GreaterOrEqual(t, h.oracle.calls[2].started.Sub(h.oracle.calls[1].returned), h.opts.MinInterval)

	require.Len(t, report.Results, 2)
	assert.Nil(t, report.Results[0].Error, "rate limiting is not surfaced when the retry succeeds")
	assert.True(t, report.Results[0].Deactivated)
}

func TestRun_RateLimitShorterThanIntervalKeepsInterval(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"))
	h.oracle.replies["a@x.com"] = []oracleReply{{err: rateLimited(time.Second)}}

	_, err := h.run(context.Background())
	require.NoError(t, err)

	require.Len(t, h.oracle.calls, 2)
	assert.GreaterOrEqual(t, h.oracle.calls[1].started.Sub(h.oracle.calls[0].returned), h.opts.MinInterval)
}

func TestRun_RateLimitRetriesAreBounded(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"))
	h.opts.MaxRateLimitRetries = 2
	h.oracle.replies["a@x.com"] = []oracleReply{
		{err: rateLimited(time.Second)},
		{err: rateLimited(time.Second)},
		{err: rateLimited(time.Second)},
		{breaches: breaches("never reached")},
	}

	report, err := h.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, h.oracle.callsFor("a@x.com"))
	require.Len(t, report.Results, 1)
	require.NotNil(t, report.Results[0].Error)
	assert.Equal(t, domain.KindRateLimited, report.Results[0].Error.Kind)
	assert.Zero(t, h.deactivator.total())
}

func TestRun_ListingAuthFailureAbortsBeforeAnyCheck(t *testing.T) {
	h := newHarness(t)
	h.source.err = serviceErr(domain.ServiceAliasProvider, domain.KindAuth, 401)
	h.deactivator.forbid = true

	report, err := h.run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	assert.Contains(t, err.Error(), "addy.io auth failure")

	assert.Empty(t, h.oracle.calls)
	assert.Zero(t, h.deactivator.total())
}

func TestRun_ListingFailuresAreFatal(t *testing.T) {
	for _, kind := range []domain.ErrorKind{domain.KindNetwork, domain.KindUnexpected} {
		t.Run(string(kind), func(t *testing.T) {
			h := newHarness(t)
			h.source.err = serviceErr(domain.ServiceAliasProvider, kind, 0)

			report, err := h.run(context.Background())
			require.Error(t, err)
			assert.Nil(t, report)
			assert.Equal(t, kind, domain.KindOf(err))
			assert.Empty(t, h.oracle.calls)
		})
	}
}

func TestRun_OracleAuthFailureAbortsWithPartialReport(t *testing.T) {
	h := newHarness(t,
		alias("1", "a@x.com"),
		alias("2", "b@x.com"),
		alias("3", "c@x.com"),
		alias("4", "d@x.com"),
	)
	h.oracle.replies["b@x.com"] = []oracleReply{{breaches: breaches("Adobe")}}
	h.oracle.replies["c@x.com"] = []oracleReply{{err: serviceErr(domain.ServiceBreachOracle, domain.KindAuth, 401)}}

	report, err := h.run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	assert.Contains(t, err.Error(), "haveibeenpwned auth failure")

	require.NotNil(t, report)
	assertInvariants(t, report)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "1", report.Results[0].Alias.ID)
	assert.Equal(t, "2", report.Results[1].Alias.ID)
	assert.Zero(t, h.oracle.callsFor("d@x.com"))
	assert.Equal(t, map[string]int{"2": 1}, h.deactivator.calls)
}

func TestRun_PerAliasOracleErrorsContinue(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"), alias("3", "c@x.com"))
	h.oracle.replies["a@x.com"] = []oracleReply{{err: serviceErr(domain.ServiceBreachOracle, domain.KindNetwork, 0)}}
	h.oracle.replies["b@x.com"] = []oracleReply{{err: serviceErr(domain.ServiceBreachOracle, domain.KindUnexpected, 503)}}
	h.oracle.replies["c@x.com"] = []oracleReply{{breaches: breaches("Adobe", "LinkedIn")}}

	report, err := h.run(context.Background())
	require.NoError(t, err)
	assertInvariants(t, report)

	require.Len(t, report.Results, 3)
	require.NotNil(t, report.Results[0].Error)
	assert.Equal(t, domain.KindNetwork, report.Results[0].Error.Kind)
	require.NotNil(t, report.Results[1].Error)
	assert.Equal(t, domain.KindUnexpected, report.Results[1].Error.Kind)
	assert.Equal(t, 503, report.Results[1].Error.Status)
	assert.Equal(t, domain.ServiceBreachOracle, report.Results[1].Error.Service)

	assert.True(t, report.Results[2].Deactivated)
	assert.Equal(t, []string{"Adobe", "LinkedIn"}, domain.BreachNames(report.Results[2].Breaches))
	assert.Equal(t, 2, report.Failed())
}

func TestRun_DeactivationFailureIsPerAlias(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"))
	h.oracle.replies["a@x.com"] = []oracleReply{{breaches: breaches("Adobe")}}
	h.oracle.replies["b@x.com"] = []oracleReply{{breaches: breaches("Canva")}}
	h.deactivator.errs["1"] = serviceErr(domain.ServiceAliasProvider, domain.KindNetwork, 0)

	report, err := h.run(context.Background())
	require.NoError(t, err)
	assertInvariants(t, report)

	require.Len(t, report.Results, 2)
	first := report.Results[0]
	assert.False(t, first.Deactivated)
	assert.True(t, first.Alias.Active)
	assert.NotEmpty(t, first.Breaches)
	require.NotNil(t, first.Error)
	assert.Equal(t, domain.KindNetwork, first.Error.Kind)
	assert.Equal(t, domain.ServiceAliasProvider, first.Error.Service)

	assert.True(t, report.Results[1].Deactivated)
	assert.Equal(t, map[string]int{"1": 1, "2": 1}, h.deactivator.calls)
}

func TestRun_DryRunNeverDeactivates(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"))
	h.opts.DryRun = true
	h.deactivator.forbid = true
	h.oracle.replies["a@x.com"] = []oracleReply{{breaches: breaches("Adobe")}}

	report, err := h.run(context.Background())
	require.NoError(t, err)
	assertInvariants(t, report)

	assert.True(t, report.DryRun)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Breached())
	assert.False(t, report.Results[0].Deactivated)
	assert.True(t, report.Results[0].Alias.Active)
}

func TestRun_EmptyListing(t *testing.T) {
	h := newHarness(t)

	report, err := h.run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.NotNil(t, report.Results)
	assert.Empty(t, h.oracle.calls)
}

func TestRun_CancelledContextIsFatal(t *testing.T) {
	h := newHarness(t, alias("1", "a@x.com"), alias("2", "b@x.com"))
	ctx, cancel := context.WithCancel(context.Background())

	// cancel once the first check has returned
	oracle := &cancellingOracle{fakeOracle: h.oracle, cancel: cancel}

	report, err := New(h.source, oracle, h.deactivator, h.opts).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, 1, len(h.oracle.calls))
}

type cancellingOracle struct {
	*fakeOracle
	cancel context.CancelFunc
}

func (o *cancellingOracle) Check(ctx context.Context, address string) ([]domain.BreachRecord, error) {
	defer o.cancel()
	return o.fakeOracle.Check(ctx, address)
}
