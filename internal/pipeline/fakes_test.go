package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/aliasguard/internal/domain"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	aliases []domain.Alias
	err     error
	calls   int
}

func (s *fakeSource) ListActiveAliases(ctx context.Context) ([]domain.Alias, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Alias, len(s.aliases))
	copy(out, s.aliases)
	return out, nil
}

type oracleReply struct {
	breaches []domain.BreachRecord
	err      error
}

type oracleCall struct {
	address  string
	started  time.Time
	returned time.Time
}

// fakeOracle serves queued replies per address and records call timing.
// Addresses with no queued reply are not breached.
type fakeOracle struct {
	clock   *fakeClock
	latency time.Duration
	replies map[string][]oracleReply
	calls   []oracleCall
}

func (o *fakeOracle) Check(ctx context.Context, address string) ([]domain.BreachRecord, error) {
	call := oracleCall{address: address, started: o.clock.Now()}
	o.clock.Advance(o.latency)
	call.returned = o.clock.Now()
	o.calls = append(o.calls, call)

	queue := o.replies[address]
	if len(queue) == 0 {
		return []domain.BreachRecord{}, nil
	}
	reply := queue[0]
	o.replies[address] = queue[1:]
	return reply.breaches, reply.err
}

func (o *fakeOracle) callsFor(address string) int {
	n := 0
	for _, c := range o.calls {
		if c.address == address {
			n++
		}
	}
	return n
}

type fakeDeactivator struct {
	t      *testing.T
	forbid bool
	errs   map[string]error
	calls  map[string]int
}

func newFakeDeactivator(t *testing.T) *fakeDeactivator {
	return &fakeDeactivator{t: t, errs: map[string]error{}, calls: map[string]int{}}
}

func (d *fakeDeactivator) Deactivate(ctx context.Context, alias domain.Alias) error {
	if d.forbid {
		d.t.Errorf("unexpected deactivation of alias %s", alias.ID)
	}
	if !alias.Active {
		d.t.Errorf("deactivation requested for inactive alias %s", alias.ID)
	}
	d.calls[alias.ID]++
	return d.errs[alias.ID]
}

func (d *fakeDeactivator) total() int {
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}

func serviceErr(service string, kind domain.ErrorKind, status int) error {
	return domain.NewServiceError(service, kind, status, errors.New("stub failure"))
}

func rateLimited(wait time.Duration) error {
	se := domain.NewServiceError(domain.ServiceBreachOracle, domain.KindRateLimited, 429, nil)
	se.RetryAfter = wait
	return se
}

func breaches(names ...string) []domain.BreachRecord {
	out := make([]domain.BreachRecord, 0, len(names))
	for _, n := range names {
		out = append(out, domain.BreachRecord{Name: n})
	}
	return out
}
