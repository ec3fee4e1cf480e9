package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/corebank-dev/corebatch/internal/batch"
	"github.com/corebank-dev/corebatch/internal/joblog"
	"github.com/corebank-dev/corebatch/internal/lease"
	"github.com/corebank-dev/corebatch/internal/lifecycle"
	"github.com/corebank-dev/corebatch/internal/metrics"
	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/notify"
	"github.com/corebank-dev/corebatch/internal/posting"
	"github.com/corebank-dev/corebatch/internal/store/memory"
)

const tenant = "default"

var standard = lifecycle.Thresholds{Enabled: true, InactiveAfterDays: 365, DormantAfterDays: 730, EscheatAfterDays: 1825}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.JobOutcome
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.JobOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	store     *memory.Store
	registry  *Registry
	log       *joblog.Log
	publisher *recordingPublisher
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, accounts []model.Account, policy lifecycle.Policy) *fixture {
	s := memory.New(accounts...)
	m := metrics.Nop()
	runner := batch.NewRunner(s, zaptest.NewLogger(t), m)
	runner.PageSize = 10
	f := &fixture{
		store:     s,
		log:       joblog.New(t.TempDir()),
		publisher: &recordingPublisher{},
		metrics:   m,
	}
	f.registry = NewRegistry(runner, Options{
		TenantID:  tenant,
		JobLog:    f.log,
		Publisher: f.publisher,
		Metrics:   m,
		Logger:    zaptest.NewLogger(t),
	})
	f.registry.Register(
		NewPostInterestJob(posting.NewPoster(s), decimal.RequireFromString("0.0365")),
		NewDormancyJob(lifecycle.NewService(lifecycle.NewMachine(policy), s), policy),
	)
	return f
}

func savings(n int, lastActivity time.Time) []model.Account {
	out := make([]model.Account, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Account{
			ID:               int64(i),
			TenantID:         tenant,
			OfficeID:         1,
			Status:           model.StatusActive,
			CurrencyCode:     "USD",
			Balance:          decimal.NewFromInt(100),
			LastActivityDate: lastActivity,
		})
	}
	return out
}

func TestRunJob_InterestWithOneFailure(t *testing.T) {
	asOf := model.Date(2024, 3, 1)
	f := newFixture(t, savings(25, model.Date(2024, 2, 1)), lifecycle.Policy{Default: standard})
	f.store.SetFault(func(id int64) error {
		if id == 13 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	res := f.registry.RunJobAt(context.Background(), PostInterestName, asOf)
	assert.False(t, res.Success)

	posted := 0
	for id := int64(1); id <= 25; id++ {
		posted += len(f.store.Postings(id))
	}
	assert.Equal(t, 24, posted)

	entries, err := f.log.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, joblog.OutcomeFailed, e.Outcome)
	assert.Equal(t, 25, e.Processed)
	assert.Equal(t, 1, e.Failures)
	assert.Equal(t, "2024-03-01", e.AsOfDate)
	assert.Equal(t, res.Message, e.Message)

	lines := strings.Split(res.Message, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, fmt.Sprintf("Job post-interest failed (run %s): one or more steps in the job failed", e.RunID), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "account 13: "))

	require.Len(t, f.publisher.events, 1)
	assert.False(t, f.publisher.events[0].Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(PostInterestName, metrics.OutcomeFailed)))

	f.store.SetFault(nil)
	rerun := f.registry.RunJobAt(context.Background(), PostInterestName, asOf)
	assert.True(t, rerun.Success, rerun.Message)
	posted = 0
	for id := int64(1); id <= 25; id++ {
		posted += len(f.store.Postings(id))
	}
	assert.Equal(t, 25, posted, "rerun posts only the missing account")
}

func TestRunJob_InterestSkipsClosedOffice(t *testing.T) {
	asOf := model.Date(2024, 1, 15)
	f := newFixture(t, savings(3, model.Date(2024, 1, 1)), lifecycle.Policy{Default: standard})
	f.store.PutClosure(model.ClosureRecord{TenantID: tenant, OfficeID: 1, ClosingDate: model.Date(2024, 1, 31)})

	res := f.registry.RunJobAt(context.Background(), PostInterestName, asOf)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "closure")
	assert.Equal(t, 4, strings.Count(res.Message, "\n")+1)
	assert.Empty(t, f.store.Postings(1))
}

func TestRunJob_Dormancy(t *testing.T) {
	asOf := model.Date(2024, 6, 1)
	accounts := []model.Account{
		{ID: 1, TenantID: tenant, Status: model.StatusActive, LastActivityDate: asOf.AddDate(0, 0, -30)},
		{ID: 2, TenantID: tenant, Status: model.StatusActive, LastActivityDate: asOf.AddDate(0, 0, -400)},
		{ID: 3, TenantID: tenant, Status: model.StatusActive, LastActivityDate: asOf.AddDate(0, 0, -800)},
		{ID: 4, TenantID: tenant, Status: model.StatusActive, LastActivityDate: asOf.AddDate(0, 0, -2000)},
		{ID: 5, TenantID: tenant, Status: model.StatusClosed, LastActivityDate: asOf.AddDate(0, 0, -2000)},
	}
	f := newFixture(t, accounts, lifecycle.Policy{Default: standard})

	res := f.registry.RunJobAt(context.Background(), UpdateDormancyName, asOf)
	require.True(t, res.Success, res.Message)

	want := map[int64]model.SubStatus{
		1: model.SubStatusNone,
		2: model.SubStatusInactive,
		3: model.SubStatusDormant,
		4: model.SubStatusEscheat,
		5: model.SubStatusNone,
	}
	for id, sub := range want {
		a, err := f.store.GetAccount(context.Background(), tenant, id)
		require.NoError(t, err)
		assert.Equal(t, sub, a.SubStatus, "account %d", id)
	}

	entries, err := f.log.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Processed, "only idle active accounts are paged")

	again := f.registry.RunJobAt(context.Background(), UpdateDormancyName, asOf)
	require.True(t, again.Success)
	assert.Len(t, f.store.Transitions(), 6, "rerun with the same date writes nothing")
}

func TestRunJob_DormancyDisabled(t *testing.T) {
	f := newFixture(t, savings(2, model.Date(2010, 1, 1)), lifecycle.Policy{})

	res := f.registry.RunJob(context.Background(), UpdateDormancyName)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "skipped")
	assert.Empty(t, f.store.Transitions())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(UpdateDormancyName, metrics.OutcomeSkipped)))
	assert.Equal(t, 0, testutil.CollectAndCount(f.metrics.RunDuration))

	entries, err := f.log.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, joblog.OutcomeSkipped, entries[0].Outcome)
}

func TestRunJob_Unknown(t *testing.T) {
	f := newFixture(t, nil, lifecycle.Policy{Default: standard})
	res := f.registry.RunJob(context.Background(), "close-books")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unknown job")
	assert.Equal(t, []string{PostInterestName, UpdateDormancyName}, f.registry.Names())
}

func TestRunJob_LeaseHeld(t *testing.T) {
	f := newFixture(t, savings(2, model.Date(2024, 2, 1)), lifecycle.Policy{Default: standard})
	locker := lease.NewLocal()
	f.registry.opts.Lease = locker
	held, err := locker.Acquire(context.Background(), tenant+":"+PostInterestName, time.Minute)
	require.NoError(t, err)

	res := f.registry.RunJobAt(context.Background(), PostInterestName, model.Date(2024, 3, 1))
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "already running")
	assert.Empty(t, f.store.Postings(1))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(PostInterestName, metrics.OutcomeSkipped)))

	require.NoError(t, held.Release(context.Background()))
	res = f.registry.RunJobAt(context.Background(), PostInterestName, model.Date(2024, 3, 1))
	assert.True(t, res.Success, res.Message)
	assert.Len(t, f.store.Postings(1), 1)
}

// failingSource reads pages from the store until failAt, then fails every read.
type failingSource struct {
	*memory.Store
	calls  int
	failAt int
}

func (s *failingSource) Page(ctx context.Context, req model.PageRequest) (model.Page, error) {
	s.calls++
	if s.calls >= s.failAt {
		return model.Page{}, model.StoreError("reading account page", errors.New("connection refused"))
	}
	return s.Store.Page(ctx, req)
}

func TestRunJob_FatalErrorKeepsItemFailures(t *testing.T) {
	s := memory.New(savings(15, model.Date(2024, 2, 1))...)
	s.SetFault(func(id int64) error {
		if id == 2 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	runner := batch.NewRunner(&failingSource{Store: s, failAt: 2}, zaptest.NewLogger(t), nil)
	runner.PageSize = 10
	log := joblog.New(t.TempDir())
	publisher := &recordingPublisher{}
	r := NewRegistry(runner, Options{TenantID: tenant, JobLog: log, Publisher: publisher, Logger: zaptest.NewLogger(t)})
	r.Register(NewPostInterestJob(posting.NewPoster(s), decimal.RequireFromString("0.0365")))

	res := r.RunJobAt(context.Background(), PostInterestName, model.Date(2024, 3, 1))
	assert.False(t, res.Success)

	lines := strings.Split(res.Message, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "reading page after account 10")
	assert.Contains(t, lines[0], "connection refused")
	assert.Contains(t, lines[1], "one or more steps in the job failed")
	assert.True(t, strings.HasPrefix(lines[2], "account 2: "), lines[2])

	entries, err := log.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.Message, entries[0].Message)
	assert.Equal(t, 1, entries[0].Failures)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, res.Message, publisher.events[0].Message)
}

type countingLocker struct {
	mu       sync.Mutex
	renewals int
	released bool
}

func (l *countingLocker) Acquire(context.Context, string, time.Duration) (lease.Lease, error) {
	return l, nil
}

func (l *countingLocker) Renew(context.Context, time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.renewals++
	return nil
}

func (l *countingLocker) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

func (l *countingLocker) state() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renewals, l.released
}

type slowJob struct{ delay time.Duration }

func (slowJob) Name() string                         { return "slow" }
func (slowJob) Filter(model.RunContext) model.Filter { return model.Filter{TenantID: tenant} }
func (j slowJob) Process(context.Context, model.RunContext, model.Account) error {
	time.Sleep(j.delay)
	return nil
}

func TestRunJob_RenewsLeaseWhileRunning(t *testing.T) {
	locker := &countingLocker{}
	r := NewRegistry(batch.NewRunner(memory.New(savings(1, model.Date(2024, 2, 1))...), zaptest.NewLogger(t), nil), Options{
		TenantID: tenant,
		Lease:    locker,
		LeaseTTL: 30 * time.Millisecond,
		Logger:   zaptest.NewLogger(t),
	})
	r.Register(slowJob{delay: 150 * time.Millisecond})

	res := r.RunJobAt(context.Background(), "slow", model.Date(2024, 3, 1))
	require.True(t, res.Success, res.Message)

	renewals, released := locker.state()
	assert.GreaterOrEqual(t, renewals, 2)
	assert.True(t, released)

	time.Sleep(50 * time.Millisecond)
	after, _ := locker.state()
	assert.Equal(t, renewals, after, "renewal stops once the run returns")
}

func TestRunJob_PublisherFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, savings(1, model.Date(2024, 2, 1)), lifecycle.Policy{Default: standard})
	f.publisher.err = errors.New("broker down")

	res := f.registry.RunJobAt(context.Background(), PostInterestName, model.Date(2024, 3, 1))
	assert.True(t, res.Success, res.Message)
}

func TestAsOfDate_TenantTimeZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	r := NewRegistry(batch.NewRunner(memory.New(), nil, nil), Options{Location: tokyo})
	r.now = func() time.Time { return time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC) }

	assert.Equal(t, model.Date(2024, 3, 1), r.AsOfDate())
}
