package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/petroprice/internal/clock"
	"github.com/smallbiznis/petroprice/internal/config"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type calls struct {
	mu     sync.Mutex
	counts map[string]int
	orgs   map[string][]snowflake.ID
}

func newCalls() *calls {
	return &calls{counts: map[string]int{}, orgs: map[string][]snowflake.ID{}}
}

func (c *calls) record(ctx context.Context, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok {
		c.orgs[name] = append(c.orgs[name], orgID)
	}
}

func (c *calls) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

type stubWindows struct {
	windowdomain.Service
	calls    *calls
	noActive bool
}

func (s *stubWindows) CreateBiWeeklyWindow(ctx context.Context) (*windowdomain.BiWeeklyResult, error) {
	s.calls.record(ctx, "create")
	return &windowdomain.BiWeeklyResult{Window: &windowdomain.PricingWindow{WindowID: "2026-W08"}, Created: true}, nil
}

func (s *stubWindows) CloseExpiredWindows(ctx context.Context) (int64, error) {
	s.calls.record(ctx, "close_expired")
	return 1, nil
}

func (s *stubWindows) ListPastDeadline(ctx context.Context) ([]windowdomain.PricingWindow, error) {
	s.calls.record(ctx, "past_deadline")
	return []windowdomain.PricingWindow{{WindowID: "2026-W06", Status: windowdomain.StatusDraft}}, nil
}

func (s *stubWindows) ArchiveOldWindows(ctx context.Context, olderThanDays int) (int64, error) {
	s.calls.record(ctx, "archive")
	return 2, nil
}

func (s *stubWindows) GetActiveWindow(ctx context.Context) (*windowdomain.PricingWindow, error) {
	if s.noActive {
		return nil, windowdomain.ErrWindowNotFound
	}
	return &windowdomain.PricingWindow{WindowID: "2026-W08", Status: windowdomain.StatusActive}, nil
}

type stubClaims struct {
	uppfdomain.Service
	calls     *calls
	submitted []string
}

func (s *stubClaims) SubmitClaims(ctx context.Context, windowID string) (*uppfdomain.SubmitResult, error) {
	s.calls.record(ctx, "submit")
	s.submitted = append(s.submitted, windowID)
	return &uppfdomain.SubmitResult{WindowID: windowID, Submitted: 1, TotalAmount: decimal.NewFromInt(900), Pushed: true}, nil
}

func (s *stubClaims) CountByStatus(ctx context.Context) (map[uppfdomain.ClaimStatus]int64, error) {
	s.calls.record(ctx, "count_claims")
	return map[uppfdomain.ClaimStatus]int64{uppfdomain.ClaimStatus("DRAFT"): 3}, nil
}

type stubRateSync struct {
	calls   *calls
	failOrg snowflake.ID
}

func (s *stubRateSync) Sync(ctx context.Context) (*uppfdomain.SyncResult, error) {
	s.calls.record(ctx, "sync")
	if orgID, _ := orgcontext.OrgIDFromContext(ctx); orgID == s.failOrg {
		return nil, errors.New("boom")
	}
	return &uppfdomain.SyncResult{Run: &uppfdomain.RateSyncRun{Status: uppfdomain.SyncStatus("NO_CHANGE")}}, nil
}

type stubJournal struct {
	journaldomain.Service
	calls *calls
	limit int
}

func (s *stubJournal) RetryFailed(ctx context.Context, limit int) (journaldomain.RetryResult, error) {
	s.calls.record(ctx, "retry")
	s.limit = limit
	return journaldomain.RetryResult{Attempted: 2, Posted: 1, Failed: 1}, nil
}

type stubCheck struct{ err error }

func (c stubCheck) HealthCheck(context.Context) error { return c.err }

type recordingPusher struct {
	pushes int
}

func (p *recordingPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	p.pushes++
	return nil
}

type schedFixture struct {
	sched    *Scheduler
	clk      *clock.FakeClock
	calls    *calls
	windows  *stubWindows
	claims   *stubClaims
	rateSync *stubRateSync
	journal  *stubJournal
	pusher   *recordingPusher
}

func newSchedFixture(t *testing.T, cfg Config, orgs ...int64) *schedFixture {
	t.Helper()
	obsmetrics.ResetSchedulerMetricsForTest()
	restore := swapPrometheusRegistry(prometheus.NewRegistry())
	t.Cleanup(restore)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Exec(`CREATE TABLE pricing_components (id INTEGER PRIMARY KEY, org_id INTEGER NOT NULL)`).Error)
	for i, orgID := range orgs {
		require.NoError(t, db.Exec(`INSERT INTO pricing_components (id, org_id) VALUES (?, ?)`, i+1, orgID).Error)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	c := newCalls()
	f := &schedFixture{
		clk:      clock.NewFakeClock(time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC)),
		calls:    c,
		windows:  &stubWindows{calls: c},
		claims:   &stubClaims{calls: c},
		rateSync: &stubRateSync{calls: c},
		journal:  &stubJournal{calls: c},
		pusher:   &recordingPusher{},
	}
	sched, err := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    f.clk,
		Cfg:      config.Config{},
		Windows:  f.windows,
		Claims:   f.claims,
		RateSync: f.rateSync,
		Journal:  f.journal,
		Config:   cfg,
		Pusher:   f.pusher,
	})
	require.NoError(t, err)
	sched.checks = map[string]HealthChecker{"accounting": stubCheck{}}
	f.sched = sched
	return f
}

func TestNewRejectsMissingServices(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceHonoursCadence(t *testing.T) {
	f := newSchedFixture(t, Config{}, 100)
	ctx := context.Background()

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 1, f.calls.count("create"))
	assert.Equal(t, 1, f.calls.count("close_expired"))
	assert.Equal(t, 1, f.calls.count("submit"))
	assert.Equal(t, 1, f.calls.count("archive"))
	assert.Equal(t, 1, f.calls.count("sync"))
	assert.Equal(t, 1, f.calls.count("retry"))
	assert.Equal(t, 1, f.calls.count("count_claims"))
	assert.Equal(t, 100, f.journal.limit)
	assert.Equal(t, 1, f.pusher.pushes)

	// nothing is due a minute later
	f.clk.Advance(time.Minute)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 1, f.calls.count("create"))
	assert.Equal(t, 1, f.calls.count("retry"))

	f.clk.Advance(time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 2, f.calls.count("create"))
	assert.Equal(t, 2, f.calls.count("retry"))
	assert.Equal(t, 1, f.calls.count("sync"))
	assert.Equal(t, 1, f.calls.count("submit"))

	f.clk.Advance(24 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, 2, f.calls.count("sync"))
	assert.Equal(t, 2, f.calls.count("close_expired"))
	assert.Equal(t, 1, f.calls.count("submit"))
	assert.Equal(t, 1, f.calls.count("archive"))
	assert.Equal(t, 4, f.pusher.pushes)
}

func TestRunOnceVisitsEveryOrgAndDefault(t *testing.T) {
	f := newSchedFixture(t, Config{EnabledJobs: []string{JobRateSync}}, 300, 200, 300)
	f.sched.defaultOrgID = 100

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, []snowflake.ID{100, 200, 300}, f.calls.orgs["sync"])
	assert.Zero(t, f.calls.count("create"))
}

func TestOneFailingOrgDoesNotStopTheRest(t *testing.T) {
	f := newSchedFixture(t, Config{EnabledJobs: []string{JobRateSync}}, 100, 200, 300)
	f.rateSync.failOrg = 200

	err := f.sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_sync")
	assert.Contains(t, err.Error(), "org 200")
	assert.Equal(t, []snowflake.ID{100, 200, 300}, f.calls.orgs["sync"])
}

func TestRunJobIgnoresCadence(t *testing.T) {
	f := newSchedFixture(t, Config{}, 100)
	ctx := context.Background()

	require.NoError(t, f.sched.RunJob(ctx, JobSubmitClaims))
	require.NoError(t, f.sched.RunJob(ctx, " SUBMIT_CLAIMS "))
	assert.Equal(t, []string{"2026-W08", "2026-W08"}, f.claims.submitted)

	assert.ErrorIs(t, f.sched.RunJob(ctx, "close_cycles"), ErrUnknownJob)
}

func TestSubmitClaimsSkipsOrgWithoutActiveWindow(t *testing.T) {
	f := newSchedFixture(t, Config{}, 100)
	f.windows.noActive = true

	require.NoError(t, f.sched.RunJob(context.Background(), JobSubmitClaims))
	assert.Zero(t, f.calls.count("submit"))
}

func TestHealthCheckFailsOnlyWhenEveryCollaboratorIsDown(t *testing.T) {
	f := newSchedFixture(t, Config{})
	ctx := context.Background()

	f.sched.checks = map[string]HealthChecker{
		"accounting": stubCheck{},
		"station":    stubCheck{err: errors.New("connection refused")},
	}
	require.NoError(t, f.sched.RunJob(ctx, JobHealthCheck))

	f.sched.checks = map[string]HealthChecker{
		"station": stubCheck{err: errors.New("connection refused")},
		"npa":     stubCheck{err: errors.New("timeout")},
	}
	err := f.sched.RunJob(ctx, JobHealthCheck)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "npa")
	assert.Contains(t, err.Error(), "station")
}

func TestJobNamesInRunOrder(t *testing.T) {
	f := newSchedFixture(t, Config{})
	assert.Equal(t, []string{
		JobCreateWindow,
		JobValidateWindows,
		JobSubmitClaims,
		JobArchiveWindows,
		JobRateSync,
		JobJournalRetry,
		JobHealthCheck,
		JobDailySummary,
	}, f.sched.JobNames())
}
