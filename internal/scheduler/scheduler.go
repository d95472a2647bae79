package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/petroprice/internal/clock"
	"github.com/smallbiznis/petroprice/internal/config"
	dealerdomain "github.com/smallbiznis/petroprice/internal/dealer/domain"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	"github.com/smallbiznis/petroprice/internal/lock"
	"github.com/smallbiznis/petroprice/internal/metricspush"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"github.com/smallbiznis/petroprice/internal/providers/accounting"
	dealerclient "github.com/smallbiznis/petroprice/internal/providers/dealer"
	"github.com/smallbiznis/petroprice/internal/providers/npa"
	"github.com/smallbiznis/petroprice/internal/providers/station"
	"github.com/smallbiznis/petroprice/internal/providers/transaction"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobCreateWindow    = "create_window"
	JobValidateWindows = "validate_windows"
	JobSubmitClaims    = "submit_claims"
	JobArchiveWindows  = "archive_windows"
	JobRateSync        = "rate_sync"
	JobJournalRetry    = "journal_retry"
	JobHealthCheck     = "health_check"
	JobDailySummary    = "daily_summary"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_job")
	ErrJobLocked     = errors.New("job_locked")
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Windows  windowdomain.Service
	Claims   uppfdomain.Service
	RateSync uppfdomain.RateSync
	Journal  journaldomain.Service
	Config   Config `optional:"true"`

	Settlements  dealerdomain.Service `optional:"true"`
	Locker       *lock.Locker         `optional:"true"`
	Pusher       metricspush.Pusher   `optional:"true"`
	Accounting   accounting.Client    `optional:"true"`
	Stations     station.Client       `optional:"true"`
	Dealers      dealerclient.Client  `optional:"true"`
	Transactions transaction.Client   `optional:"true"`
	NPA          npa.Client           `optional:"true"`
}

// HealthChecker is implemented by every collaborator client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	defaultOrgID snowflake.ID
	genID        *snowflake.Node
	clock        clock.Clock
	windows      windowdomain.Service
	claims       uppfdomain.Service
	rateSync     uppfdomain.RateSync
	journal      journaldomain.Service
	settlements  dealerdomain.Service
	locker       *lock.Locker
	pusher       metricspush.Pusher
	gatherer     prometheus.Gatherer
	checks       map[string]HealthChecker

	mu      sync.Mutex
	lastRun map[string]time.Time
}

type job struct {
	name    string
	every   time.Duration
	timeout time.Duration
	run     func(ctx context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Windows == nil || p.Claims == nil || p.RateSync == nil || p.Journal == nil {
		return nil, ErrInvalidConfig
	}
	checks := map[string]HealthChecker{}
	for name, c := range map[string]HealthChecker{
		"accounting":  p.Accounting,
		"station":     p.Stations,
		"dealer":      p.Dealers,
		"transaction": p.Transactions,
		"npa":         p.NPA,
	} {
		if c != nil {
			checks[name] = c
		}
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		defaultOrgID: snowflake.ID(p.Cfg.DefaultOrgID),
		genID:        p.GenID,
		clock:        p.Clock,
		windows:      p.Windows,
		claims:       p.Claims,
		rateSync:     p.RateSync,
		journal:      p.Journal,
		settlements:  p.Settlements,
		locker:       p.Locker,
		pusher:       p.Pusher,
		gatherer:     prometheus.DefaultGatherer,
		checks:       checks,
		lastRun:      map[string]time.Time{},
	}, nil
}

func (s *Scheduler) jobs() []job {
	timeout := s.cfg.JobTimeout
	return []job{
		{JobCreateWindow, s.cfg.every(JobCreateWindow, time.Hour), timeout, s.CreateWindowJob},
		{JobValidateWindows, s.cfg.every(JobValidateWindows, 24*time.Hour), timeout, s.ValidateWindowsJob},
		{JobSubmitClaims, s.cfg.every(JobSubmitClaims, 7*24*time.Hour), timeout, s.SubmitClaimsJob},
		{JobArchiveWindows, s.cfg.every(JobArchiveWindows, 30*24*time.Hour), timeout, s.ArchiveWindowsJob},
		{JobRateSync, s.cfg.every(JobRateSync, 24*time.Hour), timeout, s.RateSyncJob},
		{JobJournalRetry, s.cfg.every(JobJournalRetry, 15*time.Minute), timeout, s.JournalRetryJob},
		{JobHealthCheck, s.cfg.every(JobHealthCheck, 5*time.Minute), 30 * time.Second, s.HealthCheckJob},
		{JobDailySummary, s.cfg.every(JobDailySummary, 24*time.Hour), timeout, s.DailySummaryJob},
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		schedMetrics.MarkJobSuccess(name, s.clock.Now())
		return nil
	}

	// deadline is a soft timeout; the next due tick picks the work up again
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job whose cadence is due.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	now := s.clock.Now()

	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) {
			continue
		}
		if !s.isDue(j.name, j.every, now) {
			continue
		}
		runErr := s.runLocked(parent, j)
		if errors.Is(runErr, ErrJobLocked) {
			obsmetrics.Scheduler().IncBatchDeferred(j.name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			continue
		}
		s.markRun(j.name, now)
		err = errors.Join(err, runErr)
	}

	s.pushMetrics(parent)
	return err
}

// RunJob runs a single job immediately, ignoring its cadence.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, j := range s.jobs() {
		if j.name != name {
			continue
		}
		err := s.runLocked(ctx, j)
		if err == nil {
			s.markRun(j.name, s.clock.Now())
		}
		s.pushMetrics(ctx)
		return err
	}
	return ErrUnknownJob
}

// JobNames lists the registered jobs in run order.
func (s *Scheduler) JobNames() []string {
	jobs := s.jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.name)
	}
	return names
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runLocked holds the job's redis lock so replicas and manual triggers do
// not overlap. Without redis the job runs unguarded.
func (s *Scheduler) runLocked(ctx context.Context, j job) error {
	var runErr error
	acquired, err := s.locker.WithLock(ctx, "scheduler:job:"+j.name, j.timeout+time.Minute, func(ctx context.Context) error {
		runErr = s.runJob(ctx, j.name, 0, j.timeout, j.run)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: lock: %w", j.name, err)
	}
	if !acquired {
		s.log.Info("job skipped, lock held elsewhere", zap.String("job", j.name))
		return ErrJobLocked
	}
	return runErr
}

func (s *Scheduler) isDue(name string, every time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRun[name]
	if !ok {
		return true
	}
	return !now.Before(last.Add(every))
}

func (s *Scheduler) markRun(name string, at time.Time) {
	s.mu.Lock()
	s.lastRun[name] = at
	s.mu.Unlock()
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list enables everything
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) pushMetrics(ctx context.Context) {
	if s.pusher == nil {
		return
	}
	if err := s.pusher.Push(ctx, s.gatherer); err != nil {
		s.log.Warn("metrics push failed", zap.Error(err))
	}
}
