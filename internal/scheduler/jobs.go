package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"go.uber.org/zap"
)

// listOrgs returns every org with a component registry, plus the configured
// default org.
func (s *Scheduler) listOrgs(ctx context.Context) ([]snowflake.ID, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Raw(`SELECT DISTINCT org_id FROM pricing_components`).Scan(&ids).Error; err != nil {
		return nil, err
	}
	seen := map[snowflake.ID]struct{}{}
	orgs := make([]snowflake.ID, 0, len(ids)+1)
	if s.defaultOrgID != 0 {
		seen[s.defaultOrgID] = struct{}{}
		orgs = append(orgs, s.defaultOrgID)
	}
	for _, id := range ids {
		orgID := snowflake.ID(id)
		if orgID == 0 {
			continue
		}
		if _, ok := seen[orgID]; ok {
			continue
		}
		seen[orgID] = struct{}{}
		orgs = append(orgs, orgID)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i] < orgs[j] })
	return orgs, nil
}

// forEachOrg runs fn once per org. One org failing does not stop the rest.
func (s *Scheduler) forEachOrg(ctx context.Context, job string, fn func(ctx context.Context, orgID snowflake.ID) error) error {
	run := jobRunFromContext(ctx)
	orgs, err := s.listOrgs(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.orgs.list.failed", job, 0, err)
		return err
	}

	var jobErr error
	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		orgCtx := s.withLogContext(orgcontext.WithOrgID(ctx, orgID), orgID)
		if err := fn(orgCtx, orgID); err != nil {
			jobErr = errors.Join(jobErr, fmt.Errorf("org %s: %w", orgID, err))
			s.logSchedulerError(orgCtx, run, "scheduler.org.failed", job, orgID, err)
			continue
		}
		run.AddProcessed(1)
	}
	return jobErr
}

func (s *Scheduler) CreateWindowJob(ctx context.Context) error {
	return s.forEachOrg(ctx, JobCreateWindow, func(ctx context.Context, orgID snowflake.ID) error {
		result, err := s.windows.CreateBiWeeklyWindow(ctx)
		if errors.Is(err, windowdomain.ErrCreationInProgress) {
			obsmetrics.Scheduler().IncBatchDeferred(JobCreateWindow, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			return nil
		}
		if err != nil {
			return err
		}
		fields := []zap.Field{
			zap.String("window_id", result.Window.WindowID),
			zap.Bool("created", result.Created),
		}
		if result.Publish != nil {
			fields = append(fields,
				zap.Int("published", result.Publish.Published),
				zap.Int("failed", result.Publish.Failed),
			)
		}
		if result.PublishError != "" {
			fields = append(fields, zap.String("publish_error", result.PublishError))
			s.logger(ctx).Warn("scheduler.window.publish_failed", fields...)
			return nil
		}
		s.logger(ctx).Info("scheduler.window.ensured", fields...)
		return nil
	})
}

func (s *Scheduler) ValidateWindowsJob(ctx context.Context) error {
	return s.forEachOrg(ctx, JobValidateWindows, func(ctx context.Context, orgID snowflake.ID) error {
		closed, err := s.windows.CloseExpiredWindows(ctx)
		if err != nil {
			return err
		}
		if closed > 0 {
			s.logger(ctx).Info("scheduler.windows.closed", zap.Int64("count", closed))
		}
		overdue, err := s.windows.ListPastDeadline(ctx)
		if err != nil {
			return err
		}
		for _, w := range overdue {
			s.logger(ctx).Warn("scheduler.window.past_deadline",
				zap.String("window_id", w.WindowID),
				zap.String("status", string(w.Status)),
				zap.String("approval_status", string(w.ApprovalStatus)),
			)
		}
		return nil
	})
}

func (s *Scheduler) SubmitClaimsJob(ctx context.Context) error {
	return s.forEachOrg(ctx, JobSubmitClaims, func(ctx context.Context, orgID snowflake.ID) error {
		window, err := s.windows.GetActiveWindow(ctx)
		if errors.Is(err, windowdomain.ErrWindowNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		result, err := s.claims.SubmitClaims(ctx, window.WindowID)
		if err != nil {
			return err
		}
		fields := []zap.Field{
			zap.String("window_id", result.WindowID),
			zap.Int("submitted", result.Submitted),
			zap.String("total_amount", result.TotalAmount.StringFixed(2)),
			zap.Bool("pushed", result.Pushed),
		}
		if result.Warning != "" {
			s.logger(ctx).Warn("scheduler.claims.submitted", append(fields, zap.String("warning", result.Warning))...)
			return nil
		}
		s.logger(ctx).Info("scheduler.claims.submitted", fields...)
		return nil
	})
}

func (s *Scheduler) ArchiveWindowsJob(ctx context.Context) error {
	return s.forEachOrg(ctx, JobArchiveWindows, func(ctx context.Context, orgID snowflake.ID) error {
		archived, err := s.windows.ArchiveOldWindows(ctx, 0)
		if err != nil {
			return err
		}
		obsmetrics.Scheduler().AddBatchProcessed(JobArchiveWindows, "pricing_window", int(archived))
		return nil
	})
}

func (s *Scheduler) RateSyncJob(ctx context.Context) error {
	return s.forEachOrg(ctx, JobRateSync, func(ctx context.Context, orgID snowflake.ID) error {
		result, err := s.rateSync.Sync(ctx)
		if err != nil {
			return err
		}
		if result.Run != nil {
			s.logger(ctx).Info("scheduler.rate_sync.finished",
				zap.String("status", string(result.Run.Status)),
				zap.Int("changes", len(result.Changes)),
				zap.Int("alerts", len(result.Alerts)),
			)
		}
		return nil
	})
}

func (s *Scheduler) JournalRetryJob(ctx context.Context) error {
	result, err := s.journal.RetryFailed(ctx, s.cfg.JournalRetryBatch)
	if err != nil {
		return err
	}
	jobRunFromContext(ctx).AddProcessed(result.Attempted)
	obsmetrics.Scheduler().AddBatchProcessed(JobJournalRetry, "journal_request", result.Posted)
	if result.Attempted > 0 {
		s.logger(ctx).Info("scheduler.journal.retried",
			zap.Int("attempted", result.Attempted),
			zap.Int("posted", result.Posted),
			zap.Int("failed", result.Failed),
		)
	}
	return nil
}

// HealthCheckJob pings each configured collaborator. Unhealthy collaborators
// are logged; the job itself only fails when every check fails.
func (s *Scheduler) HealthCheckJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs error
	failed := 0
	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			failed++
			errs = errors.Join(errs, fmt.Errorf("%s: %w", name, err))
			s.logSchedulerError(ctx, run, "scheduler.health.unhealthy", JobHealthCheck, 0, err, zap.String("collaborator", name))
			continue
		}
		run.AddProcessed(1)
	}
	if failed > 0 && failed == len(names) {
		return errs
	}
	return nil
}

func (s *Scheduler) DailySummaryJob(ctx context.Context) error {
	return s.forEachOrg(ctx, JobDailySummary, func(ctx context.Context, orgID snowflake.ID) error {
		claims, err := s.claims.CountByStatus(ctx)
		if err != nil {
			return err
		}
		fields := make([]zap.Field, 0, len(claims)+4)
		for status, count := range claims {
			fields = append(fields, zap.Int64("claims_"+string(status), count))
		}
		if s.settlements != nil {
			settlements, err := s.settlements.CountByStatus(ctx)
			if err != nil {
				return err
			}
			for status, count := range settlements {
				fields = append(fields, zap.Int64("settlements_"+string(status), count))
			}
		}
		if window, err := s.windows.GetActiveWindow(ctx); err == nil {
			fields = append(fields,
				zap.String("active_window", window.WindowID),
				zap.String("approval_status", string(window.ApprovalStatus)),
			)
		}
		s.logger(ctx).Info("scheduler.daily_summary", fields...)
		return nil
	})
}
