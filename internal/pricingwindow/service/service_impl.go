package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/lock"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"github.com/smallbiznis/petroprice/internal/providers/station"
	"github.com/smallbiznis/petroprice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	createLockTTL  = 5 * time.Minute
	publishWorkers = 8
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       windowdomain.Repository
	Calculator pricebuildupdomain.Service
	Stations   station.Client
	Policy     *cache.PolicyReader `optional:"true"`
	Locker     *lock.Locker        `optional:"true"`
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	loc        *time.Location
	repo       windowdomain.Repository
	calculator pricebuildupdomain.Service
	stations   station.Client
	policy     *cache.PolicyReader
	locker     *lock.Locker
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) windowdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("pricingwindow.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		loc:        p.Cfg.Location(),
		repo:       p.Repo,
		calculator: p.Calculator,
		stations:   p.Stations,
		policy:     p.Policy,
		locker:     p.Locker,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateWindow(ctx context.Context, req windowdomain.CreateWindowRequest) (*windowdomain.PricingWindow, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, windowdomain.ErrInvalidOrganization
	}
	if req.WindowNumber < 0 || req.Year <= 0 {
		return nil, windowdomain.ErrInvalidWindowNumber
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() || !req.StartDate.Before(req.EndDate) {
		return nil, windowdomain.ErrInvalidDateRange
	}
	if req.SubmissionDeadline != nil && req.SubmissionDeadline.After(req.EndDate) {
		return nil, windowdomain.ErrInvalidDeadline
	}

	now := s.clock.Now().UTC()
	window := &windowdomain.PricingWindow{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		WindowID:           windowdomain.FormatWindowID(req.Year, req.WindowNumber),
		WindowNumber:       req.WindowNumber,
		Year:               req.Year,
		StartDate:          req.StartDate.UTC(),
		EndDate:            req.EndDate.UTC(),
		SubmissionDeadline: utcPtr(req.SubmissionDeadline),
		Status:             windowdomain.StatusDraft,
		ApprovalStatus:     windowdomain.ApprovalPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByNumber(ctx, tx, orgID, req.Year, req.WindowNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return windowdomain.ErrWindowExists
		}
		candidates, err := s.repo.FindOverlapping(ctx, tx, orgID, window.StartDate, window.EndDate)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			if windowdomain.Overlaps(c.StartDate, c.EndDate, window.StartDate, window.EndDate) {
				return fmt.Errorf("%w: %s", windowdomain.ErrWindowOverlap, c.WindowID)
			}
		}
		if err := s.repo.Insert(ctx, tx, window); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return windowdomain.ErrWindowExists
			}
			return err
		}
		return s.audit(ctx, tx, orgID, "pricing_window.created", window.WindowID, map[string]any{
			"start_date": window.StartDate.Format(time.RFC3339),
			"end_date":   window.EndDate.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("pricing window created",
		zap.String("org_id", orgID.String()),
		zap.String("window_id", window.WindowID),
	)
	return window, nil
}

// CreateBiWeeklyWindow opens the window starting today, closing whichever
// window is active, and publishes its prices. Re-running inside the same
// 14-day block returns the existing window untouched. An earlier window that
// still runs into today is cut short rather than left overlapping.
func (s *Service) CreateBiWeeklyWindow(ctx context.Context) (*windowdomain.BiWeeklyResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, windowdomain.ErrInvalidOrganization
	}
	policy := s.policy.Policy(orgID.String())
	now := s.clock.Now()
	period := windowdomain.BiWeeklyPeriod(now, s.loc, policy.SubmissionLeadDays, policy.SubmissionCutoffHour)
	windowID := period.WindowID()

	var result windowdomain.BiWeeklyResult
	key := fmt.Sprintf("window:create:%s:%s", orgID.String(), windowID)
	acquired, err := s.locker.WithLock(ctx, key, createLockTTL, func(ctx context.Context) error {
		existing, err := s.repo.FindByWindowID(ctx, s.db, orgID, windowID)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Window = existing
			return nil
		}

		created, err := s.openWindow(ctx, orgID, period)
		if err != nil {
			return err
		}
		if created == nil {
			existing, err := s.repo.FindByWindowID(ctx, s.db, orgID, windowID)
			if err != nil {
				return err
			}
			result.Window = existing
			return nil
		}
		result.Window = created
		result.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, windowdomain.ErrCreationInProgress
	}
	if !result.Created {
		s.log.Info("bi-weekly window already exists", zap.String("window_id", windowID))
		return &result, nil
	}

	publish, err := s.CalculateAndPublishPrices(ctx, windowID, nil)
	if err != nil {
		s.log.Warn("window created but price publication failed",
			zap.String("window_id", windowID),
			zap.Error(err),
		)
		result.PublishError = err.Error()
		return &result, nil
	}
	result.Publish = publish
	if refreshed, err := s.repo.FindByWindowID(ctx, s.db, orgID, windowID); err == nil && refreshed != nil {
		result.Window = refreshed
	}
	return &result, nil
}

// openWindow closes the active window, clamps overlapping predecessors and
// inserts the new one in a single transaction. It returns nil when another writer inserted the window first.
func (s *Service) openWindow(ctx context.Context, orgID snowflake.ID, period windowdomain.Period) (*windowdomain.PricingWindow, error) {
	now := s.clock.Now().UTC()
	deadline := period.SubmissionDeadline
	window := &windowdomain.PricingWindow{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		WindowID:           period.WindowID(),
		WindowNumber:       period.WindowNumber,
		Year:               period.Year,
		StartDate:          period.StartDate,
		EndDate:            period.EndDate,
		SubmissionDeadline: &deadline,
		Status:             windowdomain.StatusDraft,
		ApprovalStatus:     windowdomain.ApprovalPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	duplicate := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.repo.FindActive(ctx, tx, orgID)
		if err != nil {
			return err
		}
		clamped, err := s.clampOverlapping(ctx, tx, orgID, window, now)
		if err != nil {
			return err
		}
		if active != nil && !clamped[active.WindowID] {
			if _, err := s.repo.UpdateStatus(ctx, tx, orgID, active.WindowID, windowdomain.StatusActive, windowdomain.StatusClosed, now); err != nil {
				return err
			}
		}
		if err := s.repo.Insert(ctx, tx, window); err != nil {
			duplicate = db.IsDuplicateKeyErr(err)
			return err
		}
		metadata := map[string]any{"scheduled": true}
		if active != nil {
			metadata["closed_window_id"] = active.WindowID
		}
		if len(clamped) > 0 {
			ids := make([]string, 0, len(clamped))
			for id := range clamped {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			metadata["clamped_window_ids"] = ids
		}
		return s.audit(ctx, tx, orgID, "pricing_window.created", window.WindowID, metadata)
	})
	if duplicate {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("bi-weekly window opened",
		zap.String("org_id", orgID.String()),
		zap.String("window_id", window.WindowID),
		zap.Time("submission_deadline", deadline),
	)
	return window, nil
}

// clampOverlapping makes room for a scheduled window. Earlier windows that
// run into it end the day before it starts, closing the active one; any
// other overlap is rejected.
func (s *Service) clampOverlapping(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, window *windowdomain.PricingWindow, now time.Time) (map[string]bool, error) {
	candidates, err := s.repo.FindOverlapping(ctx, tx, orgID, window.StartDate, window.EndDate)
	if err != nil {
		return nil, err
	}
	newEnd := window.StartDate.AddDate(0, 0, -1)
	clamped := map[string]bool{}
	for _, c := range candidates {
		if !windowdomain.Overlaps(c.StartDate, c.EndDate, window.StartDate, window.EndDate) {
			continue
		}
		if c.Status == windowdomain.StatusDraft || newEnd.Before(c.StartDate) {
			return nil, fmt.Errorf("%w: %s", windowdomain.ErrWindowOverlap, c.WindowID)
		}
		if err := s.repo.ClampAndClose(ctx, tx, orgID, c.WindowID, newEnd, now); err != nil {
			return nil, err
		}
		clamped[c.WindowID] = true
		s.log.Info("superseded window clamped",
			zap.String("window_id", c.WindowID),
			zap.Time("end_date", newEnd),
			zap.String("next_window_id", window.WindowID),
		)
	}
	return clamped, nil
}

func (s *Service) TransitionWindow(ctx context.Context, currentID, nextID string) ([]windowdomain.PriceChange, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, windowdomain.ErrInvalidOrganization
	}
	currentID = strings.TrimSpace(currentID)
	nextID = strings.TrimSpace(nextID)

	now := s.clock.Now().UTC()
	var previous, current []windowdomain.StationPrice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.repo.FindByWindowID(ctx, tx, orgID, currentID)
		if err != nil {
			return err
		}
		next, err := s.repo.FindByWindowID(ctx, tx, orgID, nextID)
		if err != nil {
			return err
		}
		if cur == nil || next == nil {
			return windowdomain.ErrWindowNotFound
		}
		if !windowdomain.CanTransition(cur.Status, windowdomain.StatusClosed) ||
			!windowdomain.CanTransition(next.Status, windowdomain.StatusActive) {
			return windowdomain.ErrInvalidTransition
		}

		closed, err := s.repo.UpdateStatus(ctx, tx, orgID, currentID, windowdomain.StatusActive, windowdomain.StatusClosed, now)
		if err != nil {
			return err
		}
		activated, err := s.repo.UpdateStatus(ctx, tx, orgID, nextID, windowdomain.StatusDraft, windowdomain.StatusActive, now)
		if err != nil {
			return err
		}
		if !closed || !activated {
			return windowdomain.ErrInvalidTransition
		}

		if previous, err = s.repo.ListStationPrices(ctx, tx, orgID, currentID); err != nil {
			return err
		}
		if current, err = s.repo.ListStationPrices(ctx, tx, orgID, nextID); err != nil {
			return err
		}
		return s.audit(ctx, tx, orgID, "pricing_window.transitioned", nextID, map[string]any{
			"closed_window_id": currentID,
		})
	})
	if err != nil {
		return nil, err
	}

	changes := priceChanges(previous, current)
	s.log.Info("pricing window transitioned",
		zap.String("closed_window_id", currentID),
		zap.String("active_window_id", nextID),
		zap.Int("price_changes", len(changes)),
	)
	return changes, nil
}

// priceChanges pairs station prices by (station, product). Pairs missing
// from either window are not reported.
func priceChanges(previous, current []windowdomain.StationPrice) []windowdomain.PriceChange {
	index := make(map[string]decimal.Decimal, len(previous))
	for _, p := range previous {
		index[p.StationID+"|"+p.ProductCode] = p.ExPumpPrice
	}
	hundred := decimal.NewFromInt(100)
	changes := make([]windowdomain.PriceChange, 0, len(current))
	for _, c := range current {
		prev, ok := index[c.StationID+"|"+c.ProductCode]
		if !ok {
			continue
		}
		change := windowdomain.PriceChange{
			ProductCode: c.ProductCode,
			StationID:   c.StationID,
			Previous:    prev,
			Current:     c.ExPumpPrice,
			ChangePct:   decimal.Zero,
		}
		if !prev.IsZero() {
			change.ChangePct = c.ExPumpPrice.Sub(prev).Div(prev).Mul(hundred).Round(2)
		}
		changes = append(changes, change)
	}
	return changes
}

func (s *Service) ArchiveOldWindows(ctx context.Context, olderThanDays int) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, windowdomain.ErrInvalidOrganization
	}
	if olderThanDays <= 0 {
		olderThanDays = s.policy.Policy(orgID.String()).WindowRetentionDays
	}
	now := s.clock.Now().UTC()
	cutoff := now.AddDate(0, 0, -olderThanDays)

	count, err := s.repo.ArchiveBefore(ctx, s.db, orgID, cutoff, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("pricing windows archived",
			zap.String("org_id", orgID.String()),
			zap.Int64("count", count),
			zap.Time("cutoff", cutoff),
		)
	}
	return count, nil
}

func (s *Service) CloseExpiredWindows(ctx context.Context) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, windowdomain.ErrInvalidOrganization
	}
	now := s.clock.Now().UTC()
	local := now.In(s.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc).UTC()

	count, err := s.repo.CloseExpired(ctx, s.db, orgID, today, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("expired pricing windows closed", zap.Int64("count", count))
	}
	return count, nil
}

func (s *Service) ListPastDeadline(ctx context.Context) ([]windowdomain.PricingWindow, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, windowdomain.ErrInvalidOrganization
	}
	return s.repo.ListPastDeadline(ctx, s.db, orgID, s.clock.Now().UTC())
}

func (s *Service) GetWindow(ctx context.Context, windowID string) (*windowdomain.PricingWindow, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, windowdomain.ErrInvalidOrganization
	}
	window, err := s.repo.FindByWindowID(ctx, s.db, orgID, strings.TrimSpace(windowID))
	if err != nil {
		return nil, err
	}
	if window == nil {
		return nil, windowdomain.ErrWindowNotFound
	}
	return window, nil
}

func (s *Service) GetActiveWindow(ctx context.Context) (*windowdomain.PricingWindow, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, windowdomain.ErrInvalidOrganization
	}
	window, err := s.repo.FindActive(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if window == nil {
		return nil, windowdomain.ErrWindowNotFound
	}
	return window, nil
}

func (s *Service) ListWindows(ctx context.Context, req windowdomain.ListWindowsRequest) ([]windowdomain.PricingWindow, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, windowdomain.ErrInvalidOrganization
	}
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, s.db, windowdomain.ListFilter{
		OrgID:  orgID,
		Status: windowdomain.Status(strings.ToUpper(strings.TrimSpace(req.Status))),
		Year:   req.Year,
		Limit:  limit,
	})
}

func (s *Service) ListStationPrices(ctx context.Context, windowID string) ([]windowdomain.StationPrice, error) {
	window, err := s.GetWindow(ctx, windowID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListStationPrices(ctx, s.db, window.OrgID, window.WindowID)
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, action, windowID string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		OrgID:      orgID,
		Action:     action,
		TargetType: "pricing_window",
		TargetID:   windowID,
		Metadata:   metadata,
	})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
