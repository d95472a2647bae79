package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/config"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	"github.com/smallbiznis/petroprice/internal/providers/npa"
	"github.com/smallbiznis/petroprice/internal/providers/slack"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RateSyncParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       uppfdomain.Repository
	Components componentdomain.Service
	NPA        npa.Client          `optional:"true"`
	Slack      slack.Provider      `optional:"true"`
	Policy     *cache.PolicyReader `optional:"true"`
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type RateSyncService struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         uppfdomain.Repository
	components   componentdomain.Service
	npa          npa.Client
	slack        slack.Provider
	alertChannel string
	policy       *cache.PolicyReader
	auditSvc     auditdomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewRateSync(p RateSyncParams) uppfdomain.RateSync {
	return &RateSyncService{
		db:           p.DB,
		log:          p.Log.Named("uppf.ratesync"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		components:   p.Components,
		npa:          p.NPA,
		slack:        p.Slack,
		alertChannel: p.Cfg.Providers.AlertChannel,
		policy:       p.Policy,
		auditSvc:     p.AuditSvc,
		obsMetrics:   p.ObsMetrics,
	}
}

// Sync applies the regulator's current UPPF rates as product-scoped registry
// entries. When the sheet cannot be fetched or fails validation the registry
// is left on its last-known rates and the run is flagged for an operator.
func (s *RateSyncService) Sync(ctx context.Context) (*uppfdomain.SyncResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, uppfdomain.ErrInvalidOrganization
	}
	policy := s.policy.Policy(orgID.String())

	if s.npa == nil {
		return s.fallback(ctx, orgID, nil, uppfdomain.ErrRateSheetUnavailable)
	}
	raw, err := s.npa.FetchUPPFRates(ctx)
	if err != nil {
		return s.fallback(ctx, orgID, nil, fmt.Errorf("%w: %v", uppfdomain.ErrRateSheetUnavailable, err))
	}
	sheet := normalizeSheet(raw)
	if problems := uppfdomain.ValidateRateSheet(sheet, policy.RequiredUPPFProducts); len(problems) > 0 {
		return s.fallback(ctx, orgID, &sheet, errors.New(strings.Join(problems, "; ")))
	}

	thresholds := uppfdomain.AlertThresholds{
		LowPct:           decimal.NewFromFloat(policy.RateAlerts.LowPct),
		HighPct:          decimal.NewFromFloat(policy.RateAlerts.HighPct),
		CriticalPct:      decimal.NewFromFloat(policy.RateAlerts.CriticalPct),
		CriticalAbsolute: decimal.NewFromFloat(policy.RateAlerts.CriticalAbsolute),
	}

	products := make([]string, 0, len(sheet.Rates))
	for code := range sheet.Rates {
		products = append(products, code)
	}
	sort.Strings(products)

	result := &uppfdomain.SyncResult{Changes: []uppfdomain.RateChange{}, Alerts: []uppfdomain.RateAlert{}}
	var failures []string
	for _, product := range products {
		next := sheet.Rates[product]
		current, err := s.currentRate(ctx, sheet, product)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", product, err))
			continue
		}
		var old *decimal.Decimal
		if current != nil {
			old = &current.RateValue
			if current.RateValue.Equal(next) {
				continue
			}
		}

		productCode := product
		_, err = s.components.UpsertRate(ctx, componentdomain.UpsertRequest{
			Code:             componentdomain.CodeUPPF,
			Name:             "Unified Petroleum Price Fund",
			Category:         componentdomain.CategoryRegulatoryMargin,
			Unit:             componentdomain.UnitPerLitre,
			RateValue:        next,
			ProductCode:      &productCode,
			EffectiveFrom:    sheet.EffectiveDate,
			SourceDocumentID: sheet.Reference,
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", product, err))
			continue
		}

		change := uppfdomain.NewRateChange(product, old, next)
		result.Changes = append(result.Changes, change)
		if alert := uppfdomain.ClassifyChange(change, thresholds); alert != nil {
			result.Alerts = append(result.Alerts, *alert)
			s.obsMetrics.RecordRateAlert(ctx, product, string(alert.Severity))
		}
	}

	status := uppfdomain.SyncNoChange
	if len(result.Changes) > 0 {
		status = uppfdomain.SyncApplied
	}
	var runErr *string
	if len(failures) > 0 {
		status = uppfdomain.SyncFailed
		msg := strings.Join(failures, "; ")
		runErr = &msg
	}

	run, err := s.recordRun(ctx, orgID, &sheet, uppfdomain.SourceRegulator, status, len(failures) > 0, result.Changes, result.Alerts, runErr)
	if err != nil {
		return nil, err
	}
	result.Run = run

	for _, alert := range result.Alerts {
		if alert.Severity == uppfdomain.SeverityLow {
			continue
		}
		s.notify(ctx, fmt.Sprintf("[%s] %s", alert.Severity, alert.Message))
	}
	if runErr != nil {
		s.log.Error("uppf rate sync partially failed",
			zap.String("reference", sheet.Reference),
			zap.String("error", *runErr),
		)
		s.notify(ctx, "UPPF rate sync needs manual intervention: "+*runErr)
	} else {
		s.log.Info("uppf rate sync completed",
			zap.String("reference", sheet.Reference),
			zap.String("status", string(status)),
			zap.Int("changes", len(result.Changes)),
			zap.Int("alerts", len(result.Alerts)),
		)
	}
	return result, nil
}

// currentRate returns the product-scoped UPPF row in force at the sheet's
// effective date, or the global row when no product row exists yet.
func (s *RateSyncService) currentRate(ctx context.Context, sheet uppfdomain.RateSheet, product string) (*componentdomain.PricingComponent, error) {
	items, err := s.components.GetActiveComponents(ctx, sheet.EffectiveDate, product)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Code == componentdomain.CodeUPPF {
			return &items[i], nil
		}
	}
	return nil, nil
}

func (s *RateSyncService) fallback(ctx context.Context, orgID snowflake.ID, sheet *uppfdomain.RateSheet, cause error) (*uppfdomain.SyncResult, error) {
	msg := cause.Error()
	run, err := s.recordRun(ctx, orgID, sheet, uppfdomain.SourceFallback, uppfdomain.SyncFailed, true, nil, nil, &msg)
	if err != nil {
		return nil, err
	}
	s.log.Error("uppf rate sync fell back to last-known rates",
		zap.String("org_id", orgID.String()),
		zap.Error(cause),
	)
	s.notify(ctx, "UPPF rate sync fell back to last-known rates: "+msg)
	return &uppfdomain.SyncResult{Run: run, Changes: []uppfdomain.RateChange{}, Alerts: []uppfdomain.RateAlert{}}, nil
}

func (s *RateSyncService) recordRun(ctx context.Context, orgID snowflake.ID, sheet *uppfdomain.RateSheet, source uppfdomain.SyncSource, status uppfdomain.SyncStatus, manual bool, changes []uppfdomain.RateChange, alerts []uppfdomain.RateAlert, runErr *string) (*uppfdomain.RateSyncRun, error) {
	if changes == nil {
		changes = []uppfdomain.RateChange{}
	}
	if alerts == nil {
		alerts = []uppfdomain.RateAlert{}
	}
	rawChanges, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}
	rawAlerts, err := json.Marshal(alerts)
	if err != nil {
		return nil, err
	}

	run := &uppfdomain.RateSyncRun{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		Source:             source,
		Changes:            datatypes.JSON(rawChanges),
		Alerts:             datatypes.JSON(rawAlerts),
		Status:             status,
		ManualIntervention: manual,
		Error:              runErr,
		CreatedAt:          s.clock.Now().UTC(),
	}
	if sheet != nil {
		if !sheet.EffectiveDate.IsZero() {
			effective := sheet.EffectiveDate
			run.EffectiveDate = &effective
		}
		if sheet.Reference != "" {
			ref := sheet.Reference
			run.SourceReference = &ref
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertSyncRun(ctx, tx, run); err != nil {
			return err
		}
		if s.auditSvc == nil {
			return nil
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "uppf_rate_sync.completed",
			TargetType: "uppf_rate_sync_run",
			TargetID:   run.ID.String(),
			Metadata: map[string]any{
				"source":  string(source),
				"status":  string(status),
				"changes": len(changes),
				"alerts":  len(alerts),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *RateSyncService) notify(ctx context.Context, message string) {
	if s.slack == nil {
		return
	}
	if err := s.slack.PostMessage(ctx, s.alertChannel, message); err != nil {
		s.log.Warn("failed to post rate sync alert", zap.Error(err))
	}
}

func normalizeSheet(raw *npa.RateSheet) uppfdomain.RateSheet {
	sheet := uppfdomain.RateSheet{Rates: map[string]decimal.Decimal{}}
	if raw == nil {
		return sheet
	}
	sheet.Reference = strings.TrimSpace(raw.Reference)
	if !raw.EffectiveDate.IsZero() {
		sheet.EffectiveDate = raw.EffectiveDate.UTC().Truncate(time.Minute)
	}
	for _, r := range raw.Rates {
		code := strings.ToUpper(strings.TrimSpace(r.ProductCode))
		if code == "" {
			continue
		}
		sheet.Rates[code] = r.Rate
	}
	return sheet
}
