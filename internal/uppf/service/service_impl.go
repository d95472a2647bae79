package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	"github.com/smallbiznis/petroprice/internal/config"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"github.com/smallbiznis/petroprice/internal/providers/npa"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"github.com/smallbiznis/petroprice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           uppfdomain.Repository
	Reconciliation reconciliationdomain.Service
	Windows        windowdomain.Service  `optional:"true"`
	Journal        journaldomain.Service `optional:"true"`
	NPA            npa.Client            `optional:"true"`
	Policy         *cache.PolicyReader   `optional:"true"`
	AuditSvc       auditdomain.Service   `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics   `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           uppfdomain.Repository
	reconciliation reconciliationdomain.Service
	windows        windowdomain.Service
	journal        journaldomain.Service
	npa            npa.Client
	policy         *cache.PolicyReader
	auditSvc       auditdomain.Service
	obsMetrics     *obsmetrics.Metrics
}

func New(p Params) uppfdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("uppf.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		reconciliation: p.Reconciliation,
		windows:        p.Windows,
		journal:        p.Journal,
		npa:            p.NPA,
		policy:         p.Policy,
		auditSvc:       p.AuditSvc,
		obsMetrics:     p.ObsMetrics,
	}
}

var errDuplicateClaim = errors.New("duplicate uppf claim")

// classifyDuplicateClaim runs outside the failed transaction. A claim already
// filed for the consignment is final; anything else lost the race for the
// window sequence and can be retried.
func (s *Service) classifyDuplicateClaim(ctx context.Context, orgID snowflake.ID, consignmentID string) error {
	existing, err := s.repo.FindClaimByConsignment(ctx, s.db, orgID, consignmentID)
	if err != nil {
		return err
	}
	if existing != nil {
		return uppfdomain.ErrClaimExists
	}
	s.log.Warn("uppf claim number taken concurrently", zap.String("consignment_id", consignmentID))
	return uppfdomain.ErrClaimNumberConflict
}

// CreateClaim checks, in order: consignment, route and equalisation point,
// reconciliation, eligible distance and uniqueness.
func (s *Service) CreateClaim(ctx context.Context, req uppfdomain.CreateClaimRequest) (*uppfdomain.UppfClaim, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, uppfdomain.ErrInvalidOrganization
	}
	req.ConsignmentID = strings.TrimSpace(req.ConsignmentID)
	req.WindowID = strings.TrimSpace(req.WindowID)
	if req.ConsignmentID == "" || req.WindowID == "" {
		return nil, uppfdomain.ErrInvalidRequest
	}
	if req.TariffPerLitreKm != nil && !req.TariffPerLitreKm.IsPositive() {
		return nil, uppfdomain.ErrInvalidAmount
	}
	if s.windows != nil {
		if _, err := s.windows.GetWindow(ctx, req.WindowID); err != nil {
			if errors.Is(err, windowdomain.ErrWindowNotFound) {
				return nil, uppfdomain.ErrWindowNotFound
			}
			return nil, err
		}
	}

	consignment, err := s.reconciliation.GetConsignment(ctx, req.ConsignmentID)
	if err != nil {
		if errors.Is(err, reconciliationdomain.ErrConsignmentNotFound) {
			return nil, uppfdomain.ErrConsignmentNotFound
		}
		return nil, err
	}

	route, err := s.reconciliation.GetRoute(ctx, consignment.RouteID)
	if err != nil {
		if errors.Is(err, reconciliationdomain.ErrRouteNotFound) {
			return nil, uppfdomain.ErrRouteNotFound
		}
		return nil, err
	}
	if !route.KmThreshold.IsPositive() {
		return nil, uppfdomain.ErrNoEqualisationPoint
	}

	rec, err := s.reconciliation.Get(ctx, consignment.ConsignmentID)
	if err != nil && !errors.Is(err, reconciliationdomain.ErrReconciliationMissing) {
		return nil, err
	}
	if rec == nil || rec.Status != reconciliationdomain.StatusMatched {
		return nil, uppfdomain.ErrNotReconciled
	}

	kmBeyond := uppfdomain.KmBeyond(consignment.Distance(), route.KmThreshold)
	if !kmBeyond.IsPositive() {
		return nil, uppfdomain.ErrNoEligibleDistance
	}

	tariff := decimal.NewFromFloat(s.policy.Policy(orgID.String()).DefaultTariffPerLitreKm)
	if req.TariffPerLitreKm != nil {
		tariff = *req.TariffPerLitreKm
	}
	litres := consignment.StationLitres
	amount := uppfdomain.ClaimAmount(kmBeyond, litres, tariff)

	var claim *uppfdomain.UppfClaim
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindClaimByConsignment(ctx, tx, orgID, consignment.ConsignmentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return uppfdomain.ErrClaimExists
		}
		count, err := s.repo.CountClaimsInWindow(ctx, tx, orgID, req.WindowID)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		claim = &uppfdomain.UppfClaim{
			ID:                   s.genID.Generate(),
			OrgID:                orgID,
			ClaimNumber:          uppfdomain.ClaimNumber(req.WindowID, count+1),
			ConsignmentID:        consignment.ConsignmentID,
			RouteID:              route.RouteID,
			WindowID:             req.WindowID,
			ProductCode:          consignment.ProductCode,
			KmBeyondEqualisation: kmBeyond,
			LitresMoved:          litres,
			TariffPerLitreKm:     tariff,
			ClaimAmount:          amount,
			Status:               uppfdomain.ClaimDraft,
			ThreeWayReconciled:   true,
			VarianceAmount:       decimal.Zero,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := s.repo.InsertClaim(ctx, tx, claim); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errDuplicateClaim
			}
			return err
		}
		return s.audit(ctx, tx, orgID, "uppf_claim.created", claim.ClaimNumber, map[string]any{
			"consignment_id": claim.ConsignmentID,
			"claim_amount":   amount.String(),
		})
	})
	if errors.Is(err, errDuplicateClaim) {
		return nil, s.classifyDuplicateClaim(ctx, orgID, consignment.ConsignmentID)
	}
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordClaim(ctx, claim.ProductCode, string(uppfdomain.ClaimDraft), amount.InexactFloat64())
	s.log.Info("uppf claim created",
		zap.String("claim_number", claim.ClaimNumber),
		zap.String("consignment_id", claim.ConsignmentID),
		zap.String("km_beyond", kmBeyond.String()),
		zap.String("claim_amount", amount.String()),
	)
	return claim, nil
}

// SubmitClaims freezes the window's DRAFT claims under one submission
// reference and pushes them to the regulator. A failed push leaves the
// claims SUBMITTED; resubmission is manual.
func (s *Service) SubmitClaims(ctx context.Context, windowID string) (*uppfdomain.SubmitResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, uppfdomain.ErrInvalidOrganization
	}
	windowID = strings.TrimSpace(windowID)
	if windowID == "" {
		return nil, uppfdomain.ErrInvalidRequest
	}

	result := &uppfdomain.SubmitResult{WindowID: windowID, TotalAmount: decimal.Zero}
	drafts, err := s.repo.ListClaims(ctx, s.db, uppfdomain.ClaimFilter{
		OrgID: orgID, WindowID: windowID, Status: uppfdomain.ClaimDraft,
	})
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return result, nil
	}

	reference := fmt.Sprintf("NPA-%s-%s", windowID, ulid.Make().String())
	now := s.clock.Now().UTC()
	ids := make([]snowflake.ID, 0, len(drafts))
	for _, c := range drafts {
		ids = append(ids, c.ID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.repo.MarkSubmitted(ctx, tx, orgID, ids, reference, now)
		if err != nil {
			return err
		}
		result.Submitted = int(updated)
		return s.audit(ctx, tx, orgID, "uppf_claim.submitted", reference, map[string]any{
			"window_id": windowID,
			"claims":    updated,
		})
	})
	if err != nil {
		return nil, err
	}
	result.SubmissionReference = reference

	batch := npa.ClaimBatch{SubmissionReference: reference, WindowID: windowID, SubmittedAt: now}
	for _, c := range drafts {
		result.TotalAmount = result.TotalAmount.Add(c.ClaimAmount)
		batch.Claims = append(batch.Claims, npa.ClaimItem{
			ClaimNumber:   c.ClaimNumber,
			ConsignmentID: c.ConsignmentID,
			RouteID:       c.RouteID,
			ProductCode:   c.ProductCode,
			KmBeyond:      c.KmBeyondEqualisation,
			LitresMoved:   c.LitresMoved,
			Tariff:        c.TariffPerLitreKm,
			ClaimAmount:   c.ClaimAmount,
		})
		s.obsMetrics.RecordClaim(ctx, c.ProductCode, string(uppfdomain.ClaimSubmitted), c.ClaimAmount.InexactFloat64())
	}

	if s.npa == nil {
		result.Warning = "regulator client not configured, claims held as submitted"
		s.log.Warn("claims submitted locally only", zap.String("submission_reference", reference))
		return result, nil
	}
	if _, err := s.npa.SubmitClaims(ctx, batch); err != nil {
		result.Warning = "regulator push failed: " + err.Error()
		s.log.Warn("claim batch push failed, resubmit manually",
			zap.String("submission_reference", reference),
			zap.Int("claims", result.Submitted),
			zap.Error(err),
		)
		return result, nil
	}
	result.Pushed = true
	s.log.Info("claims submitted",
		zap.String("submission_reference", reference),
		zap.Int("claims", result.Submitted),
		zap.String("total_amount", result.TotalAmount.String()),
	)
	return result, nil
}

func (s *Service) RecordResponse(ctx context.Context, claimNumber string, req uppfdomain.ResponseRequest) (*uppfdomain.UppfClaim, error) {
	orgID, claim, err := s.loadClaim(ctx, claimNumber)
	if err != nil {
		return nil, err
	}
	if claim.Status != uppfdomain.ClaimSubmitted {
		return nil, uppfdomain.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			changed bool
			err     error
		)
		if req.Approved {
			approved := claim.ClaimAmount
			if req.ApprovedAmount != nil {
				approved = req.ApprovedAmount.Round(2)
			}
			if approved.IsNegative() {
				return uppfdomain.ErrInvalidAmount
			}
			changed, err = s.repo.MarkApproved(ctx, tx, claim.ID, approved, claim.ClaimAmount.Sub(approved), now)
		} else {
			reason := strings.TrimSpace(req.Reason)
			if reason == "" {
				return uppfdomain.ErrRejectionReason
			}
			changed, err = s.repo.MarkRejected(ctx, tx, claim.ID, reason, claim.ClaimAmount, now)
		}
		if err != nil {
			return err
		}
		if !changed {
			return uppfdomain.ErrInvalidTransition
		}
		return s.audit(ctx, tx, orgID, "uppf_claim.responded", claim.ClaimNumber, map[string]any{
			"approved": req.Approved,
			"reason":   req.Reason,
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindClaimByNumber(ctx, s.db, orgID, claim.ClaimNumber)
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordClaim(ctx, updated.ProductCode, string(updated.Status), claim.ClaimAmount.InexactFloat64())

	if updated.Status == uppfdomain.ClaimApproved && updated.ApprovedAmount != nil && updated.ApprovedAmount.IsPositive() {
		s.emitJournal(ctx, updated, journaldomain.TemplateUPPFClaim, *updated.ApprovedAmount, "UPPF claim approved")
	}
	s.log.Info("uppf claim response recorded",
		zap.String("claim_number", updated.ClaimNumber),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) SettleClaim(ctx context.Context, claimNumber string, req uppfdomain.SettleRequest) (*uppfdomain.UppfClaim, error) {
	orgID, claim, err := s.loadClaim(ctx, claimNumber)
	if err != nil {
		return nil, err
	}
	if claim.Status != uppfdomain.ClaimApproved || claim.ApprovedAmount == nil {
		return nil, uppfdomain.ErrInvalidTransition
	}
	settled := req.SettlementAmount.Round(2)
	if settled.IsNegative() {
		return nil, uppfdomain.ErrInvalidAmount
	}
	reference := strings.TrimSpace(req.Reference)
	variance := claim.VarianceAmount.Add(claim.ApprovedAmount.Sub(settled))

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.MarkSettled(ctx, tx, claim.ID, settled, variance, reference, now)
		if err != nil {
			return err
		}
		if !changed {
			return uppfdomain.ErrInvalidTransition
		}
		return s.audit(ctx, tx, orgID, "uppf_claim.settled", claim.ClaimNumber, map[string]any{
			"settlement_amount": settled.String(),
			"reference":         reference,
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindClaimByNumber(ctx, s.db, orgID, claim.ClaimNumber)
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordClaim(ctx, updated.ProductCode, string(uppfdomain.ClaimSettled), settled.InexactFloat64())
	if settled.IsPositive() {
		if entry := s.emitJournal(ctx, updated, journaldomain.TemplateUPPFSettlement, settled, "UPPF claim settled"); entry != "" {
			updated.JournalEntryNumber = &entry
		}
	}
	return updated, nil
}

// emitJournal submits a journal request for the claim and returns its
// entry number. Failures are logged; the claim state stands.
func (s *Service) emitJournal(ctx context.Context, claim *uppfdomain.UppfClaim, template journaldomain.TemplateCode, amount decimal.Decimal, description string) string {
	if s.journal == nil {
		return ""
	}
	lines, err := journaldomain.Build(template, journaldomain.Amounts{Amount: amount})
	if err != nil {
		s.log.Error("failed to build claim journal", zap.String("claim_number", claim.ClaimNumber), zap.Error(err))
		return ""
	}
	reference := claim.ClaimNumber
	if claim.SettlementReference != nil && *claim.SettlementReference != "" {
		reference = *claim.SettlementReference
	}
	entry, err := s.journal.Submit(ctx, journaldomain.SubmitRequest{
		TemplateCode:     template,
		SourceDocument:   "uppf_claim",
		SourceDocumentID: claim.ClaimNumber,
		Description:      description + " " + claim.ClaimNumber,
		Reference:        reference,
		Lines:            lines,
		EffectiveDate:    s.clock.Now().UTC(),
	})
	if err != nil {
		s.log.Error("failed to record claim journal",
			zap.String("claim_number", claim.ClaimNumber),
			zap.String("template_code", string(template)),
			zap.Error(err),
		)
		return ""
	}
	if template == journaldomain.TemplateUPPFSettlement {
		if err := s.repo.SetJournalEntry(ctx, s.db, claim.ID, entry.EntryNumber); err != nil {
			s.log.Error("failed to link journal entry", zap.String("claim_number", claim.ClaimNumber), zap.Error(err))
		}
	}
	return entry.EntryNumber
}

func (s *Service) GetClaim(ctx context.Context, claimNumber string) (*uppfdomain.UppfClaim, error) {
	_, claim, err := s.loadClaim(ctx, claimNumber)
	return claim, err
}

func (s *Service) ListClaims(ctx context.Context, req uppfdomain.ListClaimsRequest) ([]uppfdomain.UppfClaim, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, uppfdomain.ErrInvalidOrganization
	}
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListClaims(ctx, s.db, uppfdomain.ClaimFilter{
		OrgID:    orgID,
		WindowID: strings.TrimSpace(req.WindowID),
		Status:   uppfdomain.ClaimStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		Limit:    limit,
	})
}

func (s *Service) CountByStatus(ctx context.Context) (map[uppfdomain.ClaimStatus]int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, uppfdomain.ErrInvalidOrganization
	}
	return s.repo.CountClaimsByStatus(ctx, s.db, orgID)
}

func (s *Service) CalculateLevy(ctx context.Context, in uppfdomain.LevyInput) (*uppfdomain.LevyResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, uppfdomain.ErrInvalidOrganization
	}
	result, err := uppfdomain.CalculateLevy(in, levyTable(s.policy.Policy(orgID.String()).Levy))
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) loadClaim(ctx context.Context, claimNumber string) (snowflake.ID, *uppfdomain.UppfClaim, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, nil, uppfdomain.ErrInvalidOrganization
	}
	claim, err := s.repo.FindClaimByNumber(ctx, s.db, orgID, strings.TrimSpace(claimNumber))
	if err != nil {
		return 0, nil, err
	}
	if claim == nil {
		return 0, nil, uppfdomain.ErrClaimNotFound
	}
	return orgID, claim, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, action, targetID string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		OrgID:      orgID,
		Action:     action,
		TargetType: "uppf_claim",
		TargetID:   targetID,
		Metadata:   metadata,
	})
}

func levyTable(p config.LevyPolicy) uppfdomain.LevyTable {
	return uppfdomain.LevyTable{
		BaseRates:         decimalMap(p.BaseRates),
		RouteFactors:      decimalMap(p.RouteFactors),
		ProductFactors:    decimalMap(p.ProductFactors),
		ClaimablePct:      decimalMap(p.ClaimablePct),
		SmallVolumeLitres: decimal.NewFromFloat(p.SmallVolumeLitres),
		LargeVolumeLitres: decimal.NewFromFloat(p.LargeVolumeLitres),
		SmallVolumeFactor: decimal.NewFromFloat(p.SmallVolumeFactor),
		LargeVolumeFactor: decimal.NewFromFloat(p.LargeVolumeFactor),
		MaxBonusPct:       decimal.NewFromFloat(p.MaxComplianceBonusPct),
	}
}

func decimalMap(in map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = decimal.NewFromFloat(v)
	}
	return out
}

