package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	dealerdomain "github.com/smallbiznis/petroprice/internal/dealer/domain"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	dealerclient "github.com/smallbiznis/petroprice/internal/providers/dealer"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"github.com/smallbiznis/petroprice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       dealerdomain.Repository
	Windows    windowdomain.Service  `optional:"true"`
	Journal    journaldomain.Service `optional:"true"`
	Dealers    dealerclient.Client   `optional:"true"`
	Policy     *cache.PolicyReader   `optional:"true"`
	AuditSvc   auditdomain.Service   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics   `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       dealerdomain.Repository
	windows    windowdomain.Service
	journal    journaldomain.Service
	dealers    dealerclient.Client
	policy     *cache.PolicyReader
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) dealerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("dealer.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		windows:    p.Windows,
		journal:    p.Journal,
		dealers:    p.Dealers,
		policy:     p.Policy,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// CreateSettlement computes the dealer's payout for a window. Loan
// installments due by the window end are deducted and marked in the same
// transaction. Settlements at or below the approval threshold post
// immediately; larger ones wait as DRAFT.
func (s *Service) CreateSettlement(ctx context.Context, req dealerdomain.CreateSettlementRequest) (*dealerdomain.DealerSettlement, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, dealerdomain.ErrInvalidOrganization
	}
	req.DealerID = strings.TrimSpace(req.DealerID)
	req.WindowID = strings.TrimSpace(req.WindowID)
	if req.DealerID == "" || req.WindowID == "" {
		return nil, dealerdomain.ErrInvalidRequest
	}
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = dealerdomain.PostedBySystem
	}

	now := s.clock.Now().UTC()
	dueBefore := now
	if s.windows != nil {
		window, err := s.windows.GetWindow(ctx, req.WindowID)
		if err != nil {
			if errors.Is(err, windowdomain.ErrWindowNotFound) {
				return nil, dealerdomain.ErrWindowNotFound
			}
			return nil, err
		}
		dueBefore = window.EndDate.AddDate(0, 0, 1)
	}
	if err := s.checkDealer(ctx, req.DealerID); err != nil {
		return nil, err
	}

	policy := s.policy.Policy(orgID.String())
	whtPct := decimal.NewFromFloat(policy.WithholdingTaxPct)
	threshold := decimal.NewFromFloat(policy.SettlementApprovalThreshold)
	number := dealerdomain.SettlementNumber(req.DealerID, req.WindowID, now)

	var settlement *dealerdomain.DealerSettlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindSettlement(ctx, tx, orgID, req.DealerID, req.WindowID)
		if err != nil {
			return err
		}
		if existing != nil {
			return dealerdomain.ErrSettlementExists
		}

		due, err := s.repo.ListDueInstallments(ctx, tx, orgID, req.DealerID, dueBefore)
		if err != nil {
			return err
		}
		loanDeduction := decimal.Zero
		ids := make([]snowflake.ID, 0, len(due))
		for _, it := range due {
			loanDeduction = loanDeduction.Add(it.Payment)
			ids = append(ids, it.ID)
		}

		amounts, err := dealerdomain.ComputeSettlement(dealerdomain.SettlementInput{
			VolumeSold:     req.VolumeSold,
			MarginRate:     req.MarginRate,
			OtherIncome:    req.OtherIncome,
			LoanDeduction:  loanDeduction,
			Shortage:       req.Shortage,
			Damage:         req.Damage,
			Advance:        req.Advance,
			Other:          req.Other,
			WithholdingPct: whtPct,
		})
		if err != nil {
			return err
		}

		settlement = &dealerdomain.DealerSettlement{
			ID:                s.genID.Generate(),
			OrgID:             orgID,
			SettlementNumber:  number,
			DealerID:          req.DealerID,
			WindowID:          req.WindowID,
			VolumeSold:        req.VolumeSold,
			MarginRate:        req.MarginRate,
			GrossMargin:       amounts.GrossMargin,
			OtherIncome:       amounts.OtherIncome,
			LoanDeduction:     amounts.LoanDeduction,
			ShortageDeduction: amounts.Shortage,
			DamageDeduction:   amounts.Damage,
			AdvanceDeduction:  amounts.Advance,
			WithholdingTax:    amounts.WithholdingTax,
			OtherDeduction:    amounts.Other,
			TotalDeductions:   amounts.TotalDeductions,
			NetPayable:        amounts.NetPayable,
			ApprovalStatus:    dealerdomain.ApprovalDraft,
			PaymentStatus:     dealerdomain.PaymentUnpaid,
			CreatedBy:         createdBy,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if !dealerdomain.RequiresApproval(amounts.NetPayable, threshold) {
			system := dealerdomain.PostedBySystem
			settlement.ApprovalStatus = dealerdomain.ApprovalPosted
			settlement.PostedBy = &system
			settlement.PostedAt = &now
		}
		if err := s.repo.InsertSettlement(ctx, tx, settlement); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return dealerdomain.ErrSettlementExists
			}
			return err
		}

		if len(ids) > 0 {
			if _, err := s.repo.MarkInstallmentsDeducted(ctx, tx, ids, number, now); err != nil {
				return err
			}
			if _, err := s.repo.CloseRepaidLoans(ctx, tx, orgID, req.DealerID, now); err != nil {
				return err
			}
		}
		return s.audit(ctx, tx, orgID, "dealer_settlement.created", number, map[string]any{
			"dealer_id":       req.DealerID,
			"window_id":       req.WindowID,
			"net_payable":     amounts.NetPayable.String(),
			"approval_status": string(settlement.ApprovalStatus),
			"installments":    len(ids),
		})
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordSettlement(ctx, string(settlement.ApprovalStatus))
	s.log.Info("dealer settlement created",
		zap.String("settlement_number", number),
		zap.String("dealer_id", req.DealerID),
		zap.String("net_payable", settlement.NetPayable.String()),
		zap.String("approval_status", string(settlement.ApprovalStatus)),
	)
	if settlement.ApprovalStatus == dealerdomain.ApprovalPosted {
		s.afterPost(ctx, settlement)
	}
	return settlement, nil
}

func (s *Service) ApproveSettlement(ctx context.Context, number, approver string) (*dealerdomain.DealerSettlement, error) {
	orgID, settlement, err := s.loadSettlement(ctx, number)
	if err != nil {
		return nil, err
	}
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return nil, dealerdomain.ErrInvalidRequest
	}
	if settlement.ApprovalStatus != dealerdomain.ApprovalDraft {
		return nil, dealerdomain.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.MarkSettlementPosted(ctx, tx, settlement.ID, approver, now)
		if err != nil {
			return err
		}
		if !changed {
			return dealerdomain.ErrInvalidTransition
		}
		return s.audit(ctx, tx, orgID, "dealer_settlement.approved", settlement.SettlementNumber, map[string]any{
			"approved_by": approver,
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindSettlementByNumber(ctx, s.db, orgID, settlement.SettlementNumber)
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordSettlement(ctx, string(dealerdomain.ApprovalPosted))
	s.afterPost(ctx, updated)
	return updated, nil
}

func (s *Service) MarkPaid(ctx context.Context, number, paymentReference string) (*dealerdomain.DealerSettlement, error) {
	orgID, settlement, err := s.loadSettlement(ctx, number)
	if err != nil {
		return nil, err
	}
	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return nil, dealerdomain.ErrPaymentReference
	}
	if settlement.ApprovalStatus != dealerdomain.ApprovalPosted || settlement.PaymentStatus != dealerdomain.PaymentUnpaid {
		return nil, dealerdomain.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.MarkSettlementPaid(ctx, tx, settlement.ID, paymentReference, now)
		if err != nil {
			return err
		}
		if !changed {
			return dealerdomain.ErrInvalidTransition
		}
		return s.audit(ctx, tx, orgID, "dealer_settlement.paid", settlement.SettlementNumber, map[string]any{
			"payment_reference": paymentReference,
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindSettlementByNumber(ctx, s.db, orgID, settlement.SettlementNumber)
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordSettlement(ctx, string(dealerdomain.PaymentPaid))
	s.notify(ctx, dealerclient.NoticeSettlementPaid, updated)
	return updated, nil
}

// afterPost emits the settlement journal and tells the dealer service.
// Neither failure undoes the posting.
func (s *Service) afterPost(ctx context.Context, settlement *dealerdomain.DealerSettlement) {
	if entry := s.emitJournal(ctx, settlement); entry != "" {
		if err := s.repo.SetSettlementJournal(ctx, s.db, settlement.ID, entry); err != nil {
			s.log.Error("failed to link journal entry",
				zap.String("settlement_number", settlement.SettlementNumber), zap.Error(err))
		} else {
			settlement.JournalEntryNumber = &entry
		}
	}
	s.notify(ctx, dealerclient.NoticeSettlementPosted, settlement)
}

func (s *Service) emitJournal(ctx context.Context, settlement *dealerdomain.DealerSettlement) string {
	if s.journal == nil {
		return ""
	}
	recoveries := decimal.Sum(settlement.ShortageDeduction, settlement.DamageDeduction,
		settlement.AdvanceDeduction, settlement.OtherDeduction)
	lines, err := journaldomain.Build(journaldomain.TemplateDealerSettlement, journaldomain.Amounts{
		GrossMargin:     settlement.GrossMargin,
		OtherIncome:     settlement.OtherIncome,
		NetPayable:      settlement.NetPayable,
		WithholdingTax:  settlement.WithholdingTax,
		LoanDeduction:   settlement.LoanDeduction,
		OtherDeductions: recoveries,
	})
	if err != nil {
		s.log.Error("failed to build settlement journal",
			zap.String("settlement_number", settlement.SettlementNumber), zap.Error(err))
		return ""
	}
	createdBy := dealerdomain.PostedBySystem
	if settlement.PostedBy != nil {
		createdBy = *settlement.PostedBy
	}
	entry, err := s.journal.Submit(ctx, journaldomain.SubmitRequest{
		TemplateCode:     journaldomain.TemplateDealerSettlement,
		SourceDocument:   "dealer_settlement",
		SourceDocumentID: settlement.SettlementNumber,
		Description:      "Dealer settlement " + settlement.DealerID + " " + settlement.WindowID,
		Reference:        settlement.SettlementNumber,
		Lines:            lines,
		EffectiveDate:    s.clock.Now().UTC(),
		CreatedBy:        createdBy,
	})
	if err != nil {
		s.log.Error("failed to record settlement journal",
			zap.String("settlement_number", settlement.SettlementNumber), zap.Error(err))
		return ""
	}
	return entry.EntryNumber
}

func (s *Service) notify(ctx context.Context, kind string, settlement *dealerdomain.DealerSettlement) {
	if s.dealers == nil {
		return
	}
	notice := dealerclient.SettlementNotice{
		Type:             kind,
		SettlementNumber: settlement.SettlementNumber,
		DealerID:         settlement.DealerID,
		WindowID:         settlement.WindowID,
		NetPayable:       settlement.NetPayable,
		OccurredAt:       s.clock.Now().UTC(),
	}
	if settlement.PaymentReference != nil {
		notice.PaymentReference = *settlement.PaymentReference
	}
	if err := s.dealers.NotifySettlement(ctx, notice); err != nil {
		s.log.Warn("dealer notification failed",
			zap.String("settlement_number", settlement.SettlementNumber),
			zap.String("type", kind),
			zap.Error(err),
		)
	}
}

// checkDealer rejects dealers the dealer service does not know. Any other
// lookup failure is logged and the request proceeds.
func (s *Service) checkDealer(ctx context.Context, dealerID string) error {
	if s.dealers == nil {
		return nil
	}
	if _, err := s.dealers.GetDealer(ctx, dealerID); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) {
			return dealerdomain.ErrDealerNotFound
		}
		s.log.Warn("dealer lookup failed, continuing", zap.String("dealer_id", dealerID), zap.Error(err))
	}
	return nil
}

func (s *Service) GetSettlement(ctx context.Context, number string) (*dealerdomain.DealerSettlement, error) {
	_, settlement, err := s.loadSettlement(ctx, number)
	return settlement, err
}

func (s *Service) ListSettlements(ctx context.Context, req dealerdomain.ListSettlementsRequest) ([]dealerdomain.DealerSettlement, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, dealerdomain.ErrInvalidOrganization
	}
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListSettlements(ctx, s.db, dealerdomain.SettlementFilter{
		OrgID:          orgID,
		DealerID:       strings.TrimSpace(req.DealerID),
		WindowID:       strings.TrimSpace(req.WindowID),
		ApprovalStatus: dealerdomain.ApprovalStatus(strings.ToUpper(strings.TrimSpace(req.ApprovalStatus))),
		Limit:          limit,
	})
}

func (s *Service) CountByStatus(ctx context.Context) (map[dealerdomain.ApprovalStatus]int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, dealerdomain.ErrInvalidOrganization
	}
	return s.repo.CountSettlementsByStatus(ctx, s.db, orgID)
}

// CreateLoan stores the loan with its full repayment schedule. When the
// dealer service reports a credit limit the new principal must fit under it.
func (s *Service) CreateLoan(ctx context.Context, req dealerdomain.CreateLoanRequest) (*dealerdomain.DealerLoan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, dealerdomain.ErrInvalidOrganization
	}
	req.DealerID = strings.TrimSpace(req.DealerID)
	if req.DealerID == "" {
		return nil, dealerdomain.ErrInvalidRequest
	}
	req.Frequency = dealerdomain.Frequency(strings.ToUpper(strings.TrimSpace(string(req.Frequency))))
	if req.Frequency == "" {
		req.Frequency = dealerdomain.FrequencyMonthly
	}
	now := s.clock.Now().UTC()
	start := req.StartDate
	if start.IsZero() {
		start = now.Truncate(24 * time.Hour)
	}

	schedule, err := dealerdomain.GenerateAmortizationSchedule(req.Principal, req.AnnualRatePct, req.TenorPeriods, req.Frequency, start)
	if err != nil {
		return nil, err
	}
	if err := s.checkCredit(ctx, req.DealerID, req.Principal); err != nil {
		return nil, err
	}

	loan := &dealerdomain.DealerLoan{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		DealerID:      req.DealerID,
		Principal:     req.Principal.Round(2),
		AnnualRatePct: req.AnnualRatePct,
		TenorPeriods:  req.TenorPeriods,
		Frequency:     req.Frequency,
		StartDate:     start.UTC(),
		Status:        dealerdomain.LoanActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := range schedule {
		schedule[i].ID = s.genID.Generate()
		schedule[i].OrgID = orgID
		schedule[i].LoanID = loan.ID
		schedule[i].DueDate = schedule[i].DueDate.UTC()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertLoan(ctx, tx, loan); err != nil {
			return err
		}
		if err := s.repo.InsertInstallments(ctx, tx, schedule); err != nil {
			return err
		}
		return s.auditWithType(ctx, tx, orgID, "dealer_loan.created", "dealer_loan", loan.ID.String(), map[string]any{
			"dealer_id":     loan.DealerID,
			"principal":     loan.Principal.String(),
			"tenor_periods": loan.TenorPeriods,
			"frequency":     string(loan.Frequency),
		})
	})
	if err != nil {
		return nil, err
	}
	loan.Installments = schedule

	s.log.Info("dealer loan created",
		zap.String("loan_id", loan.ID.String()),
		zap.String("dealer_id", loan.DealerID),
		zap.String("principal", loan.Principal.String()),
		zap.Int("installments", len(schedule)),
	)
	return loan, nil
}

func (s *Service) checkCredit(ctx context.Context, dealerID string, principal decimal.Decimal) error {
	if s.dealers == nil {
		return nil
	}
	profile, err := s.dealers.GetCreditProfile(ctx, dealerID)
	if err != nil {
		if errors.Is(err, httpclient.ErrNotFound) {
			return dealerdomain.ErrDealerNotFound
		}
		s.log.Warn("credit profile unavailable, continuing", zap.String("dealer_id", dealerID), zap.Error(err))
		return nil
	}
	if profile.CreditLimit.IsPositive() && profile.Outstanding.Add(principal).GreaterThan(profile.CreditLimit) {
		return dealerdomain.ErrCreditLimitExceeded
	}
	return nil
}

func (s *Service) GetLoan(ctx context.Context, id string) (*dealerdomain.DealerLoan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, dealerdomain.ErrInvalidOrganization
	}
	loanID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, dealerdomain.ErrLoanNotFound
	}
	loan, err := s.repo.FindLoan(ctx, s.db, orgID, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, dealerdomain.ErrLoanNotFound
	}
	loan.Installments, err = s.repo.ListInstallments(ctx, s.db, loan.ID)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *Service) loadSettlement(ctx context.Context, number string) (snowflake.ID, *dealerdomain.DealerSettlement, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, nil, dealerdomain.ErrInvalidOrganization
	}
	settlement, err := s.repo.FindSettlementByNumber(ctx, s.db, orgID, strings.TrimSpace(number))
	if err != nil {
		return 0, nil, err
	}
	if settlement == nil {
		return 0, nil, dealerdomain.ErrSettlementNotFound
	}
	return orgID, settlement, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, action, targetID string, metadata map[string]any) error {
	return s.auditWithType(ctx, tx, orgID, action, "dealer_settlement", targetID, metadata)
}

func (s *Service) auditWithType(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, action, targetType, targetID string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		OrgID:      orgID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
}

