package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	"github.com/smallbiznis/petroprice/internal/clock"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	obsmetrics "github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	"github.com/smallbiznis/petroprice/internal/providers/accounting"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// pendingGrace keeps the retry job away from requests still being posted.
const pendingGrace = time.Minute

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       journaldomain.Repository
	Accounting accounting.Client   `optional:"true"`
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       journaldomain.Repository
	accounting accounting.Client
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) journaldomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("journal.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		accounting: p.Accounting,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// Submit records the journal request once per (source, template) and posts
// it to accounting. A failed post leaves the request FAILED for the retry
// job and is not returned as an error.
func (s *Service) Submit(ctx context.Context, req journaldomain.SubmitRequest) (*journaldomain.JournalRequest, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, journaldomain.ErrInvalidOrganization
	}
	req.SourceDocument = strings.TrimSpace(req.SourceDocument)
	req.SourceDocumentID = strings.TrimSpace(req.SourceDocumentID)
	if req.SourceDocument == "" || req.SourceDocumentID == "" {
		return nil, journaldomain.ErrInvalidSource
	}
	switch req.TemplateCode {
	case journaldomain.TemplateUPPFClaim, journaldomain.TemplateUPPFSettlement, journaldomain.TemplateDealerSettlement:
	default:
		return nil, journaldomain.ErrUnknownTemplate
	}
	if err := journaldomain.ValidateBalanced(req.Lines); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if req.EffectiveDate.IsZero() {
		req.EffectiveDate = now
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		req.CreatedBy = "system"
	}
	rawLines, err := json.Marshal(req.Lines)
	if err != nil {
		return nil, err
	}
	debits, credits := journaldomain.Totals(req.Lines)

	var entity *journaldomain.JournalRequest
	inserted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindBySource(ctx, tx, orgID, req.SourceDocument, req.SourceDocumentID, req.TemplateCode)
		if err != nil {
			return err
		}
		if existing != nil {
			entity = existing
			return nil
		}

		prefix := fmt.Sprintf("JE-%s-%s-", req.TemplateCode, now.Format("20060102"))
		count, err := s.repo.CountByEntryPrefix(ctx, tx, orgID, prefix)
		if err != nil {
			return err
		}

		entity = &journaldomain.JournalRequest{
			ID:               s.genID.Generate(),
			OrgID:            orgID,
			EntryNumber:      fmt.Sprintf("%s%04d", prefix, count+1),
			TemplateCode:     req.TemplateCode,
			SourceDocument:   req.SourceDocument,
			SourceDocumentID: req.SourceDocumentID,
			Description:      req.Description,
			Reference:        req.Reference,
			Lines:            datatypes.JSON(rawLines),
			TotalDebit:       debits,
			TotalCredit:      credits,
			EffectiveDate:    req.EffectiveDate.UTC(),
			CreatedBy:        req.CreatedBy,
			Status:           journaldomain.StatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		inserted, err = s.repo.InsertIfAbsent(ctx, tx, entity)
		if err != nil {
			return err
		}
		if !inserted {
			entity, err = s.repo.FindBySource(ctx, tx, orgID, req.SourceDocument, req.SourceDocumentID, req.TemplateCode)
			return err
		}

		if s.auditSvc != nil {
			return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				OrgID:      orgID,
				Action:     "journal_request.created",
				TargetType: "journal_request",
				TargetID:   entity.EntryNumber,
				Metadata: map[string]any{
					"template_code":      string(req.TemplateCode),
					"source_document":    req.SourceDocument,
					"source_document_id": req.SourceDocumentID,
					"total_debit":        debits.String(),
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		s.log.Info("journal request already exists",
			zap.String("entry_number", entity.EntryNumber),
			zap.String("source_document", req.SourceDocument),
			zap.String("source_document_id", req.SourceDocumentID),
		)
		return entity, nil
	}

	s.post(ctx, entity, req.Lines)
	return entity, nil
}

func (s *Service) RetryFailed(ctx context.Context, limit int) (journaldomain.RetryResult, error) {
	var result journaldomain.RetryResult
	if limit <= 0 {
		limit = 100
	}
	items, err := s.repo.ListRetryable(ctx, s.db, s.clock.Now().UTC().Add(-pendingGrace), limit)
	if err != nil {
		return result, err
	}
	for i := range items {
		item := &items[i]
		var lines []journaldomain.Line
		if err := json.Unmarshal(item.Lines, &lines); err != nil {
			s.log.Error("journal request has unreadable lines",
				zap.String("entry_number", item.EntryNumber),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		result.Attempted++
		s.post(orgcontext.WithOrgID(ctx, item.OrgID), item, lines)
		if item.Status == journaldomain.StatusPosted {
			result.Posted++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func (s *Service) GetByEntryNumber(ctx context.Context, entryNumber string) (*journaldomain.JournalRequest, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, journaldomain.ErrInvalidOrganization
	}
	item, err := s.repo.FindByEntryNumber(ctx, s.db, orgID, strings.TrimSpace(entryNumber))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, journaldomain.ErrNotFound
	}
	return item, nil
}

// post sends one request to accounting and records the outcome on the row.
func (s *Service) post(ctx context.Context, entity *journaldomain.JournalRequest, lines []journaldomain.Line) {
	if s.accounting == nil {
		s.log.Warn("accounting client unavailable, journal request left pending",
			zap.String("entry_number", entity.EntryNumber))
		return
	}

	resp, err := s.accounting.PostJournal(ctx, toAccountingRequest(entity, lines))
	now := s.clock.Now().UTC()
	if err != nil {
		msg := err.Error()
		if markErr := s.repo.MarkFailed(ctx, s.db, entity.ID, msg, now); markErr != nil {
			s.log.Error("failed to mark journal request failed",
				zap.String("entry_number", entity.EntryNumber), zap.Error(markErr))
		}
		entity.Status = journaldomain.StatusFailed
		entity.LastError = &msg
		entity.Attempts++
		s.obsMetrics.RecordJournalRequest(ctx, string(entity.TemplateCode), string(journaldomain.StatusFailed))
		s.log.Warn("journal post failed, queued for retry",
			zap.String("entry_number", entity.EntryNumber),
			zap.String("template_code", string(entity.TemplateCode)),
			zap.String("source_document_id", entity.SourceDocumentID),
			zap.Error(err),
		)
		return
	}

	externalID := resp.EntryID
	if err := s.repo.MarkPosted(ctx, s.db, entity.ID, externalID, now); err != nil {
		s.log.Error("failed to mark journal request posted",
			zap.String("entry_number", entity.EntryNumber), zap.Error(err))
	}
	entity.Status = journaldomain.StatusPosted
	entity.ExternalEntryID = &externalID
	entity.LastError = nil
	entity.Attempts++
	s.obsMetrics.RecordJournalRequest(ctx, string(entity.TemplateCode), string(journaldomain.StatusPosted))
	s.log.Info("journal posted",
		zap.String("entry_number", entity.EntryNumber),
		zap.String("external_entry_id", externalID),
	)
}

func toAccountingRequest(entity *journaldomain.JournalRequest, lines []journaldomain.Line) accounting.JournalEntryRequest {
	out := accounting.JournalEntryRequest{
		EntryNumber:      entity.EntryNumber,
		TemplateCode:     string(entity.TemplateCode),
		SourceDocument:   entity.SourceDocument,
		SourceDocumentID: entity.SourceDocumentID,
		Description:      entity.Description,
		Reference:        entity.Reference,
		CreatedBy:        entity.CreatedBy,
		EffectiveDate:    entity.EffectiveDate,
		Lines:            make([]accounting.JournalLine, 0, len(lines)),
	}
	for _, line := range lines {
		item := accounting.JournalLine{AccountCode: string(line.AccountCode), Description: line.Description}
		if !line.Debit.IsZero() {
			amount := line.Debit
			item.DebitAmount = &amount
		}
		if !line.Credit.IsZero() {
			amount := line.Credit
			item.CreditAmount = &amount
		}
		out.Lines = append(out.Lines, item)
	}
	return out
}
