package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     componentdomain.Repository
	Cache    cache.PricingCache
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     componentdomain.Repository
	cache    cache.PricingCache
	auditSvc auditdomain.Service
}

func New(p Params) componentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("component.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		cache:    p.Cache,
		auditSvc: p.AuditSvc,
	}
}

// normalizeEffective truncates to minute precision in UTC so interval
// boundaries compare consistently across drivers.
func normalizeEffective(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

func (s *Service) GetActiveComponents(ctx context.Context, asOf time.Time, productCode string) ([]componentdomain.PricingComponent, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, componentdomain.ErrInvalidOrganization
	}
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	asOf = normalizeEffective(asOf)
	productCode = strings.ToUpper(strings.TrimSpace(productCode))

	if s.cache != nil {
		if items, ok := s.cache.GetActiveComponents(orgID.String(), productCode, asOf); ok {
			return items, nil
		}
	}

	rows, err := s.repo.ListActiveAt(ctx, s.db, orgID, asOf)
	if err != nil {
		return nil, err
	}
	items := componentdomain.ResolveForProduct(rows, productCode)

	if s.cache != nil {
		s.cache.SetActiveComponents(orgID.String(), productCode, asOf, items)
	}
	return items, nil
}

func (s *Service) GetComponentsSnapshot(ctx context.Context, req componentdomain.SnapshotRequest) (*componentdomain.Snapshot, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, componentdomain.ErrInvalidOrganization
	}

	asOf := req.AsOf
	windowID := strings.TrimSpace(req.WindowID)
	if asOf.IsZero() && windowID != "" {
		start, err := s.repo.FindWindowStart(ctx, s.db, orgID, windowID)
		if err != nil {
			return nil, err
		}
		if start == nil {
			return nil, componentdomain.ErrWindowNotFound
		}
		asOf = *start
	}
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}

	items, err := s.GetActiveComponents(ctx, asOf, req.ProductCode)
	if err != nil {
		return nil, err
	}

	snapshot := &componentdomain.Snapshot{
		WindowID:    windowID,
		AsOf:        normalizeEffective(asOf),
		ProductCode: strings.ToUpper(strings.TrimSpace(req.ProductCode)),
		Components:  items,
	}
	found := false
	for _, item := range items {
		if item.Code == componentdomain.CodeExRefinery {
			snapshot.ExRefineryPrice = item.RateValue
			found = true
			break
		}
	}
	if !found {
		return nil, componentdomain.ErrExRefineryNotFound
	}
	return snapshot, nil
}

func (s *Service) UpsertRate(ctx context.Context, req componentdomain.UpsertRequest) (*componentdomain.PricingComponent, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, componentdomain.ErrInvalidOrganization
	}
	if err := validateUpsert(&req); err != nil {
		return nil, err
	}

	var created *componentdomain.PricingComponent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.upsertTx(ctx, tx, orgID, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(orgID)
	return created, nil
}

func (s *Service) upsertTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, req componentdomain.UpsertRequest) (*componentdomain.PricingComponent, error) {
	effectiveFrom := normalizeEffective(req.EffectiveFrom)

	current, err := s.repo.FindCurrent(ctx, tx, orgID, req.Code, req.ProductCode)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if !effectiveFrom.After(current.EffectiveFrom) {
			return nil, componentdomain.ErrEffectiveOverlap
		}
		if err := s.repo.Close(ctx, tx, orgID, current.ID, effectiveFrom); err != nil {
			return nil, err
		}
	}

	entity := &componentdomain.PricingComponent{
		ID:                s.genID.Generate(),
		OrgID:             orgID,
		Code:              req.Code,
		Name:              req.Name,
		Category:          req.Category,
		Unit:              req.Unit,
		RateValue:         req.RateValue,
		ProductCode:       req.ProductCode,
		EffectiveFrom:     effectiveFrom,
		IsActive:          true,
		SourceDocumentID:  req.SourceDocumentID,
		ApprovalReference: req.ApprovalReference,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, tx, entity); err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		metadata := map[string]any{
			"rate_value":     entity.RateValue.String(),
			"effective_from": effectiveFrom.Format(time.RFC3339),
		}
		if current != nil {
			metadata["previous_rate_value"] = current.RateValue.String()
		}
		if entity.ProductCode != nil {
			metadata["product_code"] = *entity.ProductCode
		}
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "pricing_component.upserted",
			TargetType: "pricing_component",
			TargetID:   entity.Code,
			Metadata:   metadata,
		}); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

func (s *Service) ImportDocument(ctx context.Context, doc componentdomain.ParsedDocument) (*componentdomain.ImportResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, componentdomain.ErrInvalidOrganization
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(doc.DocumentReference)
	result := &componentdomain.ImportResult{
		DocumentReference: reference,
		EffectiveDate:     normalizeEffective(doc.EffectiveDate),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, parsed := range doc.Components {
			req := componentdomain.UpsertRequest{
				Code:              parsed.Code,
				Name:              parsed.Name,
				Category:          parsed.Category,
				Unit:              parsed.Unit,
				RateValue:         parsed.RateValue,
				ProductCode:       parsed.ProductCode,
				EffectiveFrom:     doc.EffectiveDate,
				SourceDocumentID:  reference,
				ApprovalReference: reference,
			}
			if err := validateUpsert(&req); err != nil {
				return fmt.Errorf("component %s: %w", parsed.Code, err)
			}
			created, err := s.upsertTx(ctx, tx, orgID, req)
			if err != nil {
				return fmt.Errorf("component %s: %w", parsed.Code, err)
			}
			result.Components = append(result.Components, *created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(orgID)
	s.log.Info("regulator document imported",
		zap.String("org_id", orgID.String()),
		zap.String("document_reference", reference),
		zap.Int("components", len(result.Components)),
	)
	return result, nil
}

func (s *Service) ListHistory(ctx context.Context, code string) ([]componentdomain.PricingComponent, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, componentdomain.ErrInvalidOrganization
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, componentdomain.ErrInvalidCode
	}
	items, err := s.repo.ListHistory(ctx, s.db, orgID, code)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, componentdomain.ErrNotFound
	}
	return items, nil
}

func (s *Service) invalidate(orgID snowflake.ID) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateOrg(orgID.String())
}

// ValidateDocument checks a parsed regulator document before any write.
func ValidateDocument(doc componentdomain.ParsedDocument) error {
	if strings.TrimSpace(doc.DocumentReference) == "" {
		return fmt.Errorf("%w: missing document reference", componentdomain.ErrIncompleteDocument)
	}
	if doc.EffectiveDate.IsZero() {
		return fmt.Errorf("%w: missing effective date", componentdomain.ErrIncompleteDocument)
	}

	present := make(map[string]bool, len(doc.Components))
	for _, c := range doc.Components {
		present[strings.ToUpper(strings.TrimSpace(c.Code))] = true
	}
	var missing []string
	for _, code := range componentdomain.RequiredDocumentCodes {
		if !present[code] {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", componentdomain.ErrIncompleteDocument, strings.Join(missing, ", "))
	}
	return nil
}

func validateUpsert(req *componentdomain.UpsertRequest) error {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" {
		return componentdomain.ErrInvalidCode
	}
	if req.Name == "" {
		req.Name = req.Code
	}
	req.Category = componentdomain.Category(strings.ToUpper(strings.TrimSpace(string(req.Category))))
	if !req.Category.Valid() {
		return componentdomain.ErrInvalidCategory
	}
	req.Unit = componentdomain.Unit(strings.ToUpper(strings.TrimSpace(string(req.Unit))))
	if !req.Unit.Valid() {
		return componentdomain.ErrInvalidUnit
	}
	if req.RateValue.IsNegative() {
		return componentdomain.ErrInvalidRate
	}
	if req.EffectiveFrom.IsZero() {
		return componentdomain.ErrInvalidEffectiveAt
	}
	if req.ProductCode != nil {
		product := strings.ToUpper(strings.TrimSpace(*req.ProductCode))
		if product == "" {
			req.ProductCode = nil
		} else {
			req.ProductCode = &product
		}
	}
	return nil
}
