package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"github.com/smallbiznis/petroprice/internal/providers/transaction"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         reconciliationdomain.Repository
	Transactions transaction.Client  `optional:"true"`
	Policy       *cache.PolicyReader `optional:"true"`
	AuditSvc     auditdomain.Service `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         reconciliationdomain.Repository
	transactions transaction.Client
	policy       *cache.PolicyReader
	auditSvc     auditdomain.Service
}

func New(p Params) reconciliationdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("reconciliation.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		transactions: p.Transactions,
		policy:       p.Policy,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Reconcile(ctx context.Context, consignmentID string) (*reconciliationdomain.ThreeWayReconciliation, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, reconciliationdomain.ErrInvalidOrganization
	}
	consignment, err := s.GetConsignment(ctx, consignmentID)
	if err != nil {
		return nil, err
	}

	tolerance := decimal.NewFromFloat(s.policy.Policy(orgID.String()).ReconciliationTolerancePct)
	eval := reconciliationdomain.Evaluate(consignment.DepotLitres, consignment.TransporterLitres, consignment.StationLitres, tolerance)

	rec := &reconciliationdomain.ThreeWayReconciliation{
		ID:                         s.genID.Generate(),
		OrgID:                      orgID,
		ConsignmentID:              consignment.ConsignmentID,
		DepotLitres:                consignment.DepotLitres,
		TransporterLitres:          consignment.TransporterLitres,
		StationLitres:              consignment.StationLitres,
		DepotTransporterVariance:   eval.DepotTransporterVariance,
		TransporterStationVariance: eval.TransporterStationVariance,
		DepotStationVariance:       eval.DepotStationVariance,
		VariancePct:                eval.VariancePct,
		TolerancePct:               tolerance,
		Status:                     eval.Status,
		ReconciledAt:               s.clock.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpsertReconciliation(ctx, tx, rec); err != nil {
			return err
		}
		stored, err := s.repo.FindReconciliation(ctx, tx, orgID, rec.ConsignmentID)
		if err != nil {
			return err
		}
		if stored != nil {
			rec = stored
		}
		if s.auditSvc == nil {
			return nil
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "reconciliation.completed",
			TargetType: "consignment",
			TargetID:   rec.ConsignmentID,
			Metadata: map[string]any{
				"status":       string(rec.Status),
				"variance_pct": rec.VariancePct.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("consignment_id", rec.ConsignmentID),
		zap.String("status", string(rec.Status)),
		zap.String("variance_pct", rec.VariancePct.String()),
	}
	if rec.Status == reconciliationdomain.StatusVarianceDetected {
		s.log.Warn("consignment variance above tolerance", append(fields, zap.String("tolerance_pct", tolerance.String()))...)
	} else {
		s.log.Info("consignment reconciled", fields...)
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, consignmentID string) (*reconciliationdomain.ThreeWayReconciliation, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, reconciliationdomain.ErrInvalidOrganization
	}
	rec, err := s.repo.FindReconciliation(ctx, s.db, orgID, strings.TrimSpace(consignmentID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, reconciliationdomain.ErrReconciliationMissing
	}
	return rec, nil
}

// GetConsignment reads the local copy first and falls back to the
// transaction service, caching what it finds.
func (s *Service) GetConsignment(ctx context.Context, consignmentID string) (*reconciliationdomain.Consignment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, reconciliationdomain.ErrInvalidOrganization
	}
	consignmentID = strings.TrimSpace(consignmentID)
	if consignmentID == "" {
		return nil, reconciliationdomain.ErrInvalidConsignment
	}

	local, err := s.repo.FindConsignment(ctx, s.db, orgID, consignmentID)
	if err != nil {
		return nil, err
	}
	if local != nil {
		return local, nil
	}
	if s.transactions == nil {
		return nil, reconciliationdomain.ErrConsignmentNotFound
	}

	remote, err := s.transactions.GetConsignment(ctx, consignmentID)
	if err != nil {
		if errors.Is(err, httpclient.ErrNotFound) || errors.Is(err, httpclient.ErrNotConfigured) {
			return nil, reconciliationdomain.ErrConsignmentNotFound
		}
		return nil, err
	}

	return s.RecordConsignment(ctx, fromRemote(remote))
}

func (s *Service) RecordConsignment(ctx context.Context, c reconciliationdomain.Consignment) (*reconciliationdomain.Consignment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, reconciliationdomain.ErrInvalidOrganization
	}
	c.ConsignmentID = strings.TrimSpace(c.ConsignmentID)
	c.RouteID = strings.TrimSpace(c.RouteID)
	c.ProductCode = strings.ToUpper(strings.TrimSpace(c.ProductCode))
	if c.ConsignmentID == "" || c.RouteID == "" || c.ProductCode == "" {
		return nil, reconciliationdomain.ErrInvalidConsignment
	}
	if c.DepotLitres.IsNegative() || c.TransporterLitres.IsNegative() || c.StationLitres.IsNegative() ||
		c.PlannedKm.IsNegative() || c.ActualKm.IsNegative() {
		return nil, reconciliationdomain.ErrInvalidConsignment
	}

	now := s.clock.Now().UTC()
	c.ID = s.genID.Generate()
	c.OrgID = orgID
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.repo.UpsertConsignment(ctx, s.db, &c); err != nil {
		return nil, err
	}
	stored, err := s.repo.FindConsignment(ctx, s.db, orgID, c.ConsignmentID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &c, nil
	}
	return stored, nil
}

func (s *Service) GetRoute(ctx context.Context, routeID string) (*reconciliationdomain.Route, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, reconciliationdomain.ErrInvalidOrganization
	}
	route, err := s.repo.FindRoute(ctx, s.db, orgID, strings.TrimSpace(routeID))
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, reconciliationdomain.ErrRouteNotFound
	}
	return route, nil
}

func (s *Service) UpsertRoute(ctx context.Context, r reconciliationdomain.Route) (*reconciliationdomain.Route, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, reconciliationdomain.ErrInvalidOrganization
	}
	r.RouteID = strings.TrimSpace(r.RouteID)
	r.RouteType = reconciliationdomain.RouteType(strings.ToUpper(strings.TrimSpace(string(r.RouteType))))
	if r.RouteID == "" || r.KmThreshold.IsNegative() {
		return nil, reconciliationdomain.ErrInvalidRoute
	}
	switch r.RouteType {
	case reconciliationdomain.RouteHighway, reconciliationdomain.RouteUrban,
		reconciliationdomain.RouteRural, reconciliationdomain.RouteRemote:
	case "":
		r.RouteType = reconciliationdomain.RouteHighway
	default:
		return nil, reconciliationdomain.ErrInvalidRoute
	}
	if strings.TrimSpace(r.Name) == "" {
		r.Name = r.RouteID
	}

	now := s.clock.Now().UTC()
	r.ID = s.genID.Generate()
	r.OrgID = orgID
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.repo.UpsertRoute(ctx, s.db, &r); err != nil {
		return nil, err
	}
	return s.GetRoute(ctx, r.RouteID)
}

func fromRemote(c *transaction.Consignment) reconciliationdomain.Consignment {
	out := reconciliationdomain.Consignment{
		ConsignmentID:     c.ConsignmentID,
		RouteID:           c.RouteID,
		ProductCode:       c.ProductCode,
		StationID:         c.StationID,
		DepotLitres:       c.DepotLitres,
		TransporterLitres: c.TransporterLitres,
		StationLitres:     c.StationLitres,
		PlannedKm:         c.PlannedKm,
		ActualKm:          c.ActualKm,
	}
	if !c.DeliveredAt.IsZero() {
		delivered := c.DeliveredAt.UTC()
		out.DeliveredAt = &delivered
	}
	return out
}
