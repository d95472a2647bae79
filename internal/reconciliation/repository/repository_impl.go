package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	"gorm.io/gorm"
)

const consignmentColumns = `id, org_id, consignment_id, route_id, product_code, station_id, depot_litres,
	transporter_litres, station_litres, planned_km, actual_km, delivered_at, created_at, updated_at`

const routeColumns = `id, org_id, route_id, name, km_threshold, route_type, created_at, updated_at`

const reconciliationColumns = `id, org_id, consignment_id, depot_litres, transporter_litres, station_litres,
	depot_transporter_variance, transporter_station_variance, depot_station_variance,
	variance_pct, tolerance_pct, status, reconciled_at`

type repo struct{}

func Provide() reconciliationdomain.Repository {
	return &repo{}
}

func (r *repo) FindConsignment(ctx context.Context, db *gorm.DB, orgID snowflake.ID, consignmentID string) (*reconciliationdomain.Consignment, error) {
	var item reconciliationdomain.Consignment
	err := db.WithContext(ctx).Raw(
		`SELECT `+consignmentColumns+` FROM consignments WHERE org_id = ? AND consignment_id = ?`,
		orgID, consignmentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpsertConsignment(ctx context.Context, db *gorm.DB, c *reconciliationdomain.Consignment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consignments (`+consignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, consignment_id) DO UPDATE SET
			route_id = excluded.route_id,
			product_code = excluded.product_code,
			station_id = excluded.station_id,
			depot_litres = excluded.depot_litres,
			transporter_litres = excluded.transporter_litres,
			station_litres = excluded.station_litres,
			planned_km = excluded.planned_km,
			actual_km = excluded.actual_km,
			delivered_at = excluded.delivered_at,
			updated_at = excluded.updated_at`,
		c.ID,
		c.OrgID,
		c.ConsignmentID,
		c.RouteID,
		c.ProductCode,
		c.StationID,
		c.DepotLitres,
		c.TransporterLitres,
		c.StationLitres,
		c.PlannedKm,
		c.ActualKm,
		c.DeliveredAt,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindRoute(ctx context.Context, db *gorm.DB, orgID snowflake.ID, routeID string) (*reconciliationdomain.Route, error) {
	var item reconciliationdomain.Route
	err := db.WithContext(ctx).Raw(
		`SELECT `+routeColumns+` FROM uppf_routes WHERE org_id = ? AND route_id = ?`,
		orgID, routeID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpsertRoute(ctx context.Context, db *gorm.DB, route *reconciliationdomain.Route) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO uppf_routes (`+routeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, route_id) DO UPDATE SET
			name = excluded.name,
			km_threshold = excluded.km_threshold,
			route_type = excluded.route_type,
			updated_at = excluded.updated_at`,
		route.ID,
		route.OrgID,
		route.RouteID,
		route.Name,
		route.KmThreshold,
		route.RouteType,
		route.CreatedAt,
		route.UpdatedAt,
	).Error
}

func (r *repo) FindReconciliation(ctx context.Context, db *gorm.DB, orgID snowflake.ID, consignmentID string) (*reconciliationdomain.ThreeWayReconciliation, error) {
	var item reconciliationdomain.ThreeWayReconciliation
	err := db.WithContext(ctx).Raw(
		`SELECT `+reconciliationColumns+` FROM three_way_reconciliations WHERE org_id = ? AND consignment_id = ?`,
		orgID, consignmentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// UpsertReconciliation keeps one row per consignment; a rerun overwrites
// the measurements and outcome.
func (r *repo) UpsertReconciliation(ctx context.Context, db *gorm.DB, rec *reconciliationdomain.ThreeWayReconciliation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO three_way_reconciliations (`+reconciliationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, consignment_id) DO UPDATE SET
			depot_litres = excluded.depot_litres,
			transporter_litres = excluded.transporter_litres,
			station_litres = excluded.station_litres,
			depot_transporter_variance = excluded.depot_transporter_variance,
			transporter_station_variance = excluded.transporter_station_variance,
			depot_station_variance = excluded.depot_station_variance,
			variance_pct = excluded.variance_pct,
			tolerance_pct = excluded.tolerance_pct,
			status = excluded.status,
			reconciled_at = excluded.reconciled_at`,
		rec.ID,
		rec.OrgID,
		rec.ConsignmentID,
		rec.DepotLitres,
		rec.TransporterLitres,
		rec.StationLitres,
		rec.DepotTransporterVariance,
		rec.TransporterStationVariance,
		rec.DepotStationVariance,
		rec.VariancePct,
		rec.TolerancePct,
		rec.Status,
		rec.ReconciledAt,
	).Error
}
