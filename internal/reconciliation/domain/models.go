package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusMatched          Status = "MATCHED"
	StatusVarianceDetected Status = "VARIANCE_DETECTED"
)

type RouteType string

const (
	RouteHighway RouteType = "HIGHWAY"
	RouteUrban   RouteType = "URBAN"
	RouteRural   RouteType = "RURAL"
	RouteRemote  RouteType = "REMOTE"
)

// Consignment is the local copy of a delivery recorded by the transaction
// service: the same load measured at depot, by the transporter and at the
// station.
type Consignment struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_consignments_org_consignment,priority:1"`
	ConsignmentID     string          `json:"consignment_id" gorm:"type:text;not null;uniqueIndex:ux_consignments_org_consignment,priority:2"`
	RouteID           string          `json:"route_id" gorm:"type:text;not null"`
	ProductCode       string          `json:"product_code" gorm:"type:text;not null"`
	StationID         string          `json:"station_id" gorm:"type:text"`
	DepotLitres       decimal.Decimal `json:"depot_litres" gorm:"type:numeric(20,4);not null"`
	TransporterLitres decimal.Decimal `json:"transporter_litres" gorm:"type:numeric(20,4);not null"`
	StationLitres     decimal.Decimal `json:"station_litres" gorm:"type:numeric(20,4);not null"`
	PlannedKm         decimal.Decimal `json:"planned_km" gorm:"type:numeric(12,2);not null"`
	ActualKm          decimal.Decimal `json:"actual_km" gorm:"type:numeric(12,2);not null"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"not null"`
}

func (Consignment) TableName() string { return "consignments" }

// Distance is the travelled distance: actual when recorded, planned otherwise.
func (c Consignment) Distance() decimal.Decimal {
	if c.ActualKm.IsPositive() {
		return c.ActualKm
	}
	return c.PlannedKm
}

// Route is a depot-to-station haul. KmThreshold is the equalisation point
// beyond which transport costs are claimable.
type Route struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_uppf_routes_org_route,priority:1"`
	RouteID     string          `json:"route_id" gorm:"type:text;not null;uniqueIndex:ux_uppf_routes_org_route,priority:2"`
	Name        string          `json:"name" gorm:"type:text;not null"`
	KmThreshold decimal.Decimal `json:"km_threshold" gorm:"type:numeric(12,2);not null"`
	RouteType   RouteType       `json:"route_type" gorm:"type:text;not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null"`
}

func (Route) TableName() string { return "uppf_routes" }

type ThreeWayReconciliation struct {
	ID                         snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID                      snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_reconciliations_org_consignment,priority:1"`
	ConsignmentID              string          `json:"consignment_id" gorm:"type:text;not null;uniqueIndex:ux_reconciliations_org_consignment,priority:2"`
	DepotLitres                decimal.Decimal `json:"depot_litres" gorm:"type:numeric(20,4);not null"`
	TransporterLitres          decimal.Decimal `json:"transporter_litres" gorm:"type:numeric(20,4);not null"`
	StationLitres              decimal.Decimal `json:"station_litres" gorm:"type:numeric(20,4);not null"`
	DepotTransporterVariance   decimal.Decimal `json:"depot_transporter_variance" gorm:"type:numeric(20,4);not null"`
	TransporterStationVariance decimal.Decimal `json:"transporter_station_variance" gorm:"type:numeric(20,4);not null"`
	DepotStationVariance       decimal.Decimal `json:"depot_station_variance" gorm:"type:numeric(20,4);not null"`
	VariancePct                decimal.Decimal `json:"variance_pct" gorm:"type:numeric(10,4);not null"`
	TolerancePct               decimal.Decimal `json:"tolerance_pct" gorm:"type:numeric(10,4);not null"`
	Status                     Status          `json:"status" gorm:"type:text;not null"`
	ReconciledAt               time.Time       `json:"reconciled_at" gorm:"not null"`
}

func (ThreeWayReconciliation) TableName() string { return "three_way_reconciliations" }
