package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindConsignment(ctx context.Context, db *gorm.DB, orgID snowflake.ID, consignmentID string) (*Consignment, error)
	UpsertConsignment(ctx context.Context, db *gorm.DB, c *Consignment) error
	FindRoute(ctx context.Context, db *gorm.DB, orgID snowflake.ID, routeID string) (*Route, error)
	UpsertRoute(ctx context.Context, db *gorm.DB, r *Route) error
	FindReconciliation(ctx context.Context, db *gorm.DB, orgID snowflake.ID, consignmentID string) (*ThreeWayReconciliation, error)
	UpsertReconciliation(ctx context.Context, db *gorm.DB, r *ThreeWayReconciliation) error
}
