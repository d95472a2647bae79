package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, component *PricingComponent) error
	Close(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, effectiveTo time.Time) error
	ListActiveAt(ctx context.Context, db *gorm.DB, orgID snowflake.ID, asOf time.Time) ([]PricingComponent, error)
	FindCurrent(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string, productCode *string) (*PricingComponent, error)
	ListHistory(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) ([]PricingComponent, error)
	FindWindowStart(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string) (*time.Time, error)
}
