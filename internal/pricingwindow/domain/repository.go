package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID  snowflake.ID
	Status Status
	Year   int
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, w *PricingWindow) error
	FindByWindowID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string) (*PricingWindow, error)
	FindByNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, year, number int) (*PricingWindow, error)
	FindOverlapping(ctx context.Context, db *gorm.DB, orgID snowflake.ID, start, end time.Time) ([]PricingWindow, error)
	FindActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*PricingWindow, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]PricingWindow, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string, from, to Status, at time.Time) (bool, error)
	MarkPublished(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string, at time.Time) error
	ClampAndClose(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string, endDate, at time.Time) error
	CloseExpired(ctx context.Context, db *gorm.DB, orgID snowflake.ID, before, at time.Time) (int64, error)
	ListPastDeadline(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) ([]PricingWindow, error)
	ArchiveBefore(ctx context.Context, db *gorm.DB, orgID snowflake.ID, cutoff, at time.Time) (int64, error)

	FindStationPrice(ctx context.Context, db *gorm.DB, orgID snowflake.ID, stationID, productCode, windowID string) (*StationPrice, error)
	InsertStationPrice(ctx context.Context, db *gorm.DB, p *StationPrice) error
	UpdateDelivery(ctx context.Context, db *gorm.DB, id snowflake.ID, status DeliveryStatus, deliveryError *string) error
	ListStationPrices(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string) ([]StationPrice, error)
}
