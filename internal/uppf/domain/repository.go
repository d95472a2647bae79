package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ClaimFilter struct {
	OrgID    snowflake.ID
	WindowID string
	Status   ClaimStatus
	Limit    int
}

type Repository interface {
	InsertClaim(ctx context.Context, db *gorm.DB, c *UppfClaim) error
	FindClaimByNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, claimNumber string) (*UppfClaim, error)
	FindClaimByConsignment(ctx context.Context, db *gorm.DB, orgID snowflake.ID, consignmentID string) (*UppfClaim, error)
	CountClaimsInWindow(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string) (int64, error)
	ListClaims(ctx context.Context, db *gorm.DB, filter ClaimFilter) ([]UppfClaim, error)
	MarkSubmitted(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, reference string, at time.Time) (int64, error)
	MarkApproved(ctx context.Context, db *gorm.DB, id snowflake.ID, approved, variance decimal.Decimal, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, variance decimal.Decimal, at time.Time) (bool, error)
	MarkSettled(ctx context.Context, db *gorm.DB, id snowflake.ID, settled, variance decimal.Decimal, reference string, at time.Time) (bool, error)
	SetJournalEntry(ctx context.Context, db *gorm.DB, id snowflake.ID, entryNumber string) error
	CountClaimsByStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (map[ClaimStatus]int64, error)

	InsertSyncRun(ctx context.Context, db *gorm.DB, run *RateSyncRun) error
	LatestSyncRun(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*RateSyncRun, error)
}
