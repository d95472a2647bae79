package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type SettlementFilter struct {
	OrgID          snowflake.ID
	DealerID       string
	WindowID       string
	ApprovalStatus ApprovalStatus
	Limit          int
}

type Repository interface {
	InsertSettlement(ctx context.Context, db *gorm.DB, s *DealerSettlement) error
	FindSettlementByNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, number string) (*DealerSettlement, error)
	FindSettlement(ctx context.Context, db *gorm.DB, orgID snowflake.ID, dealerID, windowID string) (*DealerSettlement, error)
	ListSettlements(ctx context.Context, db *gorm.DB, filter SettlementFilter) ([]DealerSettlement, error)
	MarkSettlementPosted(ctx context.Context, db *gorm.DB, id snowflake.ID, approver string, at time.Time) (bool, error)
	MarkSettlementPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, reference string, at time.Time) (bool, error)
	SetSettlementJournal(ctx context.Context, db *gorm.DB, id snowflake.ID, entryNumber string) error
	CountSettlementsByStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (map[ApprovalStatus]int64, error)

	InsertLoan(ctx context.Context, db *gorm.DB, loan *DealerLoan) error
	InsertInstallments(ctx context.Context, db *gorm.DB, items []LoanInstallment) error
	FindLoan(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id snowflake.ID) (*DealerLoan, error)
	ListInstallments(ctx context.Context, db *gorm.DB, loanID snowflake.ID) ([]LoanInstallment, error)
	ListDueInstallments(ctx context.Context, db *gorm.DB, orgID snowflake.ID, dealerID string, dueBefore time.Time) ([]LoanInstallment, error)
	MarkInstallmentsDeducted(ctx context.Context, db *gorm.DB, ids []snowflake.ID, settlementNumber string, at time.Time) (int64, error)
	CloseRepaidLoans(ctx context.Context, db *gorm.DB, orgID snowflake.ID, dealerID string, at time.Time) (int64, error)
}
