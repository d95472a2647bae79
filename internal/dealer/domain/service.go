package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	CreateSettlement(ctx context.Context, req CreateSettlementRequest) (*DealerSettlement, error)
	ApproveSettlement(ctx context.Context, number, approver string) (*DealerSettlement, error)
	MarkPaid(ctx context.Context, number, paymentReference string) (*DealerSettlement, error)
	GetSettlement(ctx context.Context, number string) (*DealerSettlement, error)
	ListSettlements(ctx context.Context, req ListSettlementsRequest) ([]DealerSettlement, error)
	CountByStatus(ctx context.Context) (map[ApprovalStatus]int64, error)

	CreateLoan(ctx context.Context, req CreateLoanRequest) (*DealerLoan, error)
	GetLoan(ctx context.Context, id string) (*DealerLoan, error)
}

type CreateSettlementRequest struct {
	DealerID    string          `json:"dealer_id"`
	WindowID    string          `json:"window_id"`
	VolumeSold  decimal.Decimal `json:"volume_sold"`
	MarginRate  decimal.Decimal `json:"margin_rate"`
	OtherIncome decimal.Decimal `json:"other_income"`
	Shortage    decimal.Decimal `json:"shortage"`
	Damage      decimal.Decimal `json:"damage"`
	Advance     decimal.Decimal `json:"advance"`
	Other       decimal.Decimal `json:"other"`
	CreatedBy   string          `json:"created_by"`
}

type ListSettlementsRequest struct {
	DealerID       string `form:"dealer_id"`
	WindowID       string `form:"window_id"`
	ApprovalStatus string `form:"approval_status"`
	Limit          int    `form:"limit"`
}

type CreateLoanRequest struct {
	DealerID      string          `json:"dealer_id"`
	Principal     decimal.Decimal `json:"principal"`
	AnnualRatePct decimal.Decimal `json:"annual_rate_pct"`
	TenorPeriods  int             `json:"tenor_periods"`
	Frequency     Frequency       `json:"frequency"`
	StartDate     time.Time       `json:"start_date"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidTenor        = errors.New("invalid_tenor")
	ErrInvalidFrequency    = errors.New("invalid_frequency")
	ErrNegativeNetPayable  = errors.New("negative_net_payable")
	ErrWindowNotFound      = errors.New("window_not_found")
	ErrDealerNotFound      = errors.New("dealer_not_found")
	ErrCreditLimitExceeded = errors.New("credit_limit_exceeded")
	ErrSettlementExists    = errors.New("settlement_exists")
	ErrSettlementNotFound  = errors.New("settlement_not_found")
	ErrInvalidTransition   = errors.New("invalid_settlement_transition")
	ErrPaymentReference    = errors.New("payment_reference_required")
	ErrLoanNotFound        = errors.New("loan_not_found")
)
