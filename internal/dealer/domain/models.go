package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type ApprovalStatus string

const (
	ApprovalDraft    ApprovalStatus = "DRAFT"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalPosted   ApprovalStatus = "POSTED"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

// PostedBySystem marks settlements posted without manual approval.
const PostedBySystem = "system"

// DealerSettlement is one dealer payout per pricing window.
type DealerSettlement struct {
	ID                 snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID              snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_dealer_settlements_dealer_window,priority:1"`
	SettlementNumber   string          `json:"settlement_number" gorm:"type:text;not null;uniqueIndex"`
	DealerID           string          `json:"dealer_id" gorm:"type:text;not null;uniqueIndex:ux_dealer_settlements_dealer_window,priority:2"`
	WindowID           string          `json:"window_id" gorm:"type:text;not null;uniqueIndex:ux_dealer_settlements_dealer_window,priority:3"`
	VolumeSold         decimal.Decimal `json:"volume_sold" gorm:"type:numeric(20,4);not null"`
	MarginRate         decimal.Decimal `json:"margin_rate" gorm:"type:numeric(12,6);not null"`
	GrossMargin        decimal.Decimal `json:"gross_margin" gorm:"type:numeric(20,2);not null"`
	OtherIncome        decimal.Decimal `json:"other_income" gorm:"type:numeric(20,2);not null"`
	LoanDeduction      decimal.Decimal `json:"loan_deduction" gorm:"type:numeric(20,2);not null"`
	ShortageDeduction  decimal.Decimal `json:"shortage_deduction" gorm:"type:numeric(20,2);not null"`
	DamageDeduction    decimal.Decimal `json:"damage_deduction" gorm:"type:numeric(20,2);not null"`
	AdvanceDeduction   decimal.Decimal `json:"advance_deduction" gorm:"type:numeric(20,2);not null"`
	WithholdingTax     decimal.Decimal `json:"withholding_tax" gorm:"type:numeric(20,2);not null"`
	OtherDeduction     decimal.Decimal `json:"other_deduction" gorm:"type:numeric(20,2);not null"`
	TotalDeductions    decimal.Decimal `json:"total_deductions" gorm:"type:numeric(20,2);not null"`
	NetPayable         decimal.Decimal `json:"net_payable" gorm:"type:numeric(20,2);not null"`
	ApprovalStatus     ApprovalStatus  `json:"approval_status" gorm:"type:text;not null;index"`
	PaymentStatus      PaymentStatus   `json:"payment_status" gorm:"type:text;not null"`
	CreatedBy          string          `json:"created_by" gorm:"type:text;not null"`
	PostedBy           *string         `json:"posted_by,omitempty" gorm:"type:text"`
	PostedAt           *time.Time      `json:"posted_at,omitempty"`
	ApprovedBy         *string         `json:"approved_by,omitempty" gorm:"type:text"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	PaymentReference   *string         `json:"payment_reference,omitempty" gorm:"type:text"`
	JournalEntryNumber *string         `json:"journal_entry_number,omitempty" gorm:"type:text"`
	CreatedAt          time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time       `json:"updated_at" gorm:"not null"`
}

func (DealerSettlement) TableName() string { return "dealer_settlements" }

type Frequency string

const (
	FrequencyMonthly  Frequency = "MONTHLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
)

type LoanStatus string

const (
	LoanActive LoanStatus = "ACTIVE"
	LoanRepaid LoanStatus = "REPAID"
)

type DealerLoan struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID         snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;index:idx_dealer_loans_dealer,priority:1"`
	DealerID      string          `json:"dealer_id" gorm:"type:text;not null;index:idx_dealer_loans_dealer,priority:2"`
	Principal     decimal.Decimal `json:"principal" gorm:"type:numeric(20,2);not null"`
	AnnualRatePct decimal.Decimal `json:"annual_rate_pct" gorm:"type:numeric(8,4);not null"`
	TenorPeriods  int             `json:"tenor_periods" gorm:"not null"`
	Frequency     Frequency       `json:"frequency" gorm:"type:text;not null"`
	StartDate     time.Time       `json:"start_date" gorm:"not null"`
	Status        LoanStatus      `json:"status" gorm:"type:text;not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`

	Installments []LoanInstallment `json:"installments,omitempty" gorm:"-"`
}

func (DealerLoan) TableName() string { return "dealer_loans" }

type InstallmentStatus string

const (
	InstallmentDue      InstallmentStatus = "DUE"
	InstallmentDeducted InstallmentStatus = "DEDUCTED"
)

type LoanInstallment struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID            snowflake.ID      `json:"organization_id" gorm:"column:org_id;not null"`
	LoanID           snowflake.ID      `json:"loan_id" gorm:"not null;uniqueIndex:ux_dealer_loan_installments_number,priority:1"`
	Number           int               `json:"number" gorm:"not null;uniqueIndex:ux_dealer_loan_installments_number,priority:2"`
	DueDate          time.Time         `json:"due_date" gorm:"not null;index"`
	Payment          decimal.Decimal   `json:"payment" gorm:"type:numeric(20,2);not null"`
	PrincipalPortion decimal.Decimal   `json:"principal_portion" gorm:"type:numeric(20,2);not null"`
	InterestPortion  decimal.Decimal   `json:"interest_portion" gorm:"type:numeric(20,2);not null"`
	BalanceAfter     decimal.Decimal   `json:"balance_after" gorm:"type:numeric(20,2);not null"`
	Status           InstallmentStatus `json:"status" gorm:"type:text;not null"`
	SettlementNumber *string           `json:"settlement_number,omitempty" gorm:"type:text"`
	DeductedAt       *time.Time        `json:"deducted_at,omitempty"`
}

func (LoanInstallment) TableName() string { return "dealer_loan_installments" }
