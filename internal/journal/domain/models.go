package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TemplateCode string

const (
	TemplateUPPFClaim        TemplateCode = "UPPF_CLAIM"
	TemplateUPPFSettlement   TemplateCode = "UPPF_SETTLEMENT"
	TemplateDealerSettlement TemplateCode = "DEALER_SETTLEMENT"
)

type AccountCode string

const (
	// Assets
	AccountCash                 AccountCode = "1010"
	AccountUPPFReceivable       AccountCode = "1240"
	AccountDealerLoanReceivable AccountCode = "1310"
	AccountDealerRecoveries     AccountCode = "1390"

	// Liabilities
	AccountDealerPayable AccountCode = "2110"
	AccountWHTPayable    AccountCode = "2310"

	// Income
	AccountUPPFIncome AccountCode = "4150"

	// Expenses
	AccountDealerMarginExpense AccountCode = "5100"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPosted  Status = "POSTED"
	StatusFailed  Status = "FAILED"
)

// Line is one side of a double-entry posting. Exactly one of Debit or
// Credit is non-zero.
type Line struct {
	AccountCode AccountCode     `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// JournalRequest is the outbox row for one journal event sent to accounting.
type JournalRequest struct {
	ID               snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID            snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_journal_requests_source,priority:1"`
	EntryNumber      string          `json:"entry_number" gorm:"type:text;not null;uniqueIndex"`
	TemplateCode     TemplateCode    `json:"template_code" gorm:"type:text;not null;uniqueIndex:ux_journal_requests_source,priority:4"`
	SourceDocument   string          `json:"source_document" gorm:"type:text;not null;uniqueIndex:ux_journal_requests_source,priority:2"`
	SourceDocumentID string          `json:"source_document_id" gorm:"type:text;not null;uniqueIndex:ux_journal_requests_source,priority:3"`
	Description      string          `json:"description" gorm:"type:text"`
	Reference        string          `json:"reference,omitempty" gorm:"type:text"`
	Lines            datatypes.JSON  `json:"lines" gorm:"type:jsonb;not null"`
	TotalDebit       decimal.Decimal `json:"total_debit" gorm:"type:numeric(20,6);not null"`
	TotalCredit      decimal.Decimal `json:"total_credit" gorm:"type:numeric(20,6);not null"`
	EffectiveDate    time.Time       `json:"effective_date" gorm:"not null"`
	CreatedBy        string          `json:"created_by" gorm:"type:text;not null"`
	Status           Status          `json:"status" gorm:"type:text;not null;index"`
	ExternalEntryID  *string         `json:"external_entry_id,omitempty" gorm:"type:text"`
	LastError        *string         `json:"last_error,omitempty" gorm:"type:text"`
	Attempts         int             `json:"attempts" gorm:"not null;default:0"`
	CreatedAt        time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"not null"`
}

func (JournalRequest) TableName() string { return "journal_requests" }
