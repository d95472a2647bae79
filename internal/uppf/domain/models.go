package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ClaimStatus string

const (
	ClaimDraft     ClaimStatus = "DRAFT"
	ClaimSubmitted ClaimStatus = "SUBMITTED"
	ClaimApproved  ClaimStatus = "APPROVED"
	ClaimRejected  ClaimStatus = "REJECTED"
	ClaimSettled   ClaimStatus = "SETTLED"
)

// UppfClaim is a transport equalisation claim for the distance a
// consignment travelled beyond its route's equalisation point. Claim
// fields are frozen once the claim leaves DRAFT.
type UppfClaim struct {
	ID                   snowflake.ID     `json:"id" gorm:"primaryKey"`
	OrgID                snowflake.ID     `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_uppf_claims_consignment,priority:1;index:idx_uppf_claims_window,priority:1"`
	ClaimNumber          string           `json:"claim_number" gorm:"type:text;not null;uniqueIndex"`
	ConsignmentID        string           `json:"consignment_id" gorm:"type:text;not null;uniqueIndex:ux_uppf_claims_consignment,priority:2"`
	RouteID              string           `json:"route_id" gorm:"type:text;not null"`
	WindowID             string           `json:"window_id" gorm:"type:text;not null;index:idx_uppf_claims_window,priority:2"`
	ProductCode          string           `json:"product_code" gorm:"type:text;not null"`
	KmBeyondEqualisation decimal.Decimal  `json:"km_beyond_equalisation" gorm:"type:numeric(12,2);not null"`
	LitresMoved          decimal.Decimal  `json:"litres_moved" gorm:"type:numeric(20,4);not null"`
	TariffPerLitreKm     decimal.Decimal  `json:"tariff_per_litre_km" gorm:"type:numeric(12,6);not null"`
	ClaimAmount          decimal.Decimal  `json:"claim_amount" gorm:"type:numeric(20,2);not null"`
	Status               ClaimStatus      `json:"status" gorm:"type:text;not null;index"`
	ThreeWayReconciled   bool             `json:"three_way_reconciled" gorm:"not null"`
	SubmissionReference  *string          `json:"submission_reference,omitempty" gorm:"type:text;index"`
	SubmittedAt          *time.Time       `json:"submitted_at,omitempty"`
	ApprovedAmount       *decimal.Decimal `json:"approved_amount,omitempty" gorm:"type:numeric(20,2)"`
	SettlementAmount     *decimal.Decimal `json:"settlement_amount,omitempty" gorm:"type:numeric(20,2)"`
	VarianceAmount       decimal.Decimal  `json:"variance_amount" gorm:"type:numeric(20,2);not null"`
	RejectionReason      *string          `json:"rejection_reason,omitempty" gorm:"type:text"`
	RespondedAt          *time.Time       `json:"responded_at,omitempty"`
	SettledAt            *time.Time       `json:"settled_at,omitempty"`
	SettlementReference  *string          `json:"settlement_reference,omitempty" gorm:"type:text"`
	JournalEntryNumber   *string          `json:"journal_entry_number,omitempty" gorm:"type:text"`
	CreatedAt            time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time        `json:"updated_at" gorm:"not null"`
}

func (UppfClaim) TableName() string { return "uppf_claims" }

type SyncSource string

const (
	SourceRegulator SyncSource = "REGULATOR"
	SourceFallback  SyncSource = "FALLBACK"
)

type SyncStatus string

const (
	SyncApplied  SyncStatus = "APPLIED"
	SyncNoChange SyncStatus = "NO_CHANGE"
	SyncFailed   SyncStatus = "FAILED"
)

// RateSyncRun records one pass of the regulator rate synchronisation.
type RateSyncRun struct {
	ID                 snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID              snowflake.ID   `json:"organization_id" gorm:"column:org_id;not null;index"`
	EffectiveDate      *time.Time     `json:"effective_date,omitempty"`
	Source             SyncSource     `json:"source" gorm:"type:text;not null"`
	SourceReference    *string        `json:"source_reference,omitempty" gorm:"type:text"`
	Changes            datatypes.JSON `json:"changes" gorm:"type:jsonb"`
	Alerts             datatypes.JSON `json:"alerts" gorm:"type:jsonb"`
	Status             SyncStatus     `json:"status" gorm:"type:text;not null"`
	ManualIntervention bool           `json:"manual_intervention" gorm:"not null"`
	Error              *string        `json:"error,omitempty" gorm:"type:text"`
	CreatedAt          time.Time      `json:"created_at" gorm:"not null;index"`
}

func (RateSyncRun) TableName() string { return "uppf_rate_sync_runs" }
