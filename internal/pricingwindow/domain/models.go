package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusClosed   Status = "CLOSED"
	StatusArchived Status = "ARCHIVED"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// PricingWindow is one bi-weekly pricing period. StartDate and EndDate are
// both inclusive calendar days.
type PricingWindow struct {
	ID                 snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID              snowflake.ID   `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_pricing_windows_org_window,priority:1"`
	WindowID           string         `json:"window_id" gorm:"type:text;not null;uniqueIndex:ux_pricing_windows_org_window,priority:2"`
	WindowNumber       int            `json:"window_number" gorm:"not null"`
	Year               int            `json:"year" gorm:"not null"`
	StartDate          time.Time      `json:"start_date" gorm:"not null;index"`
	EndDate            time.Time      `json:"end_date" gorm:"not null;index"`
	SubmissionDeadline *time.Time     `json:"submission_deadline,omitempty"`
	Status             Status         `json:"status" gorm:"type:text;not null;index"`
	ApprovalStatus     ApprovalStatus `json:"approval_status" gorm:"type:text;not null"`
	PublishedAt        *time.Time     `json:"published_at,omitempty"`
	ClosedAt           *time.Time     `json:"closed_at,omitempty"`
	ArchivedAt         *time.Time     `json:"archived_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time      `json:"updated_at" gorm:"not null"`
}

func (PricingWindow) TableName() string { return "pricing_windows" }

// StationPrice is the published ex-pump price for one station and product
// in one window. There is at most one per (org, station, product, window).
type StationPrice struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID           snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_station_prices_pair,priority:1"`
	StationID       string          `json:"station_id" gorm:"type:text;not null;uniqueIndex:ux_station_prices_pair,priority:2"`
	ProductCode     string          `json:"product_code" gorm:"type:text;not null;uniqueIndex:ux_station_prices_pair,priority:3"`
	WindowID        string          `json:"window_id" gorm:"type:text;not null;uniqueIndex:ux_station_prices_pair,priority:4;index"`
	ExPumpPrice     decimal.Decimal `json:"ex_pump_price" gorm:"type:numeric(20,6);not null"`
	Breakdown       datatypes.JSON  `json:"breakdown" gorm:"type:jsonb;not null"`
	SourceDocuments datatypes.JSON  `json:"source_documents" gorm:"type:jsonb"`
	PublishedAt     time.Time       `json:"published_at" gorm:"not null"`
	DeliveryStatus  DeliveryStatus  `json:"delivery_status" gorm:"type:text;not null"`
	DeliveryError   *string         `json:"delivery_error,omitempty" gorm:"type:text"`
	CreatedAt       time.Time       `json:"created_at" gorm:"not null"`
}

func (StationPrice) TableName() string { return "station_prices" }

// BreakdownLine is the persisted form of one build-up step.
type BreakdownLine struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Unit           string          `json:"unit"`
	Rate           decimal.Decimal `json:"rate"`
	Value          decimal.Decimal `json:"value"`
	IsOverridden   bool            `json:"isOverridden"`
	OverrideReason string          `json:"overrideReason,omitempty"`
}
