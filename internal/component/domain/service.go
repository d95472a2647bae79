package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	GetActiveComponents(ctx context.Context, asOf time.Time, productCode string) ([]PricingComponent, error)
	GetComponentsSnapshot(ctx context.Context, req SnapshotRequest) (*Snapshot, error)
	UpsertRate(ctx context.Context, req UpsertRequest) (*PricingComponent, error)
	ImportDocument(ctx context.Context, doc ParsedDocument) (*ImportResult, error)
	ListHistory(ctx context.Context, code string) ([]PricingComponent, error)
}

type UpsertRequest struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Category          Category        `json:"category"`
	Unit              Unit            `json:"unit"`
	RateValue         decimal.Decimal `json:"rate_value"`
	ProductCode       *string         `json:"product_code,omitempty"`
	EffectiveFrom     time.Time       `json:"effective_from"`
	SourceDocumentID  string          `json:"source_document_id,omitempty"`
	ApprovalReference string          `json:"approval_reference,omitempty"`
}

type SnapshotRequest struct {
	WindowID    string
	AsOf        time.Time
	ProductCode string
}

// Snapshot freezes the registry state a calculation ran against.
type Snapshot struct {
	WindowID        string             `json:"window_id,omitempty"`
	AsOf            time.Time          `json:"as_of"`
	ProductCode     string             `json:"product_code,omitempty"`
	ExRefineryPrice decimal.Decimal    `json:"ex_refinery_price"`
	Components      []PricingComponent `json:"components"`
}

// ParsedComponent is one row of a regulator price document.
type ParsedComponent struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	Unit        Unit            `json:"unit"`
	RateValue   decimal.Decimal `json:"rate_value"`
	ProductCode *string         `json:"product_code,omitempty"`
}

type ParsedDocument struct {
	Components        []ParsedComponent `json:"components"`
	EffectiveDate     time.Time         `json:"effective_date"`
	DocumentReference string            `json:"document_reference"`
}

type ImportResult struct {
	DocumentReference string             `json:"document_reference"`
	EffectiveDate     time.Time          `json:"effective_date"`
	Components        []PricingComponent `json:"components"`
}

// RequiredDocumentCodes must all be present before a regulator document is imported.
var RequiredDocumentCodes = []string{CodeExRefinery, "ESRL", "ROAD", CodeBOST, CodeUPPF}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCode         = errors.New("invalid_component_code")
	ErrInvalidCategory     = errors.New("invalid_component_category")
	ErrInvalidUnit         = errors.New("invalid_component_unit")
	ErrInvalidRate         = errors.New("invalid_component_rate")
	ErrInvalidEffectiveAt  = errors.New("invalid_effective_from")
	ErrEffectiveOverlap    = errors.New("effective_overlap")
	ErrExRefineryNotFound  = errors.New("ex_refinery_not_found")
	ErrWindowNotFound      = errors.New("window_not_found")
	ErrIncompleteDocument  = errors.New("incomplete_document")
	ErrNotFound            = errors.New("not_found")
)
