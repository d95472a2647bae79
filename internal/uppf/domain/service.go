package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type Service interface {
	CreateClaim(ctx context.Context, req CreateClaimRequest) (*UppfClaim, error)
	SubmitClaims(ctx context.Context, windowID string) (*SubmitResult, error)
	RecordResponse(ctx context.Context, claimNumber string, req ResponseRequest) (*UppfClaim, error)
	SettleClaim(ctx context.Context, claimNumber string, req SettleRequest) (*UppfClaim, error)
	GetClaim(ctx context.Context, claimNumber string) (*UppfClaim, error)
	ListClaims(ctx context.Context, req ListClaimsRequest) ([]UppfClaim, error)
	CountByStatus(ctx context.Context) (map[ClaimStatus]int64, error)
	CalculateLevy(ctx context.Context, in LevyInput) (*LevyResult, error)
}

// RateSync keeps the registry's product-scoped UPPF rates in step with the
// regulator.
type RateSync interface {
	Sync(ctx context.Context) (*SyncResult, error)
}

type CreateClaimRequest struct {
	ConsignmentID    string           `json:"consignment_id"`
	WindowID         string           `json:"window_id"`
	TariffPerLitreKm *decimal.Decimal `json:"tariff_per_litre_km,omitempty"`
}

type ResponseRequest struct {
	Approved       bool             `json:"approved"`
	ApprovedAmount *decimal.Decimal `json:"approved_amount,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

type SettleRequest struct {
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	Reference        string          `json:"reference"`
}

type ListClaimsRequest struct {
	WindowID string `form:"window_id"`
	Status   string `form:"status"`
	Limit    int    `form:"limit"`
}

type SubmitResult struct {
	WindowID            string          `json:"window_id"`
	SubmissionReference string          `json:"submission_reference,omitempty"`
	Submitted           int             `json:"submitted"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	Pushed              bool            `json:"pushed"`
	Warning             string          `json:"warning,omitempty"`
}

type SyncResult struct {
	Run     *RateSyncRun `json:"run"`
	Changes []RateChange `json:"changes"`
	Alerts  []RateAlert  `json:"alerts"`
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrConsignmentNotFound  = errors.New("consignment_not_found")
	ErrRouteNotFound        = errors.New("route_not_found")
	ErrNoEqualisationPoint  = errors.New("no_equalisation_point")
	ErrNotReconciled        = errors.New("consignment_not_reconciled")
	ErrNoEligibleDistance   = errors.New("no_eligible_distance")
	ErrClaimExists          = errors.New("claim_exists")
	ErrClaimNumberConflict  = errors.New("claim_number_conflict")
	ErrClaimNotFound        = errors.New("claim_not_found")
	ErrInvalidTransition    = errors.New("invalid_claim_transition")
	ErrRejectionReason      = errors.New("rejection_reason_required")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrWindowNotFound       = errors.New("window_not_found")
	ErrUnknownProduct       = errors.New("unknown_product")
	ErrInvalidLitres        = errors.New("invalid_litres")
	ErrRateSheetUnavailable = errors.New("rate_sheet_unavailable")
)
