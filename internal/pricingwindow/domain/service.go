package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
)

type Service interface {
	CreateWindow(ctx context.Context, req CreateWindowRequest) (*PricingWindow, error)
	CreateBiWeeklyWindow(ctx context.Context) (*BiWeeklyResult, error)
	CalculateAndPublishPrices(ctx context.Context, windowID string, overrides []pricebuildupdomain.Override) (*PublishResult, error)
	TransitionWindow(ctx context.Context, currentID, nextID string) ([]PriceChange, error)
	ArchiveOldWindows(ctx context.Context, olderThanDays int) (int64, error)
	CloseExpiredWindows(ctx context.Context) (int64, error)
	ListPastDeadline(ctx context.Context) ([]PricingWindow, error)
	GetWindow(ctx context.Context, windowID string) (*PricingWindow, error)
	GetActiveWindow(ctx context.Context) (*PricingWindow, error)
	ListWindows(ctx context.Context, req ListWindowsRequest) ([]PricingWindow, error)
	ListStationPrices(ctx context.Context, windowID string) ([]StationPrice, error)
	ExportPriceSchedule(ctx context.Context, windowID string) ([]byte, error)
}

type CreateWindowRequest struct {
	WindowNumber       int        `json:"window_number"`
	Year               int        `json:"year"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`
}

type ListWindowsRequest struct {
	Status string `form:"status"`
	Year   int    `form:"year"`
	Limit  int    `form:"limit"`
}

type BiWeeklyResult struct {
	Window  *PricingWindow `json:"window"`
	Created bool           `json:"created"`
	Publish *PublishResult `json:"publish,omitempty"`
	// PublishError is set when the window was created but publishing failed.
	PublishError string `json:"publish_error,omitempty"`
}

type PublishResult struct {
	WindowID  string   `json:"window_id"`
	Published int      `json:"published"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Delivered int      `json:"delivered"`
	// Activated is false when another window was still ACTIVE; the prices
	// are staged and go live on TransitionWindow.
	Activated bool     `json:"activated"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
}

type PriceChange struct {
	ProductCode string          `json:"product_code"`
	StationID   string          `json:"station_id"`
	Previous    decimal.Decimal `json:"previous"`
	Current     decimal.Decimal `json:"current"`
	ChangePct   decimal.Decimal `json:"change_pct"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidWindowNumber = errors.New("invalid_window_number")
	ErrInvalidDateRange    = errors.New("invalid_date_range")
	ErrInvalidDeadline     = errors.New("invalid_submission_deadline")
	ErrWindowExists        = errors.New("window_exists")
	ErrWindowOverlap       = errors.New("window_overlap")
	ErrWindowNotFound      = errors.New("window_not_found")
	ErrInvalidTransition   = errors.New("invalid_window_transition")
	ErrCalculationInvalid  = errors.New("calculation_invalid")
	ErrCreationInProgress  = errors.New("window_creation_in_progress")
	ErrNoStations          = errors.New("no_active_stations")
)
