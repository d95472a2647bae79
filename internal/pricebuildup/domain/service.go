package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
)

type Service interface {
	CalculatePrice(ctx context.Context, req CalculateRequest) (*Calculation, error)
}

type CalculateRequest struct {
	ProductCode   string    `json:"product_code"`
	EffectiveDate time.Time `json:"effective_date"`
	// ExRefineryPrice falls back to the registry EXREF rate when nil.
	ExRefineryPrice *decimal.Decimal `json:"ex_refinery_price,omitempty"`
	Overrides       []Override       `json:"overrides,omitempty"`
}

var (
	ErrInvalidProduct     = errors.New("invalid_product_code")
	ErrInvalidOverride    = errors.New("invalid_override")
	ErrExRefineryNotFound = componentdomain.ErrExRefineryNotFound
)
