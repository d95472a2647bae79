// Package domain holds the price build-up calculation. Everything here is
// pure: the same snapshot and overrides always give the same result.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
)

// Override replaces a component's registry rate for one calculation only.
type Override struct {
	ComponentCode string          `json:"component_code"`
	Value         decimal.Decimal `json:"value"`
	Reason        string          `json:"reason"`
}

type Input struct {
	ProductCode     string
	EffectiveDate   time.Time
	ExRefineryPrice decimal.Decimal
	Components      []componentdomain.PricingComponent
	Overrides       []Override
}

// Line is one applied build-up step. Value is the amount added to the
// running total; RunningTotal is the total after the step.
type Line struct {
	Code             string                   `json:"code"`
	Name             string                   `json:"name"`
	Category         componentdomain.Category `json:"category"`
	Unit             componentdomain.Unit     `json:"unit"`
	Rate             decimal.Decimal          `json:"rate"`
	Value            decimal.Decimal          `json:"value"`
	RunningTotal     decimal.Decimal          `json:"running_total"`
	IsOverridden     bool                     `json:"is_overridden"`
	OverrideReason   string                   `json:"override_reason,omitempty"`
	SourceDocumentID string                   `json:"source_document_id,omitempty"`
}

type Result struct {
	ProductCode     string          `json:"product_code"`
	EffectiveDate   time.Time       `json:"effective_date"`
	ExRefineryPrice decimal.Decimal `json:"ex_refinery_price"`
	ExPumpPrice     decimal.Decimal `json:"ex_pump_price"`
	Components      []Line          `json:"components"`
	SourceDocuments []string        `json:"source_documents"`
	TotalLevies     decimal.Decimal `json:"total_levies"`
	TotalMargins    decimal.Decimal `json:"total_margins"`
	Warnings        []string        `json:"warnings,omitempty"`
}

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v Validation) Valid() bool { return len(v.Errors) == 0 }

// Bounds are the plausibility limits Validate checks against.
type Bounds struct {
	MinPrice      decimal.Decimal
	MaxPrice      decimal.Decimal
	RequiredCodes []string
}

func DefaultBounds() Bounds {
	return Bounds{
		MinPrice:      decimal.RequireFromString("0.50"),
		MaxPrice:      decimal.RequireFromString("50.00"),
		RequiredCodes: []string{componentdomain.CodeExRefinery, componentdomain.CodeBOST, componentdomain.CodeUPPF},
	}
}

// Calculation is what the service returns to callers.
type Calculation struct {
	Result     Result     `json:"result"`
	Validation Validation `json:"validation"`
}
