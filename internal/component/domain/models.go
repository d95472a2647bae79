package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryLevy               Category = "LEVY"
	CategoryRegulatoryMargin   Category = "REGULATORY_MARGIN"
	CategoryDistributionMargin Category = "DISTRIBUTION_MARGIN"
	CategoryOMCMargin          Category = "OMC_MARGIN"
	CategoryDealerMargin       Category = "DEALER_MARGIN"
	CategoryOther              Category = "OTHER"
)

// Categories lists categories in build-up application order.
var Categories = []Category{
	CategoryLevy,
	CategoryRegulatoryMargin,
	CategoryDistributionMargin,
	CategoryOMCMargin,
	CategoryDealerMargin,
	CategoryOther,
}

// Order returns the position of c in the build-up, unknown categories last.
func (c Category) Order() int {
	for i, candidate := range Categories {
		if candidate == c {
			return i
		}
	}
	return len(Categories)
}

func (c Category) Valid() bool {
	return c.Order() < len(Categories)
}

type Unit string

const (
	UnitPerLitre   Unit = "PER_LITRE"
	UnitPercentage Unit = "PERCENTAGE"
)

func (u Unit) Valid() bool {
	return u == UnitPerLitre || u == UnitPercentage
}

const (
	CodeExRefinery = "EXREF"
	CodeBOST       = "BOST"
	CodeUPPF       = "UPPF"
)

// PricingComponent is one effective-dated rate line. Rows are append-only;
// superseding a rate closes EffectiveTo and inserts a new row.
type PricingComponent struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;index:idx_pricing_components_lookup,priority:1"`
	Code              string          `json:"code" gorm:"type:text;not null;index:idx_pricing_components_lookup,priority:2"`
	Name              string          `json:"name" gorm:"type:text;not null"`
	Category          Category        `json:"category" gorm:"type:text;not null"`
	Unit              Unit            `json:"unit" gorm:"type:text;not null"`
	RateValue         decimal.Decimal `json:"rate_value" gorm:"type:numeric(20,6);not null"`
	ProductCode       *string         `json:"product_code,omitempty" gorm:"type:text"`
	EffectiveFrom     time.Time       `json:"effective_from" gorm:"not null;index:idx_pricing_components_lookup,priority:3"`
	EffectiveTo       *time.Time      `json:"effective_to,omitempty" gorm:"index:idx_pricing_components_lookup,priority:4"`
	IsActive          bool            `json:"is_active" gorm:"not null"`
	SourceDocumentID  string          `json:"source_document_id,omitempty" gorm:"type:text"`
	ApprovalReference string          `json:"approval_reference,omitempty" gorm:"type:text"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
}

func (PricingComponent) TableName() string { return "pricing_components" }

// AppliesTo reports whether the row covers productCode.
func (c PricingComponent) AppliesTo(productCode string) bool {
	return c.ProductCode == nil || *c.ProductCode == "" || productCode == "" || *c.ProductCode == productCode
}

// EffectiveAt reports whether asOf falls inside [EffectiveFrom, EffectiveTo).
func (c PricingComponent) EffectiveAt(asOf time.Time) bool {
	if asOf.Before(c.EffectiveFrom) {
		return false
	}
	return c.EffectiveTo == nil || asOf.Before(*c.EffectiveTo)
}
