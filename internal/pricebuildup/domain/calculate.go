package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
)

const pumpPricePlaces = 4

var (
	hundred = decimal.NewFromInt(100)

	buildUpSteps = []componentdomain.Category{
		componentdomain.CategoryLevy,
		componentdomain.CategoryRegulatoryMargin,
		componentdomain.CategoryDistributionMargin,
		componentdomain.CategoryOMCMargin,
		componentdomain.CategoryDealerMargin,
	}

	singleComponentSteps = map[componentdomain.Category]bool{
		componentdomain.CategoryOMCMargin:    true,
		componentdomain.CategoryDealerMargin: true,
	}
)

// Calculate applies the build-up steps in category order on top of the
// ex-refinery price. Percentage components use the running total at the
// point they are applied.
func Calculate(in Input) Result {
	overrides := make(map[string]Override, len(in.Overrides))
	for _, o := range in.Overrides {
		overrides[strings.ToUpper(strings.TrimSpace(o.ComponentCode))] = o
	}

	components := make([]componentdomain.PricingComponent, len(in.Components))
	copy(components, in.Components)
	componentdomain.SortComponents(components)

	result := Result{
		ProductCode:     strings.ToUpper(strings.TrimSpace(in.ProductCode)),
		EffectiveDate:   in.EffectiveDate,
		ExRefineryPrice: in.ExRefineryPrice,
		TotalLevies:     decimal.Zero,
		TotalMargins:    decimal.Zero,
	}

	base := Line{
		Code:     componentdomain.CodeExRefinery,
		Name:     "Ex-Refinery Price",
		Category: componentdomain.CategoryOther,
		Unit:     componentdomain.UnitPerLitre,
		Rate:     in.ExRefineryPrice,
		Value:    in.ExRefineryPrice,
	}
	documents := make(map[string]struct{})
	for _, c := range components {
		if c.Code == componentdomain.CodeExRefinery {
			base.Name = c.Name
			base.SourceDocumentID = c.SourceDocumentID
			break
		}
	}
	if o, ok := overrides[componentdomain.CodeExRefinery]; ok {
		base.Rate = o.Value
		base.Value = o.Value
		base.IsOverridden = true
		base.OverrideReason = o.Reason
		result.ExRefineryPrice = o.Value
	}
	running := base.Value
	base.RunningTotal = running
	result.Components = append(result.Components, base)
	if base.SourceDocumentID != "" {
		documents[base.SourceDocumentID] = struct{}{}
	}

	for _, category := range buildUpSteps {
		var items []componentdomain.PricingComponent
		for _, c := range components {
			if c.Category == category {
				items = append(items, c)
			}
		}
		if len(items) == 0 {
			continue
		}
		if singleComponentSteps[category] && len(items) > 1 {
			ignored := make([]string, 0, len(items)-1)
			for _, extra := range items[1:] {
				ignored = append(ignored, extra.Code)
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"multiple %s components active, using %s and ignoring %s",
				category, items[0].Code, strings.Join(ignored, ", ")))
			items = items[:1]
		}

		for _, c := range items {
			line := Line{
				Code:             c.Code,
				Name:             c.Name,
				Category:         c.Category,
				Unit:             c.Unit,
				Rate:             c.RateValue,
				SourceDocumentID: c.SourceDocumentID,
			}
			if o, ok := overrides[c.Code]; ok {
				line.Rate = o.Value
				line.IsOverridden = true
				line.OverrideReason = o.Reason
			}

			if line.Unit == componentdomain.UnitPercentage {
				line.Value = running.Mul(line.Rate).Div(hundred)
			} else {
				line.Value = line.Rate
			}
			running = running.Add(line.Value)
			line.RunningTotal = running

			if category == componentdomain.CategoryLevy {
				result.TotalLevies = result.TotalLevies.Add(line.Value)
			} else {
				result.TotalMargins = result.TotalMargins.Add(line.Value)
			}
			if line.SourceDocumentID != "" {
				documents[line.SourceDocumentID] = struct{}{}
			}
			result.Components = append(result.Components, line)
		}
	}

	result.ExPumpPrice = running.Round(pumpPricePlaces)
	result.SourceDocuments = make([]string, 0, len(documents))
	for doc := range documents {
		result.SourceDocuments = append(result.SourceDocuments, doc)
	}
	sort.Strings(result.SourceDocuments)
	return result
}

// Validate checks a result against the default bounds.
func Validate(result Result, components []componentdomain.PricingComponent) Validation {
	return ValidateWithin(result, components, DefaultBounds())
}

// ValidateWithin returns blocking errors and non-blocking warnings.
func ValidateWithin(result Result, components []componentdomain.PricingComponent, bounds Bounds) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}
	v.Warnings = append(v.Warnings, result.Warnings...)

	if result.ExPumpPrice.LessThan(bounds.MinPrice) {
		v.Errors = append(v.Errors, fmt.Sprintf("ex-pump price %s is below minimum %s",
			result.ExPumpPrice.StringFixed(pumpPricePlaces), bounds.MinPrice.StringFixed(2)))
	}

	present := make(map[string]bool, len(components))
	hasLevy := false
	for _, c := range components {
		present[c.Code] = true
		if c.Category == componentdomain.CategoryLevy {
			hasLevy = true
		}
	}
	if result.ExRefineryPrice.IsPositive() {
		present[componentdomain.CodeExRefinery] = true
	}
	for _, code := range bounds.RequiredCodes {
		if !present[code] {
			v.Errors = append(v.Errors, fmt.Sprintf("required component %s is missing", code))
		}
	}
	if !hasLevy {
		v.Errors = append(v.Errors, "at least one LEVY component is required")
	}

	if result.ExPumpPrice.GreaterThan(bounds.MaxPrice) {
		v.Warnings = append(v.Warnings, fmt.Sprintf("ex-pump price %s is above expected maximum %s",
			result.ExPumpPrice.StringFixed(pumpPricePlaces), bounds.MaxPrice.StringFixed(2)))
	}
	if result.TotalLevies.GreaterThan(result.ExRefineryPrice) {
		v.Warnings = append(v.Warnings, fmt.Sprintf("total levies %s exceed ex-refinery price %s",
			result.TotalLevies.String(), result.ExRefineryPrice.String()))
	}
	return v
}
