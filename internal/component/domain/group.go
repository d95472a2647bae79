package domain

import "sort"

// SortComponents orders rows by build-up category, then code, then product scope.
func SortComponents(items []PricingComponent) {
	sort.SliceStable(items, func(i, j int) bool {
		oi, oj := items[i].Category.Order(), items[j].Category.Order()
		if oi != oj {
			return oi < oj
		}
		if items[i].Code != items[j].Code {
			return items[i].Code < items[j].Code
		}
		return productKey(items[i].ProductCode) < productKey(items[j].ProductCode)
	})
}

// GroupByCategory buckets components by category, keeping each bucket code-ordered.
func GroupByCategory(items []PricingComponent) map[Category][]PricingComponent {
	sorted := make([]PricingComponent, len(items))
	copy(sorted, items)
	SortComponents(sorted)

	groups := make(map[Category][]PricingComponent)
	for _, item := range sorted {
		groups[item.Category] = append(groups[item.Category], item)
	}
	return groups
}

// ResolveForProduct drops global rows shadowed by a product-scoped row with the same code.
func ResolveForProduct(items []PricingComponent, productCode string) []PricingComponent {
	scoped := make(map[string]bool)
	for _, item := range items {
		if productCode != "" && item.ProductCode != nil && *item.ProductCode == productCode {
			scoped[item.Code] = true
		}
	}

	out := make([]PricingComponent, 0, len(items))
	for _, item := range items {
		if !item.AppliesTo(productCode) {
			continue
		}
		isGlobal := item.ProductCode == nil || *item.ProductCode == ""
		if isGlobal && scoped[item.Code] {
			continue
		}
		out = append(out, item)
	}
	SortComponents(out)
	return out
}

func productKey(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
