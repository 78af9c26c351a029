package catalog

import (
	"cmp"
	"slices"
	"strings"

	"car-showroom/internal/domain"

	"golang.org/x/text/cases"
)

// Query filters and sorts items. The input slice is left untouched.
func Query(items []domain.Car, filters domain.FilterState) []domain.Car {
	fold := cases.Fold()
	keyword := fold.String(strings.TrimSpace(filters.Keyword))
	brand := strings.TrimSpace(filters.Brand)
	bodyType := strings.TrimSpace(filters.BodyType)
	fuel := strings.TrimSpace(filters.Fuel)

	result := make([]domain.Car, 0, len(items))
	for _, car := range items {
		if keyword != "" &&
			!strings.Contains(fold.String(car.Name), keyword) &&
			!strings.Contains(fold.String(car.Brand), keyword) {
			continue
		}
		if brand != "" && strings.TrimSpace(car.Brand) != brand {
			continue
		}
		if bodyType != "" && strings.TrimSpace(car.BodyType) != bodyType {
			continue
		}
		if fuel != "" && strings.TrimSpace(car.Fuel) != fuel {
			continue
		}
		result = append(result, car)
	}

	if compare := comparator(filters.SortBy); compare != nil {
		slices.SortStableFunc(result, compare)
	}
	return result
}

func comparator(key domain.SortKey) func(a, b domain.Car) int {
	switch key {
	case domain.SortPriceAsc:
		return func(a, b domain.Car) int { return cmp.Compare(a.Price, b.Price) }
	case domain.SortPriceDesc:
		return func(a, b domain.Car) int { return cmp.Compare(b.Price, a.Price) }
	case domain.SortYearDesc:
		return func(a, b domain.Car) int { return cmp.Compare(b.Year, a.Year) }
	case domain.SortMileageAsc:
		return func(a, b domain.Car) int { return cmp.Compare(a.Mileage, b.Mileage) }
	}
	return nil
}

// DistinctBrands lists the brands present in items
func DistinctBrands(items []domain.Car) []string {
	return distinct(items, func(c domain.Car) string { return c.Brand })
}

// DistinctBodyTypes lists the body types present in items
func DistinctBodyTypes(items []domain.Car) []string {
	return distinct(items, func(c domain.Car) string { return c.BodyType })
}

// DistinctFuels lists the fuel types present in items
func DistinctFuels(items []domain.Car) []string {
	return distinct(items, func(c domain.Car) string { return c.Fuel })
}

// distinct keeps the first occurrence of every trimmed, non-empty value
func distinct(items []domain.Car, value func(domain.Car) string) []string {
	seen := make(map[string]struct{}, len(items))
	out := []string{}
	for _, car := range items {
		v := strings.TrimSpace(value(car))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Facets groups the filter options derived from a collection
type Facets struct {
	Brands    []string `json:"brands"`
	BodyTypes []string `json:"bodyTypes"`
	Fuels     []string `json:"fuels"`
}

// FacetsOf derives all facet lists for items
func FacetsOf(items []domain.Car) Facets {
	return Facets{
		Brands:    DistinctBrands(items),
		BodyTypes: DistinctBodyTypes(items),
		Fuels:     DistinctFuels(items),
	}
}
