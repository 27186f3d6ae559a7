package services

import (
	"math"
	"strings"

	"golang.org/x/text/cases"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

const (
	defaultMinPrice = 0
	defaultMaxPrice = 10000
)

// DefaultPriceBounds is used when a category holds no items.
var DefaultPriceBounds = domain.PriceBounds{Min: defaultMinPrice, Max: defaultMaxPrice}

// FilterEngine narrows a visible item list by name and price.
type FilterEngine struct {
	defaults domain.PriceBounds
}

// NewFilterEngine constructs a FilterEngine. Empty categories report the
// supplied default bounds; an inverted or zero range falls back to DefaultPriceBounds.
func NewFilterEngine(defaults domain.PriceBounds) *FilterEngine {
	if defaults.Max <= defaults.Min {
		defaults = DefaultPriceBounds
	}
	return &FilterEngine{defaults: defaults}
}

// Apply returns the items whose name contains the search text, ignoring case,
// and whose price lies within the filter's inclusive range. Order is preserved.
// A minimum above the maximum yields an empty result.
func (e *FilterEngine) Apply(items []domain.NormalizedItem, filter domain.FilterState) []domain.NormalizedItem {
	out := make([]domain.NormalizedItem, 0, len(items))
	if filter.MinPrice > filter.MaxPrice {
		return out
	}
	folder := cases.Fold()
	needle := folder.String(filter.SearchText)
	bounds := filter.Bounds()
	for _, item := range items {
		if !bounds.Contains(item.Price) {
			continue
		}
		if needle != "" && !strings.Contains(folder.String(item.Name), needle) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Bounds derives the initial price range for a freshly fetched item set: the
// floor of the cheapest price and the ceiling of the most expensive.
func (e *FilterEngine) Bounds(items []domain.NormalizedItem) domain.PriceBounds {
	if len(items) == 0 {
		return e.defaults
	}
	lo, hi := items[0].Price, items[0].Price
	for _, item := range items[1:] {
		lo = math.Min(lo, item.Price)
		hi = math.Max(hi, item.Price)
	}
	return domain.PriceBounds{Min: math.Floor(lo), Max: math.Ceil(hi)}
}

// Defaults returns the bounds reported for empty categories.
func (e *FilterEngine) Defaults() domain.PriceBounds {
	return e.defaults
}
