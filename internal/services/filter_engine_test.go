package services

import (
	"reflect"
	"testing"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

func filterFixture() []domain.NormalizedItem {
	return []domain.NormalizedItem{
		{ItemFields: domain.ItemFields{ID: "1", Name: "Red Car", Price: 99.5}, Images: []string{}},
		{ItemFields: domain.ItemFields{ID: "2", Name: "Doll", Price: 50}, Images: []string{}},
		{ItemFields: domain.ItemFields{ID: "3", Name: "RACE CAR", Price: 250.25}, Images: []string{}},
		{ItemFields: domain.ItemFields{ID: "4", Name: "Kite", Price: 12}, Images: []string{}},
	}
}

func ids(items []domain.NormalizedItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestFilterEngineApply(t *testing.T) {
	t.Parallel()

	engine := NewFilterEngine(DefaultPriceBounds)
	items := filterFixture()

	cases := []struct {
		name   string
		filter domain.FilterState
		want   []string
	}{
		{name: "case insensitive name", filter: domain.FilterState{SearchText: "car", MinPrice: 0, MaxPrice: 1000}, want: []string{"1", "3"}},
		{name: "inclusive bounds", filter: domain.FilterState{MinPrice: 12, MaxPrice: 99.5}, want: []string{"1", "2", "4"}},
		{name: "text and price", filter: domain.FilterState{SearchText: "CAR", MinPrice: 100, MaxPrice: 300}, want: []string{"3"}},
		{name: "inverted range", filter: domain.FilterState{MinPrice: 200, MaxPrice: 100}, want: []string{}},
		{name: "no match", filter: domain.FilterState{SearchText: "train", MinPrice: 0, MaxPrice: 1000}, want: []string{}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := engine.Apply(items, tc.filter)
			if !reflect.DeepEqual(ids(got), tc.want) {
				t.Fatalf("expected %v got %v", tc.want, ids(got))
			}
		})
	}
}

func TestFilterEngineRoundTrip(t *testing.T) {
	t.Parallel()

	engine := NewFilterEngine(DefaultPriceBounds)
	items := filterFixture()
	bounds := engine.Bounds(items)
	got := engine.Apply(items, domain.FilterState{MinPrice: bounds.Min, MaxPrice: bounds.Max})
	if !reflect.DeepEqual(got, items) {
		t.Fatalf("expected unchanged list, got %v", ids(got))
	}
}

func TestFilterEngineBounds(t *testing.T) {
	t.Parallel()

	engine := NewFilterEngine(DefaultPriceBounds)
	got := engine.Bounds(filterFixture())
	if got.Min != 12 || got.Max != 251 {
		t.Fatalf("expected [12, 251] got [%v, %v]", got.Min, got.Max)
	}

	fractional := []domain.NormalizedItem{
		{ItemFields: domain.ItemFields{Price: 10.75}},
		{ItemFields: domain.ItemFields{Price: 10.25}},
	}
	got = engine.Bounds(fractional)
	if got.Min != 10 || got.Max != 11 {
		t.Fatalf("expected [10, 11] got [%v, %v]", got.Min, got.Max)
	}

	if empty := engine.Bounds(nil); empty != DefaultPriceBounds {
		t.Fatalf("expected default bounds got %+v", empty)
	}
}

func TestNewFilterEngineRejectsInvertedDefaults(t *testing.T) {
	t.Parallel()

	engine := NewFilterEngine(domain.PriceBounds{Min: 50, Max: 10})
	if engine.Defaults() != DefaultPriceBounds {
		t.Fatalf("expected fallback defaults got %+v", engine.Defaults())
	}
	custom := NewFilterEngine(domain.PriceBounds{Min: 5, Max: 500})
	if custom.Bounds(nil) != (domain.PriceBounds{Min: 5, Max: 500}) {
		t.Fatalf("expected custom defaults got %+v", custom.Bounds(nil))
	}
}
