package model

import (
	"reflect"
	"testing"
)

func TestFilterQuery_Normalize(t *testing.T) {
	q := FilterQuery{
		Search:   "  exhaust ",
		Category: []string{"engine-parts, body", " ", ""},
		Brand:    " royal-enfield ",
	}

	got := q.Normalize()

	if got.Page != DefaultPage || got.Limit != DefaultLimit {
		t.Errorf("paging = %d/%d, want defaults", got.Page, got.Limit)
	}
	if got.Sort != DefaultSort || got.Order != DefaultOrder {
		t.Errorf("sort = %s %s, want defaults", got.Sort, got.Order)
	}
	if got.Search != "exhaust" || got.Brand != "royal-enfield" {
		t.Errorf("trim failed: %q %q", got.Search, got.Brand)
	}
	if want := []string{"engine-parts", "body"}; !reflect.DeepEqual(got.Category, want) {
		t.Errorf("Category = %v, want %v", got.Category, want)
	}
	// The input is a value and must not change.
	if q.Page != 0 || q.Search != "  exhaust " {
		t.Error("Normalize mutated its receiver")
	}
}

func TestFilterQuery_HasTaxonomyFilter(t *testing.T) {
	tests := []struct {
		name string
		q    FilterQuery
		want bool
	}{
		{"empty", FilterQuery{}, false},
		{"search only", FilterQuery{Search: "chain"}, false},
		{"brand", FilterQuery{Brand: "ktm"}, true},
		{"model", FilterQuery{Model: "duke-390"}, true},
		{"category", FilterQuery{Category: []string{"brakes"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.HasTaxonomyFilter(); got != tt.want {
				t.Errorf("HasTaxonomyFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}
