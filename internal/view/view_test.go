package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"storefront-sync/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestTotals(t *testing.T) {
	c := model.Collection{
		{ID: "1", Price: 19.99, Quantity: 2},
		{ID: "2", Price: 5.01, InStock: boolPtr(false)},
		{ID: "3", Price: 0.1, Quantity: 3, InStock: boolPtr(true)},
	}

	got := Totals(c)
	want := Summary{TotalItems: 3, TotalQuantity: 6, TotalPrice: 45.29, InStock: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Totals() mismatch (-want +got):\n%s", diff)
	}
}

func TestTotals_Empty(t *testing.T) {
	if got := Totals(nil); got != (Summary{}) {
		t.Errorf("Totals(nil) = %+v, want zero", got)
	}
}

func TestTotals_DoesNotMutate(t *testing.T) {
	c := model.Collection{{ID: "1", Price: 10}}
	before := c.Clone()
	Totals(c)
	if diff := cmp.Diff(before, c); diff != "" {
		t.Errorf("Totals mutated input:\n%s", diff)
	}
}

func TestContainsAndFind(t *testing.T) {
	c := model.Collection{{ID: "a", Name: "Mirror"}, {ID: "b", Name: "Grip"}}

	if !Contains(c, "b") || Contains(c, "z") {
		t.Error("Contains() wrong")
	}
	item, ok := Find(c, "a")
	if !ok || item.Name != "Mirror" {
		t.Errorf("Find(a) = %+v, %v", item, ok)
	}
	if _, ok := Find(c, "z"); ok {
		t.Error("Find(z) should miss")
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, limit, want int
	}{
		{45, 20, 3},
		{40, 20, 2},
		{1, 20, 1},
		{0, 20, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.limit); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	items := make([]int, 45)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name      string
		page      int
		limit     int
		wantFirst int
		wantLen   int
		wantPage  model.Pagination
	}{
		{"first page", 1, 20, 0, 20, model.Pagination{CurrentPage: 1, TotalPages: 3, TotalItems: 45, ItemsPerPage: 20}},
		{"last partial page", 3, 20, 40, 5, model.Pagination{CurrentPage: 3, TotalPages: 3, TotalItems: 45, ItemsPerPage: 20}},
		{"past the end", 4, 20, -1, 0, model.Pagination{CurrentPage: 4, TotalPages: 3, TotalItems: 45, ItemsPerPage: 20}},
		{"defaults", 0, 0, 0, 20, model.Pagination{CurrentPage: 1, TotalPages: 3, TotalItems: 45, ItemsPerPage: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, p := Paginate(items, tt.page, tt.limit)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0] != tt.wantFirst {
				t.Errorf("first = %d, want %d", got[0], tt.wantFirst)
			}
			if p != tt.wantPage {
				t.Errorf("pagination = %+v, want %+v", p, tt.wantPage)
			}
		})
	}
}

func TestPaginate_CopiesSlice(t *testing.T) {
	items := []string{"a", "b", "c"}
	page, _ := Paginate(items, 1, 2)
	page[0] = "changed"
	if items[0] != "a" {
		t.Error("Paginate should not alias the input")
	}
}

func TestPaginate_EmptyIsNonNil(t *testing.T) {
	page, p := Paginate([]model.ProductRecord{}, 1, 20)
	if page == nil || len(page) != 0 {
		t.Errorf("page = %#v", page)
	}
	if p.TotalPages != 0 || p.TotalItems != 0 {
		t.Errorf("pagination = %+v", p)
	}
}
