// Package view computes the read-only projections the storefront renders
// from a collection or a result set. Nothing here mutates its input.
package view

import (
	"math"

	"storefront-sync/internal/model"
)

// Summary is the derived state shown next to a collection.
type Summary struct {
	TotalItems    int     `json:"totalItems"`
	TotalQuantity int     `json:"totalQuantity"`
	TotalPrice    float64 `json:"totalPrice"`
	InStock       int     `json:"inStock"`
}

// Totals summarizes c. Items without an explicit stock flag count as in stock.
func Totals(c model.Collection) Summary {
	s := Summary{TotalItems: len(c)}
	var cents int64
	for _, item := range c {
		units := item.Units()
		s.TotalQuantity += units
		cents += int64(math.Round(item.Price*100)) * int64(units)
		if item.InStock == nil || *item.InStock {
			s.InStock++
		}
	}
	s.TotalPrice = float64(cents) / 100
	return s
}

// Contains reports whether an item with id is present.
func Contains(c model.Collection, id string) bool {
	return c.IndexOf(id) >= 0
}

// Find returns a copy of the item with id.
func Find(c model.Collection, id string) (model.CollectionItem, bool) {
	i := c.IndexOf(id)
	if i < 0 {
		return model.CollectionItem{}, false
	}
	return c[i], true
}

// PageCount is ceil(total/limit), and 0 for an empty set.
func PageCount(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Paginate slices one page out of items and describes it. Page and limit
// below 1 fall back to the catalog defaults. A page past the end yields an
// empty slice with the true totals. The returned slice is a copy.
func Paginate[T any](items []T, page, limit int) ([]T, model.Pagination) {
	if page < 1 {
		page = model.DefaultPage
	}
	if limit < 1 {
		limit = model.DefaultLimit
	}

	total := len(items)
	p := model.Pagination{
		CurrentPage:  page,
		TotalPages:   PageCount(total, limit),
		TotalItems:   total,
		ItemsPerPage: limit,
	}

	start := (page - 1) * limit
	if start >= total {
		return []T{}, p
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, p
}
