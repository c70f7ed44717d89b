package model

import "strings"

// Defaults applied by FilterQuery.Normalize.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	DefaultSort  = "createdAt"
	DefaultOrder = "desc"
)

// FilterQuery is the normalized set of catalog search/filter parameters.
// It is a value type: every resolution attempt works on its own copy.
type FilterQuery struct {
	Search      string   `json:"search,omitempty"`
	Category    []string `json:"category,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Model       string   `json:"model,omitempty"`
	ProductType []string `json:"productType,omitempty"`
	PriceMin    *float64 `json:"priceMin,omitempty"`
	PriceMax    *float64 `json:"priceMax,omitempty"`
	InStock     *bool    `json:"inStock,omitempty"`
	Page        int      `json:"page"`
	Limit       int      `json:"limit"`
	Sort        string   `json:"sort,omitempty"`
	Order       string   `json:"order,omitempty"`
}

// Normalize returns a copy with paging defaults filled in, whitespace
// trimmed and empty multi-values dropped.
func (q FilterQuery) Normalize() FilterQuery {
	out := q
	out.Search = strings.TrimSpace(q.Search)
	out.Brand = strings.TrimSpace(q.Brand)
	out.Model = strings.TrimSpace(q.Model)
	out.Category = compactValues(q.Category)
	out.ProductType = compactValues(q.ProductType)
	if out.Page < 1 {
		out.Page = DefaultPage
	}
	if out.Limit < 1 {
		out.Limit = DefaultLimit
	}
	if out.Sort == "" {
		out.Sort = DefaultSort
	}
	if out.Order == "" {
		out.Order = DefaultOrder
	}
	return out
}

// HasTaxonomyFilter reports whether brand, model or category is set.
// Only these fields arm the client-side fallback.
func (q FilterQuery) HasTaxonomyFilter() bool {
	return q.Brand != "" || q.Model != "" || len(q.Category) > 0
}

// Unfiltered returns the query used for a full catalog fetch.
func (q FilterQuery) Unfiltered(limit int) FilterQuery {
	return FilterQuery{Page: 1, Limit: limit, Sort: q.Sort, Order: q.Order}
}

func compactValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// NamedRef is an embedded brand or category reference.
type NamedRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProductRecord is a catalog product as returned by the remote API.
// Read-only within this service.
type ProductRecord struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Slug             string   `json:"slug,omitempty"`
	Brand            NamedRef `json:"brand"`
	Category         NamedRef `json:"category"`
	CompatibleModels []string `json:"compatibleModels,omitempty"`
	Description      string   `json:"description,omitempty"`
	SKU              string   `json:"sku,omitempty"`
	Price            Price    `json:"price"`
	Tags             []string `json:"tags,omitempty"`
	Images           []string `json:"images,omitempty"`
	Stock            int      `json:"stock,omitempty"`
	InStock          *bool    `json:"inStock,omitempty"`
}

// Available reports stock, preferring the explicit flag over the count.
func (p ProductRecord) Available() bool {
	if p.InStock != nil {
		return *p.InStock
	}
	return p.Stock > 0
}


// Pagination is the page block consumed by the storefront. Field names are
// part of the contract.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// CatalogPage is one page of products plus its pagination block.
type CatalogPage struct {
	Items      []ProductRecord `json:"items"`
	Pagination Pagination      `json:"pagination"`
}
