package catalog

import (
	"strings"

	"storefront-sync/internal/model"
)

// DefaultFullFetchLimit bounds the unfiltered fetch behind the fallback.
const DefaultFullFetchLimit = 1000

// Policy drives the ClientFallback phase. Nil and zero fields take the
// DefaultPolicy values; an empty non-nil Strict or RelaxedOrder turns that
// rung off.
type Policy struct {
	// FullFetchLimit is the page size of the unfiltered catalog fetch.
	FullFetchLimit int

	// Strict passes run first; their matches are combined in pass order.
	Strict []MatchStrategy

	// Relaxed runs per field, in RelaxedOrder, only when the strict passes
	// matched nothing.
	Relaxed      MatchStrategy
	RelaxedOrder []Field
}

// DefaultPolicy is exact, then contains, then relaxed by brand, model and
// category.
func DefaultPolicy() Policy {
	return Policy{
		FullFetchLimit: DefaultFullFetchLimit,
		Strict:         []MatchStrategy{ExactStrategy{}, ContainsStrategy{}},
		Relaxed:        RelaxedStrategy{},
		RelaxedOrder:   []Field{FieldBrand, FieldModel, FieldCategory},
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.FullFetchLimit <= 0 {
		p.FullFetchLimit = def.FullFetchLimit
	}
	if p.Strict == nil {
		p.Strict = def.Strict
	}
	if p.Relaxed == nil {
		p.Relaxed = def.Relaxed
	}
	if p.RelaxedOrder == nil {
		p.RelaxedOrder = def.RelaxedOrder
	}
	return p
}

// ladderResult is the outcome of running the ladder over a product list.
type ladderResult struct {
	items []model.ProductRecord
	pass  string
}

// run applies the ladder to products. The returned slice keeps catalog
// order within each pass and never repeats a product.
func (p Policy) run(q model.FilterQuery, products []model.ProductRecord) ladderResult {
	seen := make(map[string]bool)
	var out ladderResult
	collect := func(pred Predicate, name string) {
		if pred == nil {
			return
		}
		for _, prod := range products {
			key := productKey(prod)
			if seen[key] || !pred(prod) {
				continue
			}
			seen[key] = true
			out.items = append(out.items, prod)
			if out.pass == "" {
				out.pass = name
			}
		}
	}

	for _, s := range p.Strict {
		collect(s.Predicate(q), s.Name())
	}
	if len(out.items) > 0 || p.Relaxed == nil {
		return out
	}

	for _, f := range p.RelaxedOrder {
		sub := only(q, f)
		if len(activeFields(sub)) == 0 {
			continue
		}
		collect(p.Relaxed.Predicate(sub), p.Relaxed.Name())
	}
	return out
}

func productKey(p model.ProductRecord) string {
	if p.ID != "" {
		return p.ID
	}
	return p.Slug + "|" + p.Name
}

// constraints applies the non-taxonomy filters (search, price range and
// stock) that hold regardless of which ladder pass matched.
func constraints(q model.FilterQuery) Predicate {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	return func(p model.ProductRecord) bool {
		if search != "" && !searchMatches(p, search) {
			return false
		}
		price := float64(p.Price)
		if q.PriceMin != nil && price < *q.PriceMin {
			return false
		}
		if q.PriceMax != nil && price > *q.PriceMax {
			return false
		}
		if q.InStock != nil && *q.InStock && !p.Available() {
			return false
		}
		return true
	}
}

func searchMatches(p model.ProductRecord, term string) bool {
	for _, field := range []string{p.Name, p.Brand.Name, p.SKU, p.Description} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func filter(products []model.ProductRecord, pred Predicate) []model.ProductRecord {
	out := make([]model.ProductRecord, 0, len(products))
	for _, p := range products {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}
