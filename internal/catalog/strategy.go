package catalog

import (
	"strings"

	"storefront-sync/internal/model"
)

// Field is a taxonomy filter that can arm the fallback ladder.
type Field string

const (
	FieldBrand    Field = "brand"
	FieldModel    Field = "model"
	FieldCategory Field = "category"
)

// Predicate reports whether a product satisfies a pass.
type Predicate func(model.ProductRecord) bool

// MatchStrategy is one named pass of the fallback ladder. Predicate returns
// nil when the query has nothing for the pass to match on.
type MatchStrategy interface {
	Name() string
	Predicate(q model.FilterQuery) Predicate
}

// normalize lowercases s and folds hyphens and underscores to single spaces,
// so "royal-enfield" and "Royal Enfield" compare equal.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// variants returns the lowercased value in its hyphenated and spaced forms.
func variants(value string) []string {
	spaced := normalize(value)
	if spaced == "" {
		return nil
	}
	hyphenated := strings.ReplaceAll(spaced, " ", "-")
	if hyphenated == spaced {
		return []string{spaced}
	}
	return []string{spaced, hyphenated}
}

// activeFields lists the taxonomy filters set on q, in ladder order.
func activeFields(q model.FilterQuery) []Field {
	var fields []Field
	if q.Brand != "" {
		fields = append(fields, FieldBrand)
	}
	if q.Model != "" {
		fields = append(fields, FieldModel)
	}
	if len(q.Category) > 0 {
		fields = append(fields, FieldCategory)
	}
	return fields
}

// fieldValues returns the filter values for one field.
func fieldValues(q model.FilterQuery, f Field) []string {
	switch f {
	case FieldBrand:
		return []string{q.Brand}
	case FieldModel:
		return []string{q.Model}
	case FieldCategory:
		return q.Category
	}
	return nil
}

// only returns a copy of q restricted to a single taxonomy field.
func only(q model.FilterQuery, f Field) model.FilterQuery {
	out := q
	out.Brand, out.Model, out.Category = "", "", nil
	switch f {
	case FieldBrand:
		out.Brand = q.Brand
	case FieldModel:
		out.Model = q.Model
	case FieldCategory:
		out.Category = q.Category
	}
	return out
}

// allFields builds a predicate that requires every active field to match.
func allFields(q model.FilterQuery, match func(p model.ProductRecord, f Field, value string) bool) Predicate {
	fields := activeFields(q)
	if len(fields) == 0 {
		return nil
	}
	return func(p model.ProductRecord) bool {
		for _, f := range fields {
			ok := false
			for _, v := range fieldValues(q, f) {
				if match(p, f, v) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		return true
	}
}

// ExactStrategy matches normalized equality against the brand name or slug,
// a compatible model, and the category name or slug.
type ExactStrategy struct{}

func (ExactStrategy) Name() string { return "exact" }

func (ExactStrategy) Predicate(q model.FilterQuery) Predicate {
	return allFields(q, func(p model.ProductRecord, f Field, value string) bool {
		want := normalize(value)
		if want == "" {
			return false
		}
		switch f {
		case FieldBrand:
			return normalize(p.Brand.Name) == want || normalize(p.Brand.Slug) == want
		case FieldModel:
			for _, m := range p.CompatibleModels {
				if normalize(m) == want {
					return true
				}
			}
			return false
		case FieldCategory:
			return normalize(p.Category.Name) == want || normalize(p.Category.Slug) == want
		}
		return false
	})
}

// ContainsStrategy matches when the filter value, hyphenated or spaced,
// appears inside the product name, brand or category. Model filters also
// look at the compatible model list.
type ContainsStrategy struct{}

func (ContainsStrategy) Name() string { return "contains" }

func (ContainsStrategy) Predicate(q model.FilterQuery) Predicate {
	return allFields(q, func(p model.ProductRecord, f Field, value string) bool {
		haystack := []string{p.Name, p.Brand.Name, p.Brand.Slug, p.Category.Name, p.Category.Slug}
		if f == FieldModel {
			haystack = append(haystack, p.CompatibleModels...)
		}
		for _, form := range variants(value) {
			for _, h := range haystack {
				if h != "" && strings.Contains(strings.ToLower(h), form) {
					return true
				}
			}
		}
		return false
	})
}

// RelaxedStrategy looks at the product name only. A field matches when the
// normalized name contains the normalized value, or when every word of the
// value starts some word of the name. Fields are OR-ed.
type RelaxedStrategy struct{}

func (RelaxedStrategy) Name() string { return "relaxed" }

func (RelaxedStrategy) Predicate(q model.FilterQuery) Predicate {
	fields := activeFields(q)
	if len(fields) == 0 {
		return nil
	}
	return func(p model.ProductRecord) bool {
		name := normalize(p.Name)
		if name == "" {
			return false
		}
		for _, f := range fields {
			for _, v := range fieldValues(q, f) {
				if nameMatches(name, normalize(v)) {
					return true
				}
			}
		}
		return false
	}
}

func nameMatches(name, value string) bool {
	if value == "" {
		return false
	}
	if strings.Contains(name, value) {
		return true
	}
	words := strings.Fields(name)
	for _, token := range strings.Fields(value) {
		found := false
		for _, w := range words {
			if strings.HasPrefix(w, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
