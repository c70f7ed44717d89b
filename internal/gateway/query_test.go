package gateway

import (
	"errors"
	"net/url"
	"testing"

	"storefront-sync/internal/model"
)

func TestEncodeQuery(t *testing.T) {
	min := 100.5
	inStock := true
	q := model.FilterQuery{
		Search:   "crash guard",
		Category: []string{"protection", "guards"},
		Brand:    "royal-enfield",
		Model:    "classic-350",
		PriceMin: &min,
		InStock:  &inStock,
		Page:     2,
		Limit:    12,
		Sort:     "price",
		Order:    "asc",
	}

	values, err := url.ParseQuery(EncodeQuery(q))
	if err != nil {
		t.Fatalf("ParseQuery() error: %v", err)
	}

	want := map[string]string{
		"search":   "crash guard",
		"category": "protection,guards",
		"brand":    "royal-enfield",
		"model":    "classic-350",
		"priceMin": "100.5",
		"inStock":  "true",
		"page":     "2",
		"limit":    "12",
		"sort":     "price",
		"order":    "asc",
	}
	for key, v := range want {
		if got := values.Get(key); got != v {
			t.Errorf("%s = %q, want %q", key, got, v)
		}
	}
	if values.Has("priceMax") || values.Has("productType") {
		t.Errorf("unset fields should be omitted: %v", values)
	}
}

func TestEncodeQuery_Empty(t *testing.T) {
	if got := EncodeQuery(model.FilterQuery{}); got != "" {
		t.Errorf("EncodeQuery(zero) = %q, want empty", got)
	}
}

func TestDecodeQuery_RoundTrip(t *testing.T) {
	max := 2500.0
	in := model.FilterQuery{
		Brand:    "honda",
		Category: []string{"exhausts"},
		PriceMax: &max,
		Page:     3,
		Limit:    10,
	}.Normalize()

	values, _ := url.ParseQuery(EncodeQuery(in))
	out, err := DecodeQuery(values)
	if err != nil {
		t.Fatalf("DecodeQuery() error: %v", err)
	}

	if out.Brand != "honda" || out.Page != 3 || out.Limit != 10 {
		t.Errorf("out = %+v", out)
	}
	if len(out.Category) != 1 || out.Category[0] != "exhausts" {
		t.Errorf("Category = %v", out.Category)
	}
	if out.PriceMax == nil || *out.PriceMax != 2500 {
		t.Errorf("PriceMax = %v", out.PriceMax)
	}
	if out.Sort != model.DefaultSort || out.Order != model.DefaultOrder {
		t.Errorf("sort/order = %q/%q", out.Sort, out.Order)
	}
}

func TestDecodeQuery_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"price not a number", "priceMin=cheap"},
		{"inStock not bool", "inStock=maybe"},
		{"negative page", "page=-1"},
		{"limit not int", "limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			if _, err := DecodeQuery(values); !errors.Is(err, model.ErrInvalidRequest) {
				t.Errorf("DecodeQuery(%q) error = %v, want ErrInvalidRequest", tt.query, err)
			}
		})
	}
}

func TestDecodeQuery_SplitsCommaValues(t *testing.T) {
	values, _ := url.ParseQuery("category=a,%20b,,c&productType=x")
	q, err := DecodeQuery(values)
	if err != nil {
		t.Fatalf("DecodeQuery() error: %v", err)
	}
	if len(q.Category) != 3 || q.Category[1] != "b" {
		t.Errorf("Category = %v, want [a b c]", q.Category)
	}
	if len(q.ProductType) != 1 {
		t.Errorf("ProductType = %v", q.ProductType)
	}
}
