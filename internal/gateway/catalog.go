package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront-sync/internal/model"
)

// catalogData is the data block of GET /products.
type catalogData struct {
	Products   []model.ProductRecord `json:"products"`
	Pagination *model.Pagination     `json:"pagination"`
}

// FetchCatalog runs one product query.
// GET /products?<query>
func (c *Client) FetchCatalog(ctx context.Context, q model.FilterQuery) (*model.CatalogPage, error) {
	q = q.Normalize()

	path := "/products"
	if encoded := EncodeQuery(q); encoded != "" {
		path += "?" + encoded
	}

	var data catalogData
	if err := c.call(ctx, "catalog_fetch", http.MethodGet, path, Credentials{}, nil, &data); err != nil {
		return nil, err
	}

	page := &model.CatalogPage{Items: data.Products}
	if page.Items == nil {
		page.Items = []model.ProductRecord{}
	}
	if data.Pagination != nil {
		page.Pagination = *data.Pagination
	} else {
		// Older deployments omit the block; describe what we got.
		page.Pagination = model.Pagination{
			CurrentPage:  q.Page,
			TotalPages:   1,
			TotalItems:   len(page.Items),
			ItemsPerPage: q.Limit,
		}
		if len(page.Items) == 0 {
			page.Pagination.TotalPages = 0
		}
	}
	return page, nil
}

// EncodeQuery serializes a FilterQuery. Every non-empty field becomes a
// parameter; multi-value fields are comma-joined.
func EncodeQuery(q model.FilterQuery) string {
	v := url.Values{}
	setIf := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}

	setIf("search", q.Search)
	setIf("category", strings.Join(q.Category, ","))
	setIf("brand", q.Brand)
	setIf("model", q.Model)
	setIf("productType", strings.Join(q.ProductType, ","))
	if q.PriceMin != nil {
		v.Set("priceMin", formatFloat(*q.PriceMin))
	}
	if q.PriceMax != nil {
		v.Set("priceMax", formatFloat(*q.PriceMax))
	}
	if q.InStock != nil {
		v.Set("inStock", strconv.FormatBool(*q.InStock))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	setIf("sort", q.Sort)
	setIf("order", q.Order)

	return v.Encode()
}

// DecodeQuery is the inverse of EncodeQuery, used by the REST surface.
// Unparseable numbers are reported as validation errors.
func DecodeQuery(v url.Values) (model.FilterQuery, error) {
	q := model.FilterQuery{
		Search: v.Get("search"),
		Brand:  v.Get("brand"),
		Model:  v.Get("model"),
		Sort:   v.Get("sort"),
		Order:  v.Get("order"),
	}
	if s := v.Get("category"); s != "" {
		q.Category = strings.Split(s, ",")
	}
	if s := v.Get("productType"); s != "" {
		q.ProductType = strings.Split(s, ",")
	}

	var err error
	if q.PriceMin, err = parseOptionalFloat(v, "priceMin"); err != nil {
		return q, err
	}
	if q.PriceMax, err = parseOptionalFloat(v, "priceMax"); err != nil {
		return q, err
	}
	if s := v.Get("inStock"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, model.NewValidationError("inStock", "must be true or false")
		}
		q.InStock = &b
	}
	if q.Page, err = parseOptionalInt(v, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = parseOptionalInt(v, "limit"); err != nil {
		return q, err
	}
	return q.Normalize(), nil
}

func parseOptionalFloat(v url.Values, key string) (*float64, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, model.NewValidationError(key, "must be a number")
	}
	return &f, nil
}

func parseOptionalInt(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, model.NewValidationError(key, "must be a non-negative integer")
	}
	return n, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
