package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-sync/internal/gateway"
	"storefront-sync/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCatalog serves filtered queries from filtered and unfiltered ones
// (limit == full) from full, recording every query it sees.
type fakeCatalog struct {
	mu       sync.Mutex
	queries  []model.FilterQuery
	filtered []model.ProductRecord
	full     []model.ProductRecord

	filteredErr error
	fullErr     error
}

func (f *fakeCatalog) mock(fullLimit int) *gateway.Mock {
	return &gateway.Mock{FetchCatalogFunc: func(ctx context.Context, q model.FilterQuery) (*model.CatalogPage, error) {
		f.mu.Lock()
		f.queries = append(f.queries, q)
		f.mu.Unlock()

		if q.Limit == fullLimit && !q.HasTaxonomyFilter() && q.Search == "" {
			if f.fullErr != nil {
				return nil, f.fullErr
			}
			return &model.CatalogPage{Items: f.full}, nil
		}
		if f.filteredErr != nil {
			return nil, f.filteredErr
		}
		return &model.CatalogPage{
			Items:      f.filtered,
			Pagination: model.Pagination{CurrentPage: q.Page, TotalPages: 1, TotalItems: len(f.filtered), ItemsPerPage: q.Limit},
		}, nil
	}}
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func newTestResolver(f *fakeCatalog, opts ...Option) *Resolver {
	opts = append([]Option{WithLogger(testLogger())}, opts...)
	return NewResolver(f.mock(DefaultFullFetchLimit), opts...)
}

func TestResolve_ServerResultTrusted(t *testing.T) {
	f := &fakeCatalog{filtered: []model.ProductRecord{product("1", "Crash Guard", "Royal Enfield", "Protection")}}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Brand: "royal-enfield"})

	assert.Equal(t, SourceServer, res.Source)
	assert.Len(t, res.Page.Items, 1)
	assert.Equal(t, 1, f.calls(), "no fallback fetch")
}

func TestResolve_NoFiltersEmptyStaysEmpty(t *testing.T) {
	f := &fakeCatalog{full: []model.ProductRecord{product("1", "Anything", "", "")}}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Page: 1, Limit: 20})

	assert.Equal(t, SourceServer, res.Source)
	assert.NotNil(t, res.Page.Items)
	assert.Empty(t, res.Page.Items)
	assert.Equal(t, 1, f.calls(), "no fallback for an unfiltered query")
}

func TestResolve_NoFiltersFailureIsEmptyPage(t *testing.T) {
	f := &fakeCatalog{filteredErr: model.NewUpstreamError("catalog_fetch", errors.New("down"))}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Search: "guard"})

	assert.Equal(t, SourceUnavailable, res.Source)
	assert.Empty(t, res.Page.Items)
	assert.ErrorIs(t, res.Err, model.ErrUpstreamError)
	assert.Equal(t, 1, f.calls())
}

func TestResolve_RoyalEnfieldFallback(t *testing.T) {
	f := &fakeCatalog{
		full: []model.ProductRecord{
			product("1", "Honda CB350 Tank Pad", "Honda", "Protection"),
			product("2", "Royal Enfield Classic 350 Crash Guard", "", ""),
			product("3", "Universal Mirror", "", "Mirrors"),
		},
	}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Brand: "royal-enfield"})

	require.Equal(t, SourceFallback, res.Source)
	require.Len(t, res.Page.Items, 1)
	assert.Equal(t, "Royal Enfield Classic 350 Crash Guard", res.Page.Items[0].Name)
	assert.Equal(t, "contains", res.Pass)
	assert.Equal(t, model.Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 1, ItemsPerPage: 20}, res.Page.Pagination)

	require.Equal(t, 2, f.calls())
	assert.Equal(t, "royal-enfield", f.queries[0].Brand, "server filter first")
	assert.Equal(t, DefaultFullFetchLimit, f.queries[1].Limit, "then the full fetch")
	assert.False(t, f.queries[1].HasTaxonomyFilter())
}

func TestResolve_FallbackOnServerFailure(t *testing.T) {
	f := &fakeCatalog{
		filteredErr: model.NewTimeoutError("catalog_fetch"),
		full:        []model.ProductRecord{product("1", "Crash Guard", "Royal Enfield", "Protection")},
	}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Brand: "royal-enfield"})

	assert.Equal(t, SourceFallback, res.Source)
	assert.Len(t, res.Page.Items, 1)
	assert.Equal(t, "exact", res.Pass)
	assert.ErrorIs(t, res.Err, model.ErrTimeout)
}

func TestResolve_EveryRungFailsStillReturnsPage(t *testing.T) {
	f := &fakeCatalog{
		filteredErr: model.NewTimeoutError("catalog_fetch"),
		fullErr:     model.NewTimeoutError("catalog_fetch"),
	}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Model: "himalayan"})

	assert.Equal(t, SourceUnavailable, res.Source)
	require.NotNil(t, res.Page)
	assert.NotNil(t, res.Page.Items)
	assert.Empty(t, res.Page.Items)
}

func TestResolve_FallbackPaginatesClientSide(t *testing.T) {
	var full []model.ProductRecord
	for i := 0; i < 45; i++ {
		full = append(full, product(fmt.Sprint(i), fmt.Sprintf("Honda Part %d", i), "Honda", "Parts"))
	}
	f := &fakeCatalog{full: full}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Brand: "honda", Page: 3, Limit: 20})

	require.Equal(t, SourceFallback, res.Source)
	assert.Len(t, res.Page.Items, 5)
	assert.Equal(t, "40", res.Page.Items[0].ID)
	assert.Equal(t, model.Pagination{CurrentPage: 3, TotalPages: 3, TotalItems: 45, ItemsPerPage: 20}, res.Page.Pagination)
	assert.Equal(t, 2, f.calls(), "pages are not re-requested")
}

func TestResolve_FallbackAppliesIndependentConstraints(t *testing.T) {
	max := 1000.0
	cheap := product("1", "Royal Enfield Grip", "", "")
	cheap.Price = 500
	pricey := product("2", "Royal Enfield Exhaust", "", "")
	pricey.Price = 9000
	f := &fakeCatalog{full: []model.ProductRecord{cheap, pricey}}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Brand: "royal-enfield", PriceMax: &max})

	require.Len(t, res.Page.Items, 1)
	assert.Equal(t, "1", res.Page.Items[0].ID)
}

func TestResolve_NoMatchAnywhere(t *testing.T) {
	f := &fakeCatalog{full: []model.ProductRecord{product("1", "Tank Pad", "Generic", "Protection")}}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Brand: "ducati"})

	assert.Equal(t, SourceFallback, res.Source)
	assert.Empty(t, res.Page.Items)
	assert.Equal(t, 0, res.Page.Pagination.TotalPages)
}

func TestResolve_CustomPolicy(t *testing.T) {
	f := &fakeCatalog{full: []model.ProductRecord{product("1", "Royal Enfield Classic 350 Crash Guard", "", "")}}
	strictOnly := Policy{FullFetchLimit: 50, Strict: []MatchStrategy{ExactStrategy{}}, RelaxedOrder: []Field{}}

	r := NewResolver(f.mock(50), WithLogger(testLogger()), WithPolicy(strictOnly))
	res := r.Resolve(context.Background(), model.FilterQuery{Brand: "royal-enfield"})

	assert.Empty(t, res.Page.Items, "exact alone cannot recover a name-only match")
	assert.Equal(t, 50, f.queries[1].Limit)
}

func TestResolve_PartialPolicyKeepsRelaxedRung(t *testing.T) {
	f := &fakeCatalog{full: []model.ProductRecord{product("1", "Royal Enfield Classic 350 Crash Guard", "", "")}}
	partial := Policy{FullFetchLimit: 500, Strict: []MatchStrategy{ExactStrategy{}}}

	r := NewResolver(f.mock(500), WithLogger(testLogger()), WithPolicy(partial))
	res := r.Resolve(context.Background(), model.FilterQuery{Brand: "royal-enfield"})

	require.Len(t, res.Page.Items, 1, "relaxed rung defaults when Relaxed is nil")
	assert.Equal(t, RelaxedStrategy{}.Name(), res.Pass)
	assert.Equal(t, 500, f.queries[1].Limit)
}

func TestResolve_SnapshotCacheReused(t *testing.T) {
	f := &fakeCatalog{full: []model.ProductRecord{product("1", "Crash Guard", "Royal Enfield", "Protection")}}
	r := newTestResolver(f, WithCache(NewMemoryCache(0)))

	r.Resolve(context.Background(), model.FilterQuery{Brand: "royal-enfield"})
	r.Resolve(context.Background(), model.FilterQuery{Brand: "royal-enfield", Page: 1})

	assert.Equal(t, 3, f.calls(), "second fallback reads the cached snapshot")
}

func TestResolve_QueryIsNormalized(t *testing.T) {
	f := &fakeCatalog{filtered: []model.ProductRecord{product("1", "x", "", "")}}

	res := newTestResolver(f).Resolve(context.Background(), model.FilterQuery{Brand: "  honda "})

	assert.Equal(t, "honda", res.Query.Brand)
	assert.Equal(t, model.DefaultLimit, res.Query.Limit)
}
