// Package catalog resolves product filter queries against a remote catalog
// whose server-side filtering cannot be fully trusted.
//
// Resolution has two phases. ServerFilter sends the query as-is. When a
// brand, model or category filter is active and the server fails or
// returns nothing, ClientFallback fetches the unfiltered catalog and walks
// the Policy's match ladder over it. A query without those filters always
// gets the server answer, empty or not.
package catalog

import (
	"context"
	"log/slog"

	"storefront-sync/internal/gateway"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/model"
	"storefront-sync/internal/view"
)

// Source records which phase produced a Result.
type Source string

const (
	SourceServer      Source = "server"
	SourceFallback    Source = "fallback"
	SourceUnavailable Source = "unavailable"
)

// Result is the outcome of one resolution. Page is never nil. Err holds the
// last gateway failure seen, if any, and is informational: a Result is
// always renderable.
type Result struct {
	Query  model.FilterQuery  `json:"query"`
	Page   *model.CatalogPage `json:"page"`
	Source Source             `json:"source"`
	Pass   string             `json:"pass,omitempty"`
	Err    error              `json:"-"`
}

// Resolver runs filter resolutions. Safe for concurrent use.
type Resolver struct {
	gateway gateway.CatalogGateway
	policy  Policy
	cache   SnapshotCache
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy replaces DefaultPolicy. Nil and zero fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p.withDefaults() }
}

// WithCache sets the snapshot cache used by the full fetch.
func WithCache(c SnapshotCache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver over gw.
func NewResolver(gw gateway.CatalogGateway, opts ...Option) *Resolver {
	r := &Resolver{gateway: gw, policy: DefaultPolicy(), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve answers q. It never returns nil.
func (r *Resolver) Resolve(ctx context.Context, q model.FilterQuery) *Result {
	q = q.Normalize()
	res := r.resolve(ctx, q)
	res.Query = q
	metrics.ObserveResolution(string(res.Source), res.Pass)
	return res
}

func (r *Resolver) resolve(ctx context.Context, q model.FilterQuery) *Result {
	page, err := r.serverFilter(ctx, q)

	if !q.HasTaxonomyFilter() {
		if err != nil {
			r.logger.Warn("catalog query failed", slog.String("error", err.Error()))
			return &Result{Page: emptyPage(q), Source: SourceUnavailable, Err: err}
		}
		return &Result{Page: page, Source: SourceServer}
	}

	if err == nil && len(page.Items) > 0 {
		return &Result{Page: page, Source: SourceServer}
	}
	if err != nil {
		r.logger.Warn("server filter failed, falling back",
			slog.String("brand", q.Brand),
			slog.String("model", q.Model),
			slog.String("error", err.Error()),
		)
	} else {
		r.logger.Info("server filter returned nothing, falling back",
			slog.String("brand", q.Brand),
			slog.String("model", q.Model),
		)
	}
	return r.clientFallback(ctx, q, err)
}

// serverFilter is the first phase: the query exactly as the user built it.
func (r *Resolver) serverFilter(ctx context.Context, q model.FilterQuery) (*model.CatalogPage, error) {
	page, err := r.gateway.FetchCatalog(ctx, q)
	if err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []model.ProductRecord{}
	}
	return page, nil
}

// clientFallback is the second phase. It starts strictly after the server
// phase has finished.
func (r *Resolver) clientFallback(ctx context.Context, q model.FilterQuery, serverErr error) *Result {
	products, err := r.fullCatalog(ctx, q)
	if err != nil {
		r.logger.Warn("full catalog fetch failed", slog.String("error", err.Error()))
		return &Result{Page: emptyPage(q), Source: SourceUnavailable, Err: err}
	}

	candidates := filter(products, constraints(q))
	ladder := r.policy.run(q, candidates)

	items, pagination := view.Paginate(ladder.items, q.Page, q.Limit)
	r.logger.Debug("fallback resolved",
		slog.Int("catalog_size", len(products)),
		slog.Int("matches", len(ladder.items)),
		slog.String("pass", ladder.pass),
	)
	return &Result{
		Page:   &model.CatalogPage{Items: items, Pagination: pagination},
		Source: SourceFallback,
		Pass:   ladder.pass,
		Err:    serverErr,
	}
}

func (r *Resolver) fullCatalog(ctx context.Context, q model.FilterQuery) ([]model.ProductRecord, error) {
	full := q.Unfiltered(r.policy.FullFetchLimit)
	key := snapshotKey(full)
	if r.cache != nil {
		if products, ok := r.cache.Get(ctx, key); ok {
			return products, nil
		}
	}

	page, err := r.gateway.FetchCatalog(ctx, full)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(ctx, key, page.Items)
	}
	return page.Items, nil
}

func emptyPage(q model.FilterQuery) *model.CatalogPage {
	items, pagination := view.Paginate([]model.ProductRecord{}, q.Page, q.Limit)
	return &model.CatalogPage{Items: items, Pagination: pagination}
}
