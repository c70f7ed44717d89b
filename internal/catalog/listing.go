package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"storefront-sync/internal/model"
)

// Listing is the product listing of one session. When queries overlap, only
// the most recently submitted one may publish its result.
type Listing struct {
	resolver *Resolver

	generation atomic.Uint64

	mu        sync.RWMutex
	current   *Result
	published uint64
}

// NewListing creates an empty listing.
func NewListing(r *Resolver) *Listing {
	return &Listing{resolver: r}
}

// Submit resolves q and publishes the result unless a newer query was
// submitted meanwhile. The result is returned either way; applied reports
// whether it was published.
func (l *Listing) Submit(ctx context.Context, q model.FilterQuery) (*Result, bool) {
	gen := l.generation.Add(1)
	res := l.resolver.Resolve(ctx, q)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation.Load() || gen < l.published {
		return res, false
	}
	l.current = res
	l.published = gen
	return res, true
}

// Current returns the last published result, or nil.
func (l *Listing) Current() *Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}
