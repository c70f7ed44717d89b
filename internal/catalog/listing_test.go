package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-sync/internal/gateway"
	"storefront-sync/internal/model"
)

func TestListing_StaleResultDiscarded(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})

	gw := &gateway.Mock{FetchCatalogFunc: func(ctx context.Context, q model.FilterQuery) (*model.CatalogPage, error) {
		if q.Search == "old" {
			close(slowStarted)
			<-releaseSlow
		}
		return &model.CatalogPage{Items: []model.ProductRecord{{ID: q.Search}}}, nil
	}}
	listing := NewListing(NewResolver(gw, WithLogger(testLogger())))

	var wg sync.WaitGroup
	var staleApplied bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, staleApplied = listing.Submit(context.Background(), model.FilterQuery{Search: "old"})
	}()
	<-slowStarted

	res, applied := listing.Submit(context.Background(), model.FilterQuery{Search: "new"})
	require.True(t, applied)
	assert.Equal(t, "new", res.Page.Items[0].ID)

	close(releaseSlow)
	wg.Wait()

	assert.False(t, staleApplied, "older query must not publish")
	current := listing.Current()
	require.NotNil(t, current)
	assert.Equal(t, "new", current.Page.Items[0].ID)
}

func TestListing_SequentialSubmitsPublish(t *testing.T) {
	gw := &gateway.Mock{FetchCatalogFunc: func(ctx context.Context, q model.FilterQuery) (*model.CatalogPage, error) {
		return &model.CatalogPage{Items: []model.ProductRecord{{ID: q.Search}}}, nil
	}}
	listing := NewListing(NewResolver(gw, WithLogger(testLogger())))
	assert.Nil(t, listing.Current())

	for _, term := range []string{"a", "b"} {
		_, applied := listing.Submit(context.Background(), model.FilterQuery{Search: term})
		assert.True(t, applied)
		assert.Equal(t, term, listing.Current().Page.Items[0].ID)
	}
}
