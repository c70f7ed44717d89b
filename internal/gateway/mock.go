package gateway

import (
	"context"

	"storefront-sync/internal/model"
)

// Mock implements CollectionGateway and CatalogGateway for testing.
// Each method can be configured via function fields; unset methods succeed
// with an empty result.
type Mock struct {
	FetchCollectionFunc func(ctx context.Context) (model.Collection, error)
	AddItemFunc         func(ctx context.Context, item model.CollectionItem) error
	RemoveItemFunc      func(ctx context.Context, id string) error
	ClearAllFunc        func(ctx context.Context) error
	FetchCatalogFunc    func(ctx context.Context, q model.FilterQuery) (*model.CatalogPage, error)
}

// FetchCollection calls the configured FetchCollectionFunc or returns an empty collection.
func (m *Mock) FetchCollection(ctx context.Context) (model.Collection, error) {
	if m.FetchCollectionFunc != nil {
		return m.FetchCollectionFunc(ctx)
	}
	return model.Collection{}, nil
}

// AddItem calls the configured AddItemFunc or succeeds.
func (m *Mock) AddItem(ctx context.Context, item model.CollectionItem) error {
	if m.AddItemFunc != nil {
		return m.AddItemFunc(ctx, item)
	}
	return nil
}

// RemoveItem calls the configured RemoveItemFunc or succeeds.
func (m *Mock) RemoveItem(ctx context.Context, id string) error {
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, id)
	}
	return nil
}

// ClearAll calls the configured ClearAllFunc or succeeds.
func (m *Mock) ClearAll(ctx context.Context) error {
	if m.ClearAllFunc != nil {
		return m.ClearAllFunc(ctx)
	}
	return nil
}

// FetchCatalog calls the configured FetchCatalogFunc or returns an empty page.
func (m *Mock) FetchCatalog(ctx context.Context, q model.FilterQuery) (*model.CatalogPage, error) {
	if m.FetchCatalogFunc != nil {
		return m.FetchCatalogFunc(ctx, q)
	}
	return &model.CatalogPage{Items: []model.ProductRecord{}}, nil
}

// Verify Mock implements both interfaces at compile time.
var (
	_ CollectionGateway = (*Mock)(nil)
	_ CatalogGateway    = (*Mock)(nil)
)
