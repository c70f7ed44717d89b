package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"storefront-sync/internal/model"
)

// collectionEndpoint binds a collection kind to one customer's credentials.
type collectionEndpoint struct {
	client *Client
	kind   model.CollectionKind
	creds  Credentials
}

// collectionData accepts both {"items": [...]} and a bare array, since the
// wishlist and cart endpoints disagree on the wrapper.
type collectionData struct {
	Items model.Collection
}

func (d *collectionData) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &d.Items)
	}
	var wrapped struct {
		Items    model.Collection `json:"items"`
		Products model.Collection `json:"products"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	d.Items = wrapped.Items
	if d.Items == nil {
		d.Items = wrapped.Products
	}
	return nil
}

// FetchCollection returns the server collection.
// GET /customer/{kind}
func (e *collectionEndpoint) FetchCollection(ctx context.Context) (model.Collection, error) {
	var data collectionData
	if err := e.client.call(ctx, e.op("fetch"), http.MethodGet, e.kind.Path(), e.creds, nil, &data); err != nil {
		return nil, err
	}
	items := data.Items.Dedupe()
	if items == nil {
		items = model.Collection{}
	}
	return items, nil
}

// AddItem adds one item.
// POST /customer/{kind}/{id}
func (e *collectionEndpoint) AddItem(ctx context.Context, item model.CollectionItem) error {
	if item.ID == "" {
		return model.NewValidationError("id", "item id required")
	}
	var body interface{}
	if e.kind == model.KindCart {
		body = map[string]int{"quantity": item.Units()}
	}
	return e.client.call(ctx, e.op("add"), http.MethodPost, e.itemPath(item.ID), e.creds, body, nil)
}

// RemoveItem removes one item.
// DELETE /customer/{kind}/{id}
func (e *collectionEndpoint) RemoveItem(ctx context.Context, id string) error {
	if id == "" {
		return model.NewValidationError("id", "item id required")
	}
	return e.client.call(ctx, e.op("remove"), http.MethodDelete, e.itemPath(id), e.creds, nil, nil)
}

// ClearAll empties the collection.
// DELETE /customer/{kind}
func (e *collectionEndpoint) ClearAll(ctx context.Context) error {
	return e.client.call(ctx, e.op("clear"), http.MethodDelete, e.kind.Path(), e.creds, nil, nil)
}

func (e *collectionEndpoint) itemPath(id string) string {
	return e.kind.Path() + "/" + url.PathEscape(id)
}

func (e *collectionEndpoint) op(verb string) string {
	return string(e.kind) + "_" + verb
}
