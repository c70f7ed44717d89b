// Package model defines the storefront data shapes shared by the gateway,
// the session layer and the catalog pipeline.
package model

import "fmt"

// CollectionKind names one of the session-owned collections.
type CollectionKind string

const (
	KindWishlist CollectionKind = "wishlist"
	KindCart     CollectionKind = "cart"
)

// Kinds lists every collection a session owns, in reconciliation order.
var Kinds = []CollectionKind{KindWishlist, KindCart}

// StorageKey is the local store key holding the guest copy of the collection.
func (k CollectionKind) StorageKey() string {
	return string(k) + "_items"
}

// Path is the upstream resource path for the collection.
func (k CollectionKind) Path() string {
	return "/customer/" + string(k)
}

// ParseKind validates a kind taken from a URL or CLI argument.
func ParseKind(s string) (CollectionKind, error) {
	switch CollectionKind(s) {
	case KindWishlist, KindCart:
		return CollectionKind(s), nil
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// CollectionItem is a wishlist or cart line. Identity is ID.
type CollectionItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	SKU      string  `json:"sku,omitempty"`
	Brand    string  `json:"brand,omitempty"`
	Slug     string  `json:"slug,omitempty"`
	InStock  *bool   `json:"inStock,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
}

// Units is the quantity used for totals. A missing quantity counts as one.
func (i CollectionItem) Units() int {
	if i.Quantity <= 0 {
		return 1
	}
	return i.Quantity
}

// Collection is an ordered sequence of items with unique IDs.
type Collection []CollectionItem

// Clone returns an independent copy. InStock pointers are copied by value
// so a later mutation of the clone cannot reach the original.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	for i, item := range c {
		if item.InStock != nil {
			v := *item.InStock
			item.InStock = &v
		}
		out[i] = item
	}
	return out
}

// IndexOf returns the position of id, or -1.
func (c Collection) IndexOf(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether id is present.
func (c Collection) Contains(id string) bool {
	return c.IndexOf(id) >= 0
}

// Dedupe drops later duplicates of an ID, keeping first-seen order.
// Upstream and stored data are passed through it before becoming state.
func (c Collection) Dedupe() Collection {
	seen := make(map[string]bool, len(c))
	out := make(Collection, 0, len(c))
	for _, item := range c {
		if item.ID == "" || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
