package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"storefront-sync/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second, APIKey: "svc-key"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": success, "data": data})
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"empty", ""},
		{"no scheme", "api.example.com"},
		{"garbage", "://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(Config{BaseURL: tt.baseURL}); err == nil {
				t.Errorf("New(%q) should fail", tt.baseURL)
			}
		})
	}
}

func TestFetchCollection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/customer/wishlist" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		cookie, err := r.Cookie("token")
		if err != nil || cookie.Value != "tok-1" {
			t.Errorf("token cookie = %v, %v", cookie, err)
		}
		if r.Header.Get("X-Api-Key") != "svc-key" {
			t.Errorf("X-Api-Key = %q", r.Header.Get("X-Api-Key"))
		}
		writeEnvelope(w, http.StatusOK, true, map[string]interface{}{
			"items": []map[string]interface{}{
				{"id": "1", "name": "Crash Guard", "price": 3499},
				{"id": "1", "name": "dup", "price": 1},
				{"id": "2", "name": "Tank Pad", "price": 499},
			},
		})
	})

	items, err := client.Collection(model.KindWishlist, Credentials{Token: "tok-1"}).FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("FetchCollection() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2 (duplicates dropped)", len(items))
	}
	if items[0].Name != "Crash Guard" {
		t.Errorf("items[0].Name = %q", items[0].Name)
	}
}

func TestFetchCollection_BareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, []map[string]interface{}{{"id": "5", "name": "Lever"}})
	})

	items, err := client.Collection(model.KindCart, Credentials{}).FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("FetchCollection() error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "5" {
		t.Errorf("items = %+v", items)
	}
}

func TestFetchCollection_EmptyIsNonNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, nil)
	})

	items, err := client.Collection(model.KindWishlist, Credentials{}).FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("FetchCollection() error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("items = %#v, want empty non-nil", items)
	}
}

func TestAddItem_CartSendsQuantity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.EscapedPath() != "/customer/cart/p%2F1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.EscapedPath())
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"quantity":3`) {
			t.Errorf("body = %s, want quantity 3", body)
		}
		writeEnvelope(w, http.StatusOK, true, nil)
	})

	err := client.Collection(model.KindCart, Credentials{Token: "t"}).
		AddItem(context.Background(), model.CollectionItem{ID: "p/1", Quantity: 3})
	if err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}
}

func TestAddItem_WishlistHasNoBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("wishlist add body = %s, want empty", body)
		}
		writeEnvelope(w, http.StatusCreated, true, nil)
	})

	err := client.Collection(model.KindWishlist, Credentials{}).
		AddItem(context.Background(), model.CollectionItem{ID: "7"})
	if err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		writeEnvelope(w, http.StatusOK, true, nil)
	})
	gw := client.Collection(model.KindWishlist, Credentials{})

	if err := gw.RemoveItem(context.Background(), "9"); err != nil {
		t.Fatalf("RemoveItem() error: %v", err)
	}
	if err := gw.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}

	want := []string{"DELETE /customer/wishlist/9", "DELETE /customer/wishlist"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestEmptyIDIsRejectedWithoutCall(t *testing.T) {
	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	gw := client.Collection(model.KindWishlist, Credentials{})

	if err := gw.AddItem(context.Background(), model.CollectionItem{}); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("AddItem(empty) error = %v, want ErrInvalidRequest", err)
	}
	if err := gw.RemoveItem(context.Background(), ""); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("RemoveItem(empty) error = %v, want ErrInvalidRequest", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("no request should be made for an empty id")
	}
}

func TestFailureMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		code     string
	}{
		{"success false", 200, `{"success":false,"message":"out of stock"}`, model.ErrUpstreamError, "UPSTREAM_REJECTED"},
		{"not json", 200, `<html>`, model.ErrUpstreamError, "UPSTREAM_ERROR"},
		{"unauthorized", 401, `{"success":false}`, model.ErrUnauthorized, "UNAUTHORIZED"},
		{"forbidden", 403, ``, model.ErrUnauthorized, "UNAUTHORIZED"},
		{"not found", 404, ``, model.ErrNotFound, "NOT_FOUND"},
		{"bad request", 400, `{"message":"bad id"}`, model.ErrInvalidRequest, "VALIDATION_ERROR"},
		{"rate limited", 429, ``, model.ErrRateLimited, "RATE_LIMITED"},
		{"server error", 500, ``, model.ErrUpstreamError, "UPSTREAM_ERROR"},
		{"gateway timeout", 504, ``, model.ErrTimeout, "UPSTREAM_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := client.Collection(model.KindWishlist, Credentials{}).RemoveItem(context.Background(), "1")
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("error = %v, want %v", err, tt.sentinel)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.code {
				t.Errorf("code = %v, want %s", apiErr, tt.code)
			}
		})
	}
}

func TestTimeoutIsFailureResult(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := New(Config{BaseURL: srv.URL, RequestTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	err = client.Collection(model.KindWishlist, Credentials{}).ClearAll(context.Background())
	if !errors.Is(err, model.ErrTimeout) && !errors.Is(err, model.ErrUpstreamError) {
		t.Fatalf("error = %v, want timeout/upstream failure", err)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := New(Config{BaseURL: url, RequestTimeout: time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = client.FetchCatalog(context.Background(), model.FilterQuery{})
	if !errors.Is(err, model.ErrUpstreamError) {
		t.Errorf("error = %v, want ErrUpstreamError", err)
	}
}

func TestFetchCatalog(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("brand") != "royal-enfield" {
			t.Errorf("brand = %q", r.URL.Query().Get("brand"))
		}
		writeEnvelope(w, http.StatusOK, true, map[string]interface{}{
			"products": []map[string]interface{}{
				{"id": "1", "name": "Classic 350 Crash Guard", "price": "3499.00",
					"brand": map[string]string{"name": "Royal Enfield", "slug": "royal-enfield"}},
			},
			"pagination": map[string]int{"currentPage": 1, "totalPages": 1, "totalItems": 1, "itemsPerPage": 20},
		})
	})

	page, err := client.FetchCatalog(context.Background(), model.FilterQuery{Brand: "royal-enfield"})
	if err != nil {
		t.Fatalf("FetchCatalog() error: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Price != 3499 {
		t.Errorf("items = %+v", page.Items)
	}
	if page.Pagination.TotalItems != 1 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
}

func TestFetchCatalog_SynthesizesPagination(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, map[string]interface{}{"products": []interface{}{}})
	})

	page, err := client.FetchCatalog(context.Background(), model.FilterQuery{Page: 1, Limit: 20})
	if err != nil {
		t.Fatalf("FetchCatalog() error: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Errorf("items = %#v, want empty non-nil", page.Items)
	}
	want := model.Pagination{CurrentPage: 1, TotalPages: 0, TotalItems: 0, ItemsPerPage: 20}
	if page.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", page.Pagination, want)
	}
}
