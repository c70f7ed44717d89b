// Package gateway talks to the remote product/wishlist/cart API.
//
// Every call makes at most one network attempt, is bounded by the configured
// request timeout, and reports any failure (transport error, timeout, non-2xx
// status, success=false envelope, undecodable body) as a *model.APIError.
// Retry and rollback policy belong to the callers.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-sync/internal/model"
	"storefront-sync/internal/transport"
)

// CollectionGateway is the session-bound view of one customer collection.
type CollectionGateway interface {
	// FetchCollection returns the authoritative server collection.
	FetchCollection(ctx context.Context) (model.Collection, error)

	// AddItem adds the item. Cart adds carry the item quantity.
	AddItem(ctx context.Context, item model.CollectionItem) error

	// RemoveItem deletes the item with the given id.
	RemoveItem(ctx context.Context, id string) error

	// ClearAll empties the server collection.
	ClearAll(ctx context.Context) error
}

// CatalogGateway serves product queries.
type CatalogGateway interface {
	FetchCatalog(ctx context.Context, q model.FilterQuery) (*model.CatalogPage, error)
}

// Credentials identify the signed-in customer to the upstream API.
// An empty token means the request is anonymous.
type Credentials struct {
	Token string
}

// DefaultRequestTimeout bounds each upstream call when Config leaves it unset.
const DefaultRequestTimeout = 10 * time.Second

// userAgent identifies this service to the upstream API.
const userAgent = "storefront-sync/1.0"

// sessionCookie is the cookie the upstream API reads the customer token from.
const sessionCookie = "token"

// Config holds gateway settings.
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	ChromeTLS      bool

	// HTTPClient overrides the transport built from ChromeTLS (tests).
	HTTPClient *http.Client
}

// Client is the HTTP implementation of the gateway interfaces.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

// New creates a gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: transport.New(transport.Options{
				ChromeTLS:   cfg.ChromeTLS,
				DialTimeout: timeout,
			}),
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    timeout,
	}, nil
}

// Collection returns the gateway for one collection of one customer.
func (c *Client) Collection(kind model.CollectionKind, creds Credentials) CollectionGateway {
	return &collectionEndpoint{client: c, kind: kind, creds: creds}
}

// Verify interface compliance at compile time.
var (
	_ CatalogGateway    = (*Client)(nil)
	_ CollectionGateway = (*collectionEndpoint)(nil)
)
