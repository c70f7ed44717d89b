// MCP transport for the storefront session service using the official MCP Go SDK.
// Exposes catalog search and collection operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront-sync/internal/catalog"
	"storefront-sync/internal/collection"
	"storefront-sync/internal/model"
	"storefront-sync/internal/view"
)

// === MCP Tool Input/Output Types ===
// Collection tools name their storefront session explicitly; MCP requests
// do not pass through the session header middleware.

// SearchProductsInput is the input schema for search_products.
type SearchProductsInput struct {
	Search   string   `json:"search,omitempty" jsonschema:"free text search"`
	Brand    string   `json:"brand,omitempty" jsonschema:"brand slug or name"`
	Model    string   `json:"model,omitempty" jsonschema:"motorcycle model"`
	Category []string `json:"category,omitempty" jsonschema:"category slugs"`
	PriceMin *float64 `json:"price_min,omitempty" jsonschema:"minimum price"`
	PriceMax *float64 `json:"price_max,omitempty" jsonschema:"maximum price"`
	InStock  *bool    `json:"in_stock,omitempty" jsonschema:"only products in stock"`
	Page     int      `json:"page,omitempty" jsonschema:"1-based page number"`
	Limit    int      `json:"limit,omitempty" jsonschema:"page size"`
}

// SearchProductsOutput is one resolved page of products.
type SearchProductsOutput struct {
	Source     catalog.Source        `json:"source"`
	Pass       string                `json:"pass,omitempty"`
	Items      []model.ProductRecord `json:"items"`
	Pagination model.Pagination      `json:"pagination"`
}

// CollectionInput identifies a session collection.
type CollectionInput struct {
	SessionID string `json:"session_id" jsonschema:"storefront session id,required"`
	Kind      string `json:"kind" jsonschema:"wishlist or cart,required"`
}

// AddItemInput is the input schema for add_item.
type AddItemInput struct {
	SessionID string               `json:"session_id" jsonschema:"storefront session id,required"`
	Kind      string               `json:"kind" jsonschema:"wishlist or cart,required"`
	Item      model.CollectionItem `json:"item" jsonschema:"item to add,required"`
}

// RemoveItemInput is the input schema for remove_item.
type RemoveItemInput struct {
	SessionID string `json:"session_id" jsonschema:"storefront session id,required"`
	Kind      string `json:"kind" jsonschema:"wishlist or cart,required"`
	ItemID    string `json:"item_id" jsonschema:"id of the item to remove,required"`
}

// CollectionOutput is a collection after a read or a settled change.
type CollectionOutput struct {
	Kind    model.CollectionKind `json:"kind"`
	Mode    string               `json:"mode"`
	Items   model.Collection     `json:"items"`
	Summary view.Summary         `json:"summary"`
	State   string               `json:"state,omitempty"`
}

// NewMCPServer creates an MCP server with the storefront tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront-sync",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Storefront session service. Search the motorcycle parts catalog " +
				"and manage the wishlist and cart of a storefront session.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_products",
		Description: "Search the catalog. Brand, model and category filters fall back to client-side matching when the server returns nothing.",
	}, h.mcpSearchProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_collection",
		Description: "Get the items and totals of a session wishlist or cart.",
	}, h.mcpGetCollection)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_item",
		Description: "Add an item to a session wishlist or cart. Waits until the change is confirmed or reverted.",
	}, h.mcpAddItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_item",
		Description: "Remove an item from a session wishlist or cart.",
	}, h.mcpRemoveItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_collection",
		Description: "Remove every item from a session wishlist or cart.",
	}, h.mcpClearCollection)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpSearchProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchProductsInput,
) (*mcp.CallToolResult, *SearchProductsOutput, error) {
	q := model.FilterQuery{
		Search:   input.Search,
		Brand:    input.Brand,
		Model:    input.Model,
		Category: input.Category,
		PriceMin: input.PriceMin,
		PriceMax: input.PriceMax,
		InStock:  input.InStock,
		Page:     input.Page,
		Limit:    input.Limit,
	}

	res := h.resolver.Resolve(ctx, q)
	items := res.Page.Items
	if items == nil {
		items = []model.ProductRecord{}
	}
	return nil, &SearchProductsOutput{
		Source:     res.Source,
		Pass:       res.Pass,
		Items:      items,
		Pagination: res.Page.Pagination,
	}, nil
}

func (h *Handler) mcpGetCollection(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CollectionInput,
) (*mcp.CallToolResult, *CollectionOutput, error) {
	ctl, mode, err := h.mcpController(input.SessionID, input.Kind)
	if err != nil {
		return nil, nil, err
	}
	return nil, newCollectionOutput(ctl, mode, nil), nil
}

func (h *Handler) mcpAddItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddItemInput,
) (*mcp.CallToolResult, *CollectionOutput, error) {
	ctl, mode, err := h.mcpController(input.SessionID, input.Kind)
	if err != nil {
		return nil, nil, err
	}

	m, err := ctl.Add(ctx, input.Item)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpSettle(ctx, ctl, mode, m)
}

func (h *Handler) mcpRemoveItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveItemInput,
) (*mcp.CallToolResult, *CollectionOutput, error) {
	ctl, mode, err := h.mcpController(input.SessionID, input.Kind)
	if err != nil {
		return nil, nil, err
	}

	m, err := ctl.Remove(ctx, input.ItemID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpSettle(ctx, ctl, mode, m)
}

func (h *Handler) mcpClearCollection(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CollectionInput,
) (*mcp.CallToolResult, *CollectionOutput, error) {
	ctl, mode, err := h.mcpController(input.SessionID, input.Kind)
	if err != nil {
		return nil, nil, err
	}
	return h.mcpSettle(ctx, ctl, mode, ctl.Clear(ctx))
}

// mcpController looks up (or starts) the session and its collection.
func (h *Handler) mcpController(sessionID, kind string) (*collection.Controller, string, error) {
	if sessionID == "" {
		return nil, "", fmt.Errorf("session_id is required")
	}
	k, err := model.ParseKind(kind)
	if err != nil {
		return nil, "", err
	}
	s := h.registry.GetOrCreate(sessionID)
	return s.Controller(k), s.Mode().String(), nil
}

// mcpSettle waits for the change to be confirmed. A rolled back change is
// reported as a tool error.
func (h *Handler) mcpSettle(
	ctx context.Context,
	ctl *collection.Controller,
	mode string,
	m *collection.Mutation,
) (*mcp.CallToolResult, *CollectionOutput, error) {
	if err := m.Wait(ctx); err != nil {
		if errors.Is(err, model.ErrRolledBack) {
			return nil, nil, h.mcpError(err)
		}
		return nil, nil, err
	}
	return nil, newCollectionOutput(ctl, mode, m), nil
}

func newCollectionOutput(ctl *collection.Controller, mode string, m *collection.Mutation) *CollectionOutput {
	items := ctl.Items()
	if items == nil {
		items = model.Collection{}
	}
	out := &CollectionOutput{
		Kind:    ctl.Kind(),
		Mode:    mode,
		Items:   items,
		Summary: view.Totals(items),
	}
	if m != nil {
		out.State = m.State().String()
	}
	return out
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
