// Package handler provides the HTTP surface of the storefront session service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-sync/internal/catalog"
	"storefront-sync/internal/gateway"
	"storefront-sync/internal/model"
	"storefront-sync/internal/session"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	registry *session.Registry
	resolver *catalog.Resolver
	logger   *slog.Logger
}

// New creates a new Handler over the session registry and the catalog resolver.
func New(registry *session.Registry, resolver *catalog.Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Stateless catalog resolution
	mux.HandleFunc("GET /products", h.handleProducts)

	// Session scoped routes, resolved by session.Middleware
	mux.HandleFunc("GET /session", h.handleGetSession)
	mux.HandleFunc("DELETE /session", h.handleDeleteSession)
	mux.HandleFunc("POST /session/login", h.handleLogin)
	mux.HandleFunc("POST /session/logout", h.handleLogout)
	mux.HandleFunc("GET /session/listing", h.handleSubmitListing)
	mux.HandleFunc("GET /session/listing/current", h.handleCurrentListing)
	mux.HandleFunc("GET /session/{kind}", h.handleGetCollection)
	mux.HandleFunc("DELETE /session/{kind}", h.handleClearCollection)
	mux.HandleFunc("GET /session/{kind}/events", h.handleEvents)
	mux.HandleFunc("POST /session/{kind}/items", h.handleAddItem)
	mux.HandleFunc("PUT /session/{kind}/items/{id}", h.handleSetQuantity)
	mux.HandleFunc("DELETE /session/{kind}/items/{id}", h.handleRemoveItem)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: h.registry.Len()})
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// handleProducts resolves a filter query without touching any session.
// GET /products?brand=...&category=a,b&page=2
func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	q, err := gateway.DecodeQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), q))
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.asAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{Error: newErrorBody(apiErr)})
}

// asAPIError finds the APIError in err's chain, or logs err and replaces it
// with a generic internal error.
func (h *Handler) asAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	h.logger.Error("internal error", slog.String("error", err.Error()))
	return &model.APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
	}
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorBody(e *model.APIError) errorBody {
	return errorBody{Code: e.Code, Message: e.Message}
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
