package model

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	plain := &APIError{Code: "NOT_FOUND", Message: "wishlist_remove not found"}
	if got, want := plain.Error(), "NOT_FOUND: wishlist_remove not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := &APIError{Code: "UPSTREAM_ERROR", Message: "cart_add request failed", Err: errors.New("connection reset")}
	if got, want := wrapped.Error(), "UPSTREAM_ERROR: cart_add request failed (connection reset)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if (&APIError{Code: "X"}).Unwrap() != nil {
		t.Error("Unwrap() should be nil without a cause")
	}
}

// Each constructor carries the code, status and sentinel the storefront
// renders; the message names the gateway operation.
func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		code     string
		status   int
		message  string
		sentinel error
	}{
		{"missing product", NewNotFoundError("product p-404"), "NOT_FOUND", http.StatusNotFound, "product p-404 not found", ErrNotFound},
		{"bad quantity", NewValidationError("quantity", "must be positive"), "VALIDATION_ERROR", http.StatusBadRequest, "invalid quantity: must be positive", ErrInvalidRequest},
		{"expired token", NewUnauthorizedError("customer session rejected"), "UNAUTHORIZED", http.StatusUnauthorized, "customer session rejected", ErrUnauthorized},
		{"cart fetch down", NewUpstreamError("cart_fetch", errors.New("dial tcp: refused")), "UPSTREAM_ERROR", http.StatusBadGateway, "cart_fetch request failed", ErrUpstreamError},
		{"out of stock", NewRejectedError("cart_add", "product unavailable"), "UPSTREAM_REJECTED", http.StatusBadGateway, "cart_add: product unavailable", ErrUpstreamError},
		{"silent refusal", NewRejectedError("wishlist_add", ""), "UPSTREAM_REJECTED", http.StatusBadGateway, "wishlist_add: request rejected", ErrUpstreamError},
		{"slow merge", NewTimeoutError("wishlist_merge"), "UPSTREAM_TIMEOUT", http.StatusGatewayTimeout, "wishlist_merge request timed out", ErrTimeout},
		{"catalog throttled", NewRateLimitError("catalog_search"), "RATE_LIMITED", http.StatusTooManyRequests, "catalog_search rate limit exceeded, please retry later", ErrRateLimited},
		{"reverted add", NewRolledBackError("add", "p-7", nil), "ROLLED_BACK", http.StatusConflict, "add p-7 was reverted", ErrRolledBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.status)
			}
			if tt.err.Message != tt.message {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.message)
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
		})
	}
}

func TestNewInternalError_KeepsCause(t *testing.T) {
	cause := errors.New("encoding cart: unsupported value")
	err := NewInternalError(cause)
	if err.StatusCode != http.StatusInternalServerError || err.Message != "an internal error occurred" {
		t.Errorf("got %d %q", err.StatusCode, err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should stay in the chain")
	}
}

func TestNewRolledBackError_KeepsCause(t *testing.T) {
	cause := NewTimeoutError("cart_set_quantity")
	err := NewRolledBackError("set_quantity", "p-3", cause)

	if !errors.Is(err, ErrRolledBack) {
		t.Error("should match ErrRolledBack")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("should match the cause's sentinel")
	}

	// The outermost APIError is the rollback, which is what the notice shows.
	var apiErr *APIError
	if !errors.As(fmt.Errorf("cart: %w", err), &apiErr) || apiErr.Code != "ROLLED_BACK" {
		t.Errorf("errors.As found %v, want the rollback", apiErr)
	}
}

func TestFromUpstreamStatus(t *testing.T) {
	tests := []struct {
		status   int
		msg      string
		code     string
		message  string
		sentinel error
	}{
		{http.StatusNotFound, "", "NOT_FOUND", "wishlist_remove not found", ErrNotFound},
		{http.StatusUnauthorized, "", "UNAUTHORIZED", "customer session rejected", ErrUnauthorized},
		{http.StatusForbidden, "token revoked", "UNAUTHORIZED", "token revoked", ErrUnauthorized},
		{http.StatusUnprocessableEntity, "sku required", "VALIDATION_ERROR", "invalid wishlist_remove: sku required", ErrInvalidRequest},
		{http.StatusBadRequest, "", "VALIDATION_ERROR", "invalid wishlist_remove: invalid request", ErrInvalidRequest},
		{http.StatusTooManyRequests, "", "RATE_LIMITED", "wishlist_remove rate limit exceeded, please retry later", ErrRateLimited},
		{http.StatusGatewayTimeout, "", "UPSTREAM_TIMEOUT", "wishlist_remove request timed out", ErrTimeout},
		{http.StatusServiceUnavailable, "maintenance", "UPSTREAM_ERROR", "wishlist_remove request failed", ErrUpstreamError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromUpstreamStatus("wishlist_remove", tt.status, tt.msg)
			if err.Code != tt.code || err.Message != tt.message {
				t.Errorf("got %s %q, want %s %q", err.Code, err.Message, tt.code, tt.message)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
		})
	}
}
