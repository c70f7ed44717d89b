package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is. Every APIError built here wraps exactly one.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUpstreamError  = errors.New("upstream error")
	ErrRateLimited    = errors.New("rate limited")
	ErrTimeout        = errors.New("timeout")
	ErrRolledBack     = errors.New("mutation rolled back")
)

// APIError is what the storefront sees when a collection or catalog call
// fails. Gateway failures of every sort (transport, deadline, a refusing
// envelope) surface as one, so the UI has a single shape to render as a
// notice.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(status int, code, message string, err error) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: status, Err: err}
}

// NewNotFoundError reports a product, item or collection the upstream does
// not know.
func NewNotFoundError(resource string) *APIError {
	return newAPIError(http.StatusNotFound, "NOT_FOUND", resource+" not found", ErrNotFound)
}

func NewValidationError(field, reason string) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_ERROR",
		fmt.Sprintf("invalid %s: %s", field, reason), ErrInvalidRequest)
}

// NewUnauthorizedError reports a customer token the upstream refused. The
// reason is shown as is.
func NewUnauthorizedError(reason string) *APIError {
	return newAPIError(http.StatusUnauthorized, "UNAUTHORIZED", reason, ErrUnauthorized)
}

// NewUpstreamError reports a gateway call that never produced a usable
// response. op is the gateway operation, e.g. "cart_add".
func NewUpstreamError(op string, err error) *APIError {
	return newAPIError(http.StatusBadGateway, "UPSTREAM_ERROR",
		op+" request failed", fmt.Errorf("%w: %v", ErrUpstreamError, err))
}

// NewRejectedError reports a 2xx envelope with success=false. It matches
// ErrUpstreamError so callers roll back exactly as for a transport failure.
func NewRejectedError(op, reason string) *APIError {
	if reason == "" {
		reason = "request rejected"
	}
	return newAPIError(http.StatusBadGateway, "UPSTREAM_REJECTED", op+": "+reason, ErrUpstreamError)
}

func NewTimeoutError(op string) *APIError {
	return newAPIError(http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", op+" request timed out", ErrTimeout)
}

func NewInternalError(err error) *APIError {
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", err)
}

func NewRateLimitError(op string) *APIError {
	return newAPIError(http.StatusTooManyRequests, "RATE_LIMITED",
		op+" rate limit exceeded, please retry later", ErrRateLimited)
}

// NewRolledBackError reports an optimistic add, remove or quantity change
// that was undone locally because the upstream call failed. The cause stays
// in the chain, so errors.Is also matches its sentinel.
func NewRolledBackError(op, itemID string, cause error) *APIError {
	err := ErrRolledBack
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrRolledBack, cause)
	}
	return newAPIError(http.StatusConflict, "ROLLED_BACK", fmt.Sprintf("%s %s was reverted", op, itemID), err)
}

// FromUpstreamStatus maps a non-2xx upstream status to an APIError. msg is
// the envelope's message, possibly empty.
func FromUpstreamStatus(op string, status int, msg string) *APIError {
	switch status {
	case http.StatusNotFound:
		return NewNotFoundError(op)
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = "customer session rejected"
		}
		return NewUnauthorizedError(msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "invalid request"
		}
		return NewValidationError(op, msg)
	case http.StatusTooManyRequests:
		return NewRateLimitError(op)
	case http.StatusGatewayTimeout:
		return NewTimeoutError(op)
	default:
		return NewUpstreamError(op, fmt.Errorf("status %d: %s", status, msg))
	}
}
