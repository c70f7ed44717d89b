package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"
)

type contextKey struct{}

// Middleware resolves the Storefront-Session header to a Session and stores
// it in the request context. A request without a session id gets a new one,
// returned in the response header. Storefront builds older than minClient
// are refused with 426 Upgrade Required.
func Middleware(registry *Registry, minClient string, logger *slog.Logger) func(http.Handler) http.Handler {
	minVersion := normalizeVersion(minClient)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			var h Header
			if raw := r.Header.Get(HeaderName); raw != "" {
				parsed, err := ParseHeader(raw)
				if err != nil {
					logger.Warn("invalid session header",
						slog.String("header", raw),
						slog.String("error", err.Error()))
					writeSessionError(w, http.StatusBadRequest, "INVALID_SESSION_HEADER", err.Error())
					return
				}
				h = parsed
			}

			if minClient != "" && h.Client != "" && !clientSupported(h.Client, minVersion) {
				writeSessionError(w, http.StatusUpgradeRequired, "CLIENT_TOO_OLD",
					"storefront client "+h.Client+" is older than "+minClient)
				return
			}

			if h.SessionID == "" {
				h.SessionID = uuid.NewString()
			}
			if echoed, err := FormatHeader(h.SessionID); err == nil {
				w.Header().Set(HeaderName, echoed)
			}

			s := registry.GetOrCreate(h.SessionID)
			ctx := context.WithValue(r.Context(), contextKey{}, &Request{Session: s, Token: h.Token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Request is what the middleware attaches to a request.
type Request struct {
	Session *Session

	// Token is the customer token from the header, if any. Handlers use it
	// when a login request carries no token of its own.
	Token string
}

// FromContext returns the session request attached by Middleware, or nil.
func FromContext(ctx context.Context) *Request {
	v, _ := ctx.Value(contextKey{}).(*Request)
	return v
}

func clientSupported(client, minVersion string) bool {
	v := normalizeVersion(client)
	if !semver.IsValid(v) || !semver.IsValid(minVersion) {
		return false
	}
	return semver.Compare(v, minVersion) >= 0
}

// normalizeVersion adds the "v" prefix semver expects.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v[0] == 'v' {
		return v
	}
	return "v" + v
}

// ValidVersion reports whether v parses as a semantic version.
func ValidVersion(v string) bool {
	return semver.IsValid(normalizeVersion(v))
}

// isExemptPath lists routes that are not session scoped. MCP tool calls
// name their session in the arguments.
func isExemptPath(path string) bool {
	switch {
	case path == "/health" || path == "/healthz" || path == "/metrics":
		return true
	case path == "/products" || strings.HasPrefix(path, "/mcp"):
		return true
	default:
		return false
	}
}

func writeSessionError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}
