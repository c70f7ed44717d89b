package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront-sync/internal/metrics"
	"storefront-sync/internal/model"
)

// maxResponseSize caps upstream bodies. A full catalog fetch of 1000
// products is well under this.
const maxResponseSize = 16 << 20

// envelope is the upstream response wrapper: {success, data, message}.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// call performs one request and decodes the envelope's data into out
// (which may be nil). op labels metrics and errors.
func (c *Client) call(ctx context.Context, op, method, path string, creds Credentials, body, out interface{}) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveGateway(op, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return model.NewInternalError(fmt.Errorf("marshaling %s request: %w", op, err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return model.NewInternalError(fmt.Errorf("creating %s request: %w", op, err))
	}
	c.setHeaders(req, creds, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.NewTimeoutError(op)
		}
		return model.NewUpstreamError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.NewTimeoutError(op)
		}
		return model.NewUpstreamError(op, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(op, resp.StatusCode, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return model.NewUpstreamError(op, fmt.Errorf("parsing envelope: %w", err))
	}
	if !env.Success {
		return model.NewRejectedError(op, firstNonEmpty(env.Message, env.Error))
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return model.NewUpstreamError(op, fmt.Errorf("parsing data: %w", err))
	}
	return nil
}

// setHeaders applies the standard upstream headers. The customer token is
// sent as the session cookie, as the browser would.
func (c *Client) setHeaders(req *http.Request, creds Credentials, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if creds.Token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: creds.Token})
	}
}

// parseErrorResponse converts a non-2xx upstream response to an APIError.
func parseErrorResponse(op string, statusCode int, body []byte) error {
	var env envelope
	json.Unmarshal(body, &env) // Best effort parse
	msg := firstNonEmpty(env.Message, env.Error)

	return model.FromUpstreamStatus(op, statusCode, msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
