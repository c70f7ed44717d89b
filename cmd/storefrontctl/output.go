package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"

	"storefront-sync/internal/session"
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

// response is a decoded service reply.
type response struct {
	status int
	body   map[string]interface{}
}

// sessionHeader builds the Storefront-Session dictionary for the request.
func sessionHeader() (string, error) {
	dict := httpsfv.NewDictionary()
	if sessionID != "" {
		dict.Add("sid", httpsfv.NewItem(sessionID))
	}
	if clientVersion != "" {
		dict.Add("client", httpsfv.NewItem(clientVersion))
	}
	if len(dict.Names()) == 0 {
		return "", nil
	}
	return httpsfv.Marshal(dict)
}

// doRequest sends one request. For an error status the decoded body is
// returned together with the error so callers can still print it.
func doRequest(method, path string, body interface{}) (*response, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(serverURL, "/")+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	header, err := sessionHeader()
	if err != nil {
		return nil, fmt.Errorf("encoding session header: %w", err)
	}
	if header != "" {
		req.Header.Set(session.HeaderName, header)
	}

	if verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if sessionID == "" {
		if h, err := session.ParseHeader(resp.Header.Get(session.HeaderName)); err == nil && h.SessionID != "" {
			sessionID = h.SessionID
			printInfo("session %s (pass --session to reuse it)", sessionID)
		}
	}

	result := &response{status: resp.StatusCode, body: map[string]interface{}{}}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result.body); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorMessage(result.body))
	}
	return result, nil
}

func errorMessage(body map[string]interface{}) string {
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		return "request failed"
	}
	return fmt.Sprintf("%v: %v", e["code"], e["message"])
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printSession(s map[string]interface{}) {
	if quiet {
		return
	}
	fmt.Printf("%sSession%s %s%v%s (%v)\n", colorBold, colorReset, colorCyan, s["id"], colorReset, s["mode"])
	collections, _ := s["collections"].(map[string]interface{})
	for _, kind := range kindNames() {
		summary, ok := collections[kind].(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Printf("  %-9s %v items, %v units, %s\n", kind,
			summary["totalItems"], summary["totalQuantity"], formatPrice(summary["totalPrice"]))
	}
}

func printCollection(c map[string]interface{}) {
	items, _ := c["items"].([]interface{})
	if quiet {
		for _, it := range items {
			item, _ := it.(map[string]interface{})
			fmt.Println(item["id"])
		}
		return
	}

	fmt.Printf("%s%v%s\n", colorBold, c["kind"], colorReset)
	if len(items) == 0 {
		fmt.Printf("  %s(empty)%s\n", colorGray, colorReset)
	}
	for _, it := range items {
		item, _ := it.(map[string]interface{})
		qty := item["quantity"]
		if qty == nil {
			qty = 1
		}
		fmt.Printf("  %s%-12v%s %-32v x%v %s\n", colorCyan, item["id"], colorReset, item["name"], qty, formatPrice(item["price"]))
	}
	if summary, ok := c["summary"].(map[string]interface{}); ok {
		fmt.Printf("  %stotal %s%s\n", colorGray, formatPrice(summary["totalPrice"]), colorReset)
	}
	if e, ok := c["error"].(map[string]interface{}); ok {
		printError("%v", e["message"])
	}
}

func printListing(r map[string]interface{}) {
	page, _ := r["page"].(map[string]interface{})
	items, _ := page["items"].([]interface{})
	if quiet {
		for _, it := range items {
			p, _ := it.(map[string]interface{})
			fmt.Println(p["id"])
		}
		return
	}

	source := fmt.Sprint(r["source"])
	if pass, ok := r["pass"].(string); ok && pass != "" {
		source += "/" + pass
	}
	if stale, _ := r["stale"].(bool); stale {
		printWarning("superseded by a newer query")
	}
	pagination, _ := page["pagination"].(map[string]interface{})
	fmt.Printf("%s%v products%s (page %v of %v, %s)\n", colorBold,
		pagination["totalItems"], colorReset, pagination["currentPage"], pagination["totalPages"], source)

	for _, it := range items {
		p, _ := it.(map[string]interface{})
		brand, _ := p["brand"].(map[string]interface{})
		fmt.Printf("  %s%-12v%s %-40v %-16v %s\n", colorCyan, p["id"], colorReset, p["name"], brand["name"], formatPrice(p["price"]))
	}
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stderr, "%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

// formatPrice renders a decoded JSON number as rupees.
func formatPrice(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("₹%.2f", val)
	case string:
		return "₹" + val
	default:
		return fmt.Sprintf("%v", v)
	}
}
