// Package transport builds the http.RoundTripper used for upstream API calls.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// =============================================================================
// TLS FINGERPRINT TRANSPORT
// =============================================================================
//
// The catalog API sits behind a CDN that rate-limits clients whose TLS
// handshake does not look like a browser. The storefront UI never hit this
// because browsers made the calls; this service makes them on the UI's behalf.
//
// The Chrome transport uses uTLS with HelloChrome_Auto, lets ALPN pick h2 or
// http/1.1, and hands h2 connections to golang.org/x/net/http2.
//
// =============================================================================

// Options selects and tunes the upstream transport.
type Options struct {
	// ChromeTLS presents a Chrome TLS fingerprint when true.
	ChromeTLS bool

	// DialTimeout bounds connection setup. Zero means 10s.
	DialTimeout time.Duration

	// MaxIdleConnsPerHost for the HTTP/1.1 path. Zero means 16.
	MaxIdleConnsPerHost int
}

// New returns the round tripper described by opts.
func New(opts Options) http.RoundTripper {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 16
	}
	if opts.ChromeTLS {
		return newChromeTransport(opts)
	}

	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		TLSHandshakeTimeout: opts.DialTimeout,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint to upstream servers.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	return New(Options{ChromeTLS: true, DialTimeout: timeout})
}

func newChromeTransport(opts Options) *chromeTransport {
	dialer := &net.Dialer{Timeout: opts.DialTimeout}

	h2Transport := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	// Plain http:// targets (local API, tests) go through DialContext.
	h1Transport := &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
	}

	return &chromeTransport{
		h2: h2Transport,
		h1: h1Transport,
	}
}

// chromeTransport wraps HTTP/2 and HTTP/1.1 transports with Chrome TLS fingerprint.
type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip implements http.RoundTripper.
// https requests try HTTP/2 first and fall back to HTTP/1.1; plain http
// requests go straight to HTTP/1.1.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	// A body already consumed by the h2 attempt cannot be replayed.
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, err
		}
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
