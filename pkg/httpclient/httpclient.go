// Package httpclient provides the shared HTTP client factory used by all
// probes and the plan advisor. Pooling connections across probes keeps the
// footprint against the target small and makes the connection ceiling a
// single configurable resource.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: 15s).
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification. Scan targets
	// in lab environments frequently carry self-signed certificates.
	InsecureSkipVerify bool

	// Proxy is an HTTP/HTTPS proxy URL (optional).
	Proxy string

	// MaxConnsPerHost caps connections to the target (default: 10).
	// This is the request-burstiness ceiling for the whole scan.
	MaxConnsPerHost int

	// MaxIdleConns caps idle pooled connections (default: 20).
	MaxIdleConns int

	// IdleConnTimeout is how long idle connections stay pooled (default: 60s).
	IdleConnTimeout time.Duration

	// DialTimeout bounds connection establishment (default: 10s).
	DialTimeout time.Duration
}

// DefaultConfig returns defaults tuned for probing a single API target:
// a modest per-host connection cap and no redirect following.
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		MaxConnsPerHost: 10,
		MaxIdleConns:    20,
		IdleConnTimeout: 60 * time.Second,
		DialTimeout:     10 * time.Second,
	}
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once
)

// Default returns a shared, pre-configured HTTP client. It is safe for
// concurrent use and pools connections across all probes.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = New(DefaultConfig())
	})
	return defaultClient
}

// New creates an HTTP client with the given configuration. Redirects are
// never followed: probes need to observe the redirect response itself.
func New(cfg Config) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 20
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 60 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,

		DialContext: dialer.DialContext,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		// Malformed proxy URLs are ignored; the scan proceeds direct.
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
