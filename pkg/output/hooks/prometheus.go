package hooks

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/scoring"
	"github.com/apivet/apivet/pkg/session"
)

// Compile-time interface check.
var _ Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes scan metrics for scraping. It starts an HTTP
// server serving the configured path until Close.
type PrometheusHook struct {
	server   *http.Server
	registry *prometheus.Registry
	opts     PrometheusOptions

	testsTotal           *prometheus.CounterVec
	vulnerabilitiesTotal *prometheus.CounterVec
	errorsTotal          *prometheus.CounterVec
	riskScore            *prometheus.GaugeVec
	scanDurationSeconds  *prometheus.GaugeVec

	mu     sync.Mutex
	closed bool
}

// PrometheusOptions configures the metrics server.
type PrometheusOptions struct {
	// Port for the metrics server (default 9090).
	Port int

	// Path for the metrics endpoint (default "/metrics").
	Path string

	// ReadTimeout for the HTTP server (default 5s).
	ReadTimeout time.Duration

	// WriteTimeout for the HTTP server (default 10s).
	WriteTimeout time.Duration
}

// NewPrometheusHook creates the hook and starts its metrics server.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Port == 0 {
		opts.Port = 9090
	}
	if opts.Path == "" {
		opts.Path = "/metrics"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	// Own registry, don't pollute the default one.
	h := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
	}
	if err := h.initMetrics(); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	h.startServer()
	return h, nil
}

func (h *PrometheusHook) initMetrics() error {
	h.testsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apivet_tests_total",
			Help: "Total number of probe checks executed",
		},
		[]string{"target", "probe", "status"},
	)
	h.vulnerabilitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apivet_vulnerabilities_total",
			Help: "Total number of vulnerabilities found",
		},
		[]string{"target", "probe", "severity"},
	)
	h.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apivet_errors_total",
			Help: "Total number of probe execution errors",
		},
		[]string{"target", "probe"},
	)
	h.riskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apivet_risk_score",
			Help: "Final risk score of the scan (0-100)",
		},
		[]string{"target"},
	)
	h.scanDurationSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apivet_scan_duration_seconds",
			Help: "Total scan duration in seconds",
		},
		[]string{"target"},
	)

	for _, c := range []prometheus.Collector{
		h.testsTotal,
		h.vulnerabilitiesTotal,
		h.errorsTotal,
		h.riskScore,
		h.scanDurationSeconds,
	} {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (h *PrometheusHook) startServer() {
	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.opts.Port),
		Handler:      mux,
		ReadTimeout:  h.opts.ReadTimeout,
		WriteTimeout: h.opts.WriteTimeout,
	}
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("prometheus: metrics server error: %v", err)
		}
	}()
}

func (h *PrometheusHook) OnScanStart(ctx context.Context, scanID, target string, probeCount int) error {
	return nil
}

func (h *PrometheusHook) OnFindings(ctx context.Context, probe string, findings []finding.Finding) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	for _, f := range findings {
		target := extractHost(f.URL)
		h.testsTotal.WithLabelValues(target, probe, string(f.Status)).Inc()
		switch f.Status {
		case finding.StatusVulnerable:
			h.vulnerabilitiesTotal.WithLabelValues(target, probe, string(f.Severity)).Inc()
		case finding.StatusError:
			h.errorsTotal.WithLabelValues(target, probe).Inc()
		}
	}
	return nil
}

func (h *PrometheusHook) OnScanComplete(ctx context.Context, snap session.Snapshot, score int, level scoring.Level) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	target := extractHost(snap.Target)
	h.riskScore.WithLabelValues(target).Set(float64(score))
	h.scanDurationSeconds.WithLabelValues(target).Set(snap.Duration)
	return nil
}

// Close shuts down the metrics server.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(ctx)
	}
	return nil
}

// MetricsAddr returns the address where metrics are served.
func (h *PrometheusHook) MetricsAddr() string {
	return fmt.Sprintf("http://localhost:%d%s", h.opts.Port, h.opts.Path)
}

// extractHost pulls the host out of a URL for use as a metric label.
func extractHost(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}
	start := 0
	if idx := indexOf(rawURL, "://"); idx >= 0 {
		start = idx + 3
	}
	end := len(rawURL)
	for i := start; i < len(rawURL); i++ {
		if rawURL[i] == '/' || rawURL[i] == '?' || rawURL[i] == '#' {
			end = i
			break
		}
	}
	if start >= end {
		return "unknown"
	}
	return rawURL[start:end]
}

func indexOf(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
