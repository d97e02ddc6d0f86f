package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/scoring"
	"github.com/apivet/apivet/pkg/session"
)

// Compile-time interface check.
var _ Hook = (*OTelHook)(nil)

// OTelHook exports scan telemetry to an OpenTelemetry collector: one
// root span per scan, findings recorded as span events.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu       sync.Mutex
	rootSpan trace.Span
	closed   bool
}

// OTelOptions configures the OTLP exporter.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (default "localhost:4317").
	Endpoint string

	// ServiceName for traces (default the tool name).
	ServiceName string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// Headers are sent with every OTLP export.
	Headers map[string]string

	// ShutdownTimeout bounds Close (default 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds the initial exporter dial (default 10s).
	ConnectionTimeout time.Duration
}

// NewOTelHook creates the hook and connects the exporter. Connection
// failures surface here so the caller can drop the hook and scan on.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = 10 * time.Second
	}

	var grpcOpts []grpc.DialOption
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "scanner"),
	)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	return &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer("apivet/scanner"),
	}, nil
}

func (h *OTelHook) OnScanStart(ctx context.Context, scanID, target string, probeCount int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	_, span := h.tracer.Start(ctx, "apivet.scan",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("scan_id", scanID),
			attribute.String("target", target),
			attribute.Int("probes", probeCount),
		),
	)
	h.rootSpan = span
	return nil
}

func (h *OTelHook) OnFindings(ctx context.Context, probe string, findings []finding.Finding) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.rootSpan == nil {
		return nil
	}

	for _, f := range findings {
		h.rootSpan.AddEvent("finding", trace.WithAttributes(
			attribute.String("probe", probe),
			attribute.String("category", f.Category),
			attribute.String("status", string(f.Status)),
			attribute.String("severity", string(f.Severity)),
			attribute.String("url", f.URL),
			attribute.String("description", f.Description),
		))
	}
	return nil
}

func (h *OTelHook) OnScanComplete(ctx context.Context, snap session.Snapshot, score int, level scoring.Level) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.rootSpan == nil {
		return nil
	}

	h.rootSpan.SetAttributes(
		attribute.Int("summary.total_tests", snap.Summary.TotalTests),
		attribute.Int("summary.vulnerabilities_found", snap.Summary.VulnerabilitiesFound),
		attribute.Int("summary.critical", snap.Summary.Critical),
		attribute.Int("summary.high", snap.Summary.High),
		attribute.Int("summary.errors", snap.Summary.Errors),
		attribute.Int("risk.score", score),
		attribute.String("risk.level", string(level)),
		attribute.Float64("duration_seconds", snap.Duration),
	)
	if snap.Summary.VulnerabilitiesFound > 0 {
		h.rootSpan.SetStatus(codes.Error, "scan completed with vulnerabilities")
	} else {
		h.rootSpan.SetStatus(codes.Ok, "scan completed clean")
	}
	h.rootSpan.End()
	h.rootSpan = nil
	return nil
}

// Close ends any active span and flushes the tracer provider.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.rootSpan != nil {
		h.rootSpan.End()
		h.rootSpan = nil
	}
	if h.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
		defer cancel()
		if err := h.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("otel: shutdown tracer provider: %w", err)
		}
	}
	return nil
}

// Endpoint returns the OTLP endpoint in use.
func (h *OTelHook) Endpoint() string { return h.opts.Endpoint }
