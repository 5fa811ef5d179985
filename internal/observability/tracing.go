package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/config"
)

// ServiceName identifies explorer spans.
const ServiceName = "drone-explorer"

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(context.Context) error

// TracingOption customises InitTracing.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	writer io.Writer
}

// WithTraceWriter sends stdout-exported spans to w instead of stderr.
func WithTraceWriter(w io.Writer) TracingOption {
	return func(o *tracingOptions) { o.writer = w }
}

// InitTracing installs the global tracer provider described by cfg and
// returns a shutdown function that flushes pending spans.
func InitTracing(ctx context.Context, cfg config.TracingConfig, log *zap.Logger, opts ...TracingOption) (ShutdownFunc, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := tracingOptions{writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	exporter := strings.ToLower(cfg.Exporter)
	if !cfg.Enabled || exporter == "none" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exporterFor(exporter, o.writer)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.Info("tracing enabled", zap.String("exporter", exporter))
	return tp.Shutdown, nil
}

func exporterFor(name string, w io.Writer) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout", "":
		return stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", name)
	}
}

// ShutdownWithTimeout runs shutdown with a bounded timeout and logs failures.
func ShutdownWithTimeout(ctx context.Context, shutdown ShutdownFunc, log *zap.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn("tracing shutdown failed", zap.Error(err))
	}
}
