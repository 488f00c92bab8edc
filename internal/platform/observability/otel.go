package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"camera-kingdom/internal/config"
)

// Shutdown flushes and stops an SDK provider.
type Shutdown func(context.Context) error

func newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
}

// SetupTracingSDK installs a global tracer provider exporting over OTLP/HTTP.
// Without an endpoint the global no-op provider stays in place.
func SetupTracingSDK(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.OtelEnabled() {
		return nil, func(context.Context) error { return nil }, nil
	}

	res, err := newResource()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OtelEndpoint),
		otlptracehttp.WithURLPath(config.TracesPath),
		otlptracehttp.WithHeaders(authHeaders(cfg)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithExportTimeout(config.ExportTimeout),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp, tp.Shutdown, nil
}

// SetupLoggingSDK installs a global OTLP log provider for the zap bridge.
func SetupLoggingSDK(ctx context.Context, cfg *config.Config) (Shutdown, error) {
	if !cfg.OtelEnabled() {
		return func(context.Context) error { return nil }, nil
	}

	res, err := newResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.OtelEndpoint),
		otlploghttp.WithURLPath(config.LogsPath),
		otlploghttp.WithHeaders(authHeaders(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("OTLP log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter,
			sdklog.WithExportTimeout(config.ExportTimeout),
			sdklog.WithMaxQueueSize(config.MaxQueueSize),
		)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(provider)

	return provider.Shutdown, nil
}

// JoinShutdown runs every shutdown function and joins their errors.
func JoinShutdown(fns ...Shutdown) Shutdown {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range fns {
			if fn != nil {
				err = errors.Join(err, fn(ctx))
			}
		}
		return err
	}
}

func authHeaders(cfg *config.Config) map[string]string {
	if cfg.OtelAuthHeader == "" {
		return nil
	}
	return map[string]string{"Authorization": cfg.OtelAuthHeader}
}
