package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

type Config struct {
	ServiceName  string
	Endpoint     string
	SamplingRate float64
}

// Init installs a global tracer provider exporting over OTLP/HTTP and returns
// its shutdown func together with a middleware that traces incoming requests.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, func(http.Handler) http.Handler, error) {
	if cfg.ServiceName == "" {
		return nil, nil, errors.New("telemetry: service name is required")
	}
	if cfg.Endpoint == "" {
		return nil, nil, errors.New("telemetry: endpoint is required")
	}

	exporter, err := otlptracehttp.New(ctx, exporterOptions(cfg.Endpoint)...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	middleware := func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, cfg.ServiceName)
	}

	return provider.Shutdown, middleware, nil
}

func exporterOptions(endpoint string) []otlptracehttp.Option {
	var opts []otlptracehttp.Option

	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(parsed.Host))
		if parsed.Path != "" && parsed.Path != "/" {
			opts = append(opts, otlptracehttp.WithURLPath(parsed.Path))
		}
		if parsed.Scheme == "http" {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return opts
	}

	return append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
}
