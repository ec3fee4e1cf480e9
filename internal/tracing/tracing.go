// Package tracing installs the OpenTelemetry SDK tracer provider used for batch run spans.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config is the tracing section of corebatch.yaml.
type Config struct {
	// Endpoint is the OTLP gRPC collector address. Empty keeps spans in process.
	Endpoint    string  `yaml:"endpoint,omitempty"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Validate checks the sampling ratio.
func (c Config) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", c.SampleRatio)
	}
	return nil
}

// New builds an SDK tracer provider for cfg. Spans are batched to the OTLP collector when
// cfg.Endpoint is set. Extra options are appended, so tests can attach a span recorder.
func New(ctx context.Context, cfg Config, version string, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res := sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version),
	)
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	if cfg.Endpoint != "" {
		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter for %s: %w", cfg.Endpoint, err)
		}
		base = append(base, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(append(base, opts...)...), nil
}
