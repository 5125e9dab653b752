// Package tracing exports OpenTelemetry spans from the API and the database
// layer to an OTLP collector.
package tracing

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// ServiceName names this service in the collector.
var ServiceName = "alternet-naming"

type Config struct {
	// Endpoint is the collector's host:port. Tracing stays off when empty.
	Endpoint string
	Insecure bool
	// PeerID tells nodes apart in the collector.
	PeerID string
}

// InitTracer installs a batching tracer provider and returns its shutdown
// function. With no endpoint it installs nothing and shutdown is a no-op.
func InitTracer(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	secureOption := otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	if cfg.Insecure {
		secureOption = otlptracegrpc.WithInsecure()
	}

	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			secureOption,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating trace exporter")
	}

	resources, err := resource.New(
		ctx,
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
			attribute.String("library.language", "go"),
			attribute.String("peer.id", cfg.PeerID),
		),
	)
	if err != nil {
		zlog.Sugar().Warnf("could not set trace resources: %v", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resources),
	)
	otel.SetTracerProvider(provider)
	zlog.Sugar().Infof("exporting traces to %s", cfg.Endpoint)
	return provider.Shutdown, nil
}
