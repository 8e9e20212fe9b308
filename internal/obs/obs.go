// Package obs wires OpenTelemetry tracing and metrics around upstream
// model calls.
package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/shillcollin/parley/internal/obs"

var (
	mu     sync.RWMutex
	tracer trace.Tracer = otel.Tracer(scopeName)
)

type noopSpanExporter struct{}

func (noopSpanExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopSpanExporter) Shutdown(context.Context) error                             { return nil }

// Init configures global tracing and metrics. The returned function
// flushes and shuts providers down.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "parley"
	}
	if opts.SampleRatio <= 0 || opts.SampleRatio > 1 {
		opts.SampleRatio = 1
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
			semconv.DeploymentEnvironment(opts.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter = noopSpanExporter{}
	if opts.Exporter == ExporterStdout {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(opts.SampleRatio)),
	)
	otel.SetTracerProvider(tracerProvider)

	var meterProvider *sdkmetric.MeterProvider
	var meter metric.Meter
	if !opts.DisableMetrics {
		meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		otel.SetMeterProvider(meterProvider)
		meter = meterProvider.Meter(scopeName)
	} else {
		meter = otel.Meter(scopeName)
	}

	mu.Lock()
	tracer = tracerProvider.Tracer(scopeName)
	mu.Unlock()
	installMetrics(meter)

	return func(ctx context.Context) error {
		err := tracerProvider.Shutdown(ctx)
		if meterProvider != nil {
			if merr := meterProvider.Shutdown(ctx); err == nil {
				err = merr
			}
		}
		return err
	}, nil
}

// Tracer returns the tracer in use. Before Init it falls back to the
// global otel tracer, so instrumented code works in tests without setup.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}
