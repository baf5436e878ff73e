// Package telemetry installs the OpenTelemetry trace, log and metric
// providers used by the assistant binary.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	serviceName           = "ema-realtime"
	defaultMetricInterval = time.Minute
)

type Config struct {
	// Exporter is "stdout", "otlp" or "none".
	Exporter     string
	OTLPEndpoint string
	// LogWriter receives log records. Nil discards them.
	LogWriter io.Writer
	// TraceWriter receives spans for the stdout exporter. Nil means os.Stderr.
	TraceWriter io.Writer
	// MetricWriter receives playback and tool counters. Nil discards them.
	MetricWriter io.Writer
	// MetricInterval is how often counters are exported. Shutdown always
	// exports a final collection.
	MetricInterval time.Duration
}

type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Setup builds the providers and installs them globally. Shutdown flushes
// them and must be called before exit.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	spanExporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logWriter := cfg.LogWriter
	if logWriter == nil {
		logWriter = io.Discard
	}
	logExporter, err := stdoutlog.New(stdoutlog.WithWriter(logWriter))
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	metricWriter := cfg.MetricWriter
	if metricWriter == nil {
		metricWriter = io.Discard
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricWriter))
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		_ = logExporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}

	providers := &Providers{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(spanExporter),
		),
		LoggerProvider: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewSimpleProcessor(logExporter)),
		),
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		),
	}

	otel.SetTracerProvider(providers.TracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	global.SetLoggerProvider(providers.LoggerProvider)
	otel.SetMeterProvider(providers.MeterProvider)

	return providers, nil
}

func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return errors.Join(
		p.TracerProvider.Shutdown(ctx),
		p.LoggerProvider.Shutdown(ctx),
		p.MeterProvider.Shutdown(ctx),
	)
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		writer := cfg.TraceWriter
		if writer == nil {
			writer = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(writer), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	case "otlp":
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		exporter, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exporter, nil
	case "none", "":
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error                             { return nil }
