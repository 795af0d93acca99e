// Copyright (c) 2025 Justin Cranford

// Package telemetry wires structured logging, tracing, and metrics for the
// MFA client core. Every suspension point named in the concurrency model
// (an HTTP round trip, a biometric evaluation, a key-store access, an OAuth
// exchange) is expected to open a span and log through the Service it is
// handed.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Service bundles a logger, a tracer provider, and a meter provider under a
// single lifetime, mirroring the teacher repo's TelemetryService shape.
type Service struct {
	Slogger         *slog.Logger
	TracesProvider  trace.TracerProvider
	MetricsProvider otelmetric.MeterProvider
	StartTime       time.Time

	shutdownFuncs []func(context.Context) error
}

// New builds a Service that logs to stderr (or, when verbose is false, only
// at Warn level and above) and exports traces/metrics through the stdout
// exporters, whose output is written to stderr. Production
// hosts are expected to swap the stdout exporters for OTLP ones via the
// equivalent constructor in their own composition root; the core itself
// never dials an external collector.
func New(ctx context.Context, serviceName string, verbose bool) *Service {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	svc := &Service{StartTime: time.Now().UTC()}

	logProvider := sdklog.NewLoggerProvider()
	svc.shutdownFuncs = append(svc.shutdownFuncs, logProvider.Shutdown)
	otelHandler := otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(logProvider))

	handler := slogmulti.Fanout(textHandler, otelHandler)
	logger := slog.New(handler).With("service", serviceName)
	svc.Slogger = logger

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.ErrorContext(ctx, "failed to build trace exporter, tracing disabled", "error", err)
		svc.TracesProvider = trace.NewNoopTracerProvider()
	} else {
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
		svc.TracesProvider = tp
		svc.shutdownFuncs = append(svc.shutdownFuncs, tp.Shutdown)
	}

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	if err != nil {
		logger.ErrorContext(ctx, "failed to build metric exporter, metrics disabled", "error", err)
		svc.MetricsProvider = otelmetric.NewMeterProvider()
	} else {
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
		svc.MetricsProvider = mp
		svc.shutdownFuncs = append(svc.shutdownFuncs, mp.Shutdown)
	}

	otel.SetTracerProvider(svc.TracesProvider)

	return svc
}

// NewForTest builds a Service whose exporters are no-ops, for use in tests
// that only need a Tracer()/Slogger and must not print
// telemetry output on every `go test` run.
func NewForTest(name string) *Service {
	return &Service{
		Slogger:         slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})).With("service", name),
		TracesProvider:  trace.NewNoopTracerProvider(),
		MetricsProvider: otelmetric.NewMeterProvider(),
		StartTime:       time.Now().UTC(),
	}
}

// Tracer returns the named tracer, the entry point used by every suspension
// point to open a span before an HTTP round trip, biometric evaluation, or
// key-store access.
func (s *Service) Tracer(name string) trace.Tracer {
	return s.TracesProvider.Tracer(name)
}

// Shutdown flushes and releases the tracer/meter providers. Safe to call
// more than once; subsequent calls are no-ops.
func (s *Service) Shutdown(ctx context.Context) {
	for _, fn := range s.shutdownFuncs {
		if err := fn(ctx); err != nil {
			s.Slogger.ErrorContext(ctx, "telemetry shutdown error", "error", err)
		}
	}

	s.shutdownFuncs = nil
}
