package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Options configures InitTracer.
type Options struct {
	// Writer receives exported spans. Defaults to stdout.
	Writer io.Writer

	// PrettyPrint indents exported spans.
	PrettyPrint bool
}

// InitTracer installs a global tracer provider exporting spans for
// serviceName, such as each agent.invoke turn, to the options' writer.
func InitTracer(serviceName string, logger *slog.Logger, opts Options) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if opts.PrettyPrint {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}

	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", serviceName))

	return tp, tp.Shutdown, nil
}

// Noop is the ShutdownFunc used when tracing is disabled.
func Noop(context.Context) error { return nil }
