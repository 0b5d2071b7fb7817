package kernel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type AppDiagnostic struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	RequestCounter metric.Int64Counter
	ErrorCounter   metric.Int64Counter
}

// NewDiagnostic takes its tracer and meter from the otel globals, which
// forward to whatever providers SetupOtel installs later.
func NewDiagnostic(serviceName string) (*AppDiagnostic, error) {
	diag := &AppDiagnostic{
		Tracer: otel.Tracer(serviceName + "-tracer"),
		Meter:  otel.Meter(serviceName + "-meter"),
	}

	counter, err := diag.Meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"))
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}
	diag.RequestCounter = counter

	errCounter, err := diag.Meter.Int64Counter("http_errors_total",
		metric.WithDescription("Total number of HTTP requests answered with an error"))
	if err != nil {
		return nil, fmt.Errorf("creating error counter: %w", err)
	}
	diag.ErrorCounter = errCounter

	return diag, nil
}

func (diag *AppDiagnostic) BeginTracing(ctx context.Context, spanName string) (trace.Span, context.Context) {
	ctx, span := diag.Tracer.Start(ctx, spanName)
	return span, ctx
}
