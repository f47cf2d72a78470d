package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observability records run-level metrics and stage spans.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	tracer        trace.Tracer
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
}

// New installs a meter provider exporting through the default prometheus registry.
// On exporter failure it returns an instance whose recorders are no-ops.
func New(serviceName string) (*Observability, error) {
	obs := &Observability{tracer: otel.Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		return obs, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	obs.meterProvider = provider
	obs.meter = provider.Meter(serviceName)

	obs.runCounter, _ = obs.meter.Int64Counter(
		"techpack.runs",
		otelmetric.WithDescription("Number of generation runs by mode and status"),
	)
	obs.runDuration, _ = obs.meter.Float64Histogram(
		"techpack.run.duration",
		otelmetric.WithDescription("Generation run duration"),
		otelmetric.WithUnit("ms"),
	)

	return obs, nil
}

// NewNoop returns an Observability that only carries the global tracer.
func NewNoop() *Observability {
	return &Observability{tracer: otel.Tracer("techpack")}
}

func (o *Observability) RecordRun(ctx context.Context, mode, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// StartSpan opens a span for one stage call.
func (o *Observability) StartSpan(ctx context.Context, stage, productID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("techpack")
	if o != nil && o.tracer != nil {
		tracer = o.tracer
	}
	return tracer.Start(ctx, "stage."+stage, trace.WithAttributes(
		attribute.String("techpack.stage", stage),
		attribute.String("techpack.product_id", productID),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
