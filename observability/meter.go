package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/mediaflow/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns defaults for a local collector.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a periodic OTLP meter provider as the global provider.
// The caller shuts it down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Get("observability").Info("meter initialized", logger.Fields(
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Element outcomes recorded by RecordElement.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Metrics holds the instruments for jobs and operators.
type Metrics struct {
	jobsActive      metric.Int64UpDownCounter
	jobsTotal       metric.Int64Counter
	jobDuration     metric.Float64Histogram
	elementsTotal   metric.Int64Counter
	elementDuration metric.Float64Histogram
	errorTotal      metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	jobsActive, err := meter.Int64UpDownCounter("mediaflow.jobs.active",
		metric.WithDescription("Number of running pipeline jobs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mediaflow.jobs.active counter: %w", err)
	}

	jobsTotal, err := meter.Int64Counter("mediaflow.jobs.total",
		metric.WithDescription("Finished pipeline jobs by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mediaflow.jobs.total counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram("mediaflow.job.duration",
		metric.WithDescription("Duration of pipeline jobs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mediaflow.job.duration histogram: %w", err)
	}

	elementsTotal, err := meter.Int64Counter("mediaflow.elements.total",
		metric.WithDescription("Retrievables handled per operator and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mediaflow.elements.total counter: %w", err)
	}

	elementDuration, err := meter.Float64Histogram("mediaflow.element.duration",
		metric.WithDescription("Time an operator spent producing one element, in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mediaflow.element.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("mediaflow.errors.total",
		metric.WithDescription("Errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mediaflow.errors.total counter: %w", err)
	}

	return &Metrics{
		jobsActive:      jobsActive,
		jobsTotal:       jobsTotal,
		jobDuration:     jobDuration,
		elementsTotal:   elementsTotal,
		elementDuration: elementDuration,
		errorTotal:      errorTotal,
	}, nil
}

// RecordJobStart increments the running job count.
func (m *Metrics) RecordJobStart(ctx context.Context, pipeline string) {
	m.jobsActive.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPipeline, pipeline)))
}

// RecordJobEnd decrements running jobs and records the terminal status.
func (m *Metrics) RecordJobEnd(ctx context.Context, pipeline, status string, duration time.Duration) {
	pipelineAttr := attribute.String(AttrPipeline, pipeline)
	m.jobsActive.Add(ctx, -1, metric.WithAttributes(pipelineAttr))
	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(pipelineAttr, attribute.String(AttrStatus, status)))
	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(pipelineAttr))
}

// RecordElement records one element leaving an operator.
func (m *Metrics) RecordElement(ctx context.Context, operator, kind, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrOperator, operator),
		attribute.String(AttrOperatorKind, kind),
		attribute.String(AttrStatus, outcome),
	)
	m.elementsTotal.Add(ctx, 1, attrs)
	m.elementDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperator, operator),
		attribute.String(AttrOperatorKind, kind),
	))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
