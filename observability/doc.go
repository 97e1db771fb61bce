// Package observability wires OpenTelemetry tracing and metrics for pipeline
// jobs and operators.
//
//	shutdown, err := observability.Setup(ctx, observability.Config{ServiceName: "mediaflow", Endpoint: "localhost:4318"})
//	defer shutdown(ctx)
//
//	metrics, _ := observability.NewMetrics(observability.Meter(observability.InstrumentationName))
//	ctx, span := observability.StartSpan(ctx, observability.SpanJob)
//	defer span.End()
//
// Without Setup the global providers are no-ops, so instruments and spans
// can always be created.
package observability
