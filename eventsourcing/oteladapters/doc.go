// Package oteladapters provides OpenTelemetry implementations of the eventsourcing observability interfaces.
//
// The Service and the engines only know eventsourcing.ContextualLogger, eventsourcing.MetricsCollector and
// eventsourcing.TracingCollector. The adapters in this package plug them into an OpenTelemetry setup:
//
//	meter := otel.Meter("transfers")
//	tracer := otel.Tracer("transfers")
//
//	service, err := eventsourcing.NewService(handler, store, projector, repository, resolver,
//		eventsourcing.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//		eventsourcing.WithTracing(oteladapters.NewTracingCollector(tracer)),
//		eventsourcing.WithContextualLogger(oteladapters.NewSlogBridgeLogger("transfers")),
//	)
package oteladapters
