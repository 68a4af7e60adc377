// Package observability provides OpenTelemetry tracing and metrics for the
// response engine.
//
// # Initialization
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-service"))
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("my-service"))
//	defer tp.Shutdown(ctx)
//	defer mp.Shutdown(ctx)
//
// # Engine metrics
//
//	m, err := observability.NewEngineMetrics(observability.Meter("asynchttp"))
//
// A nil *EngineMetrics is valid and records nothing.
package observability
