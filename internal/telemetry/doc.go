// Package telemetry sets up OpenTelemetry trace and metric providers.
//
// Telemetry is off by default. When off, Tracer and Meter fall back to the
// global (no-op) providers, so instrumented packages need no checks:
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// Provider failures do not stop the process: the instance is marked degraded
// and the affected signal stays no-op.
package telemetry
