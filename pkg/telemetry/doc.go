// Package telemetry provides observability instrumentation for cirrus.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), and metrics (Prometheus) into a single unit that the CLI
// wires up once at startup.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Add telemetry to context so downstream packages can pick it up:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with cirrus field helpers:
//
//	logger := tel.Logger.NewComponentLogger("synthesizer")
//	logger = logger.WithStack("ApiStack").WithLogicalID("Queue722AD2D0")
//	logger.Info("assigned logical identifier")
//
// # Tracing and Metrics
//
// Synthesis and diff operations carry spans and counters:
//
//	ctx = telemetry.WithSynthContext(ctx, "app")
//	asm, err := synth.Run(ctx)
//	telemetry.EndSynthContext(ctx, statusOf(err), err)
//
// Both are disabled by default; enable them through TracingConfig.Enabled and
// MetricsConfig.Enabled.
package telemetry
