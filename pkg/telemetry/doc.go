// Package telemetry provides comprehensive observability instrumentation for Atelier.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging scheduling solves.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "atelier"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// Components that treat telemetry as optional can fall back to a disabled
// instance:
//
//	tel := telemetry.Nop()
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithSolveID("solve-123").WithKind("job")
//	logger.Info("Building constraint model")
//	logger.WithError(err).Error("Model construction failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into solve flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    telemetry.AttrSolveID.String(solveID),
//	    telemetry.AttrShopKind.String("flexible"),
//	)
//
//	// Record events
//	span.AddEvent("model.compiled")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// # Metrics
//
// Prometheus metrics track system behavior and performance:
//
//	// Record solve execution
//	tel.Metrics.RecordSolveStarted("job")
//	tel.Metrics.RecordSolveCompleted("optimal", duration)
//
//	// Record pipeline phases
//	tel.Metrics.RecordPhase("build", duration)
//
//	// Record backend invocations
//	tel.Metrics.RecordBackendSolve("cpsat", duration)
//
//	// Record errors
//	tel.Metrics.RecordError("solver", "SOLVE_FAILED")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishSolveStarted(solveID, "flow", jobs, machines)
//	tel.Events.PublishPhaseCompleted(solveID, "solve", duration)
//	tel.Events.PublishPolicyViolation(solveID, "instance_limits", reason)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterBySolveID, FilterByPhase
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "solve.build",
//	    telemetry.AttrSolveID.String(solveID))
//	defer ic.End(err)
//
//	ic.Logger.Info("Compiling model")
//
//	// Solve context
//	ctx = telemetry.WithSolveContext(ctx, solveID, kind, jobs, machines)
//	defer telemetry.EndSolveContext(ctx, solveID, status, makespan, err)
//
//	// Backend invocation
//	err := telemetry.RecordBackendOperation(ctx, "cpsat", func(ctx context.Context) error {
//	    outcome, err = backend.Solve(ctx, model, opts)
//	    return err
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "atelier",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures:
//  - All buffered events are published
//  - All pending traces are exported
//  - Metrics are finalized
//
// # Exporters
//
// Tracing supports multiple exporters:
//
//  - "stdout": Print traces to stdout (development)
//  - "otlp": Export via OTLP/gRPC (production, works with collectors)
//  - "none": Generate traces but don't export (testing)
//
// Configure via TracingConfig.Exporter and TracingConfig.Endpoint
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - atelier_solves_started_total{kind}
//  - atelier_solves_completed_total{status}
//  - atelier_solve_duration_seconds{status}
//  - atelier_phase_duration_seconds{phase}
//  - atelier_model_variables
//  - atelier_model_constraints
//  - atelier_backend_solves_total{backend}
//  - atelier_backend_solve_duration_seconds{backend}
//  - atelier_policy_denials_total{policy}
//  - atelier_errors_by_class_total{class}
//  - atelier_active_solves
//
// # Best Practices
//
//  1. Always use context to propagate telemetry
//  2. Use component-specific loggers for clarity
//  3. Add meaningful attributes to spans
//  4. Record both success and failure metrics
//  5. Use appropriate log levels
//  6. Filter events to avoid overwhelming subscribers
//  7. Configure sampling for high-volume systems
//  8. Always call defer span.End() after starting a span
//  9. Shut down gracefully to avoid data loss
package telemetry
