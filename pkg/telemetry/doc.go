// Package telemetry provides observability instrumentation for
// casetrack: structured logging (zerolog), distributed tracing
// (OpenTelemetry), and metrics (Prometheus).
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// The logger is an injected collaborator, not a package singleton; the
// case store receives it at construction time:
//
//	store, err := casestore.NewSQLiteStore(cfg,
//	    casestore.WithLogger(tel.Logger.NewComponentLogger("casestore")),
//	    casestore.WithMetrics(tel.Metrics))
//
// Key metrics exposed (namespace "casetrack"):
//
//   - cases_created_total
//   - duplicate_cases_total
//   - status_updates_total{outcome}
//   - lookups_total{method,outcome}
//   - lookup_duration_seconds{method}
//   - store_errors_total{operation}
//
// Tracing supports "stdout" (development), "otlp" (gRPC collector), and
// "none" exporters; wrap an operation with StartOperation and finish it
// with End:
//
//	ic := telemetry.StartOperation(ctx, "casestore.add_case")
//	err := store.AddCase(ic.Ctx, nc)
//	ic.End(err)
package telemetry
