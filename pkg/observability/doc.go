// Package observability provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing for the Roster server.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("org_id", org.ID).Info("organization created")
//
// # Prometheus Metrics
//
// Initialize and record:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.InvitesAccepted.Inc()
//
// HTTP instrumentation and the /metrics endpoint:
//
//	handler := observability.HTTPMetricsMiddleware(metrics)(router)
//	observability.RegisterMetricsEndpoint(mux, registry)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # Tracing
//
// OTLP export covers traces only; metrics stay on Prometheus:
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
