// Package observability provides an OpenTelemetry-based metrics hook
// for PlanLlama. The MetricsHook implements lifecycle hooks to record
// client-wide counters for job activity, completion, failure, timeout,
// workflow, and reconnect events.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
