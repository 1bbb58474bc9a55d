// Package telemetry provides the ambient observability stack for anvil runs:
// zerolog structured logging, Prometheus metrics for runs and tasks, and an
// OpenTelemetry tracer whose spans mirror the run tracker's workunits.
package telemetry
