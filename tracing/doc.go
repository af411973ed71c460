// Package tracing wraps OpenTelemetry so conversation and execution steps can
// be traced without the rest of the code importing otel directly.
package tracing
