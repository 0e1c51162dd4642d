// Package otel publishes deskauth counters as OpenTelemetry observable
// instruments on a caller-supplied meter.
package otel
