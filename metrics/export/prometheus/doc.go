// Package prometheus renders deskauth counters in the Prometheus text
// exposition format.
//
// Counters are named deskauth_*_total and the authentication latency
// histogram is deskauth_authenticate_latency_seconds. Nothing is registered
// globally; callers mount [Exporter.Handler] where they want it.
package prometheus
