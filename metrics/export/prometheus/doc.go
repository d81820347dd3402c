// Package prometheus provides Prometheus collectors for goSessions metrics.
//
// [NewPrometheusExporter] accepts a [goSessions.Engine] and exposes an
// [http.Handler] that renders all goSessions counters and histograms in
// Prometheus text exposition format. Counter names are prefixed
// gosessions_*_total; the single histogram is gosessions_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
