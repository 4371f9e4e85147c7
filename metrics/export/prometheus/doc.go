// Package prometheus renders shopcore engine metrics in the Prometheus text
// exposition format.
//
// Counters are named shopcore_*_total. The refresh and catalog load
// latencies are exported as shopcore_*_latency_seconds histograms, and
// audit backpressure as shopcore_audit_dropped_total.
//
// The exporter registers nothing globally; callers mount [PrometheusExporter.Handler].
package prometheus
