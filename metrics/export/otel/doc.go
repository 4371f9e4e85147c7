// Package otel publishes shopcore engine metrics through an OpenTelemetry
// Meter.
//
// Each counter becomes an Int64ObservableCounter. Each latency histogram
// becomes a bucket gauge with one data point per "le" attribute plus a
// count gauge. One callback reads the engine snapshot per collection.
// Callers own the MeterProvider.
package otel
