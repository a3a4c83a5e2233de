// Package otel publishes goToken engine metrics through an OpenTelemetry
// Meter.
//
// Every engine counter becomes an Int64ObservableCounter. The verify latency
// histogram is published as a cumulative bucket gauge with an "le" attribute
// plus a count gauge, since OpenTelemetry has no asynchronous histogram. One
// callback reads the engine snapshot per collection. The caller owns the
// MeterProvider.
package otel
