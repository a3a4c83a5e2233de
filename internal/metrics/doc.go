// Package metrics counts token lifecycle events in process.
//
// Each [MetricID] owns a cache-line padded uint64 slot updated with atomic
// adds, so concurrent Verify calls on different outcomes do not contend.
// Verify latency goes into eight fixed buckets from 5ms to +Inf. Recording
// never allocates; [Metrics.Snapshot] copies the slots for the exporters in
// metrics/export.
//
// The package does no I/O and keeps no global registry.
package metrics
