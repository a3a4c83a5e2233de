// Package internal holds identifier generation shared by the engine.
//
// Sub-packages:
//
//   - audit: async event dispatch and sinks
//   - flows: verify, issue, rotate and revoke orchestration over small dependency sets
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis and local login/refresh throttles
package internal
