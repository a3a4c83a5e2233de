// Package rate throttles login attempts and refresh rotations.
//
// Two implementations share one method set:
//
//   - [Limiter] keeps fixed-window counters in Redis (INCR + EXPIRE on first
//     hit) so limits hold across processes. Key prefixes: al: (login per
//     identifier), ali: (login per IP), ar: (refresh per subject).
//   - [Local] keeps token buckets in process memory with LRU eviction, for
//     deployments without Redis.
package rate
