package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter slot.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRaceDetected
	MetricRefreshRateLimited
	MetricVerifySuccess
	MetricVerifyFailure
	MetricVerifyExpired
	MetricVerifyRevoked
	MetricVerifyFailOpen
	MetricRevokeSuccess
	MetricRevokeDuplicate
	MetricRevokeFailure
	MetricLogout
	MetricRevokeAll
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPurgedRecords
	MetricVerifyLatency
	MetricIDCount
)

// LatencyBounds are the inclusive upper bounds of the verify latency buckets.
// A final +Inf bucket follows the last bound.
var LatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(LatencyBounds) + 1

// Config selects which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// counter sits alone on a cache line so hot counters do not false-share.
type counter struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds atomic counters and the verify latency histogram. The zero
// value and a nil *Metrics record nothing.
type Metrics struct {
	enabled bool
	latency bool
	counts  [MetricIDCount]counter
	verify  [histBucketCount]atomic.Uint64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled, latency: cfg.Enabled && cfg.EnableLatency}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

func (m *Metrics) Inc(id MetricID) { m.Add(id, 1) }

// Add increases counter id by n. Non-positive n is ignored.
func (m *Metrics) Add(id MetricID, n int64) {
	if !m.Enabled() || id >= MetricIDCount || n <= 0 {
		return
	}
	m.counts[id].n.Add(uint64(n))
}

// Observe records d in the latency histogram. Only MetricVerifyLatency has
// buckets; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if id != MetricVerifyLatency || !m.LatencyEnabled() {
		return
	}
	m.verify[bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counts[id].n.Load()
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := range MetricIDCount {
		if id != MetricVerifyLatency {
			s.Counters[id] = m.counts[id].n.Load()
		}
	}
	if m.latency {
		buckets := make([]uint64, histBucketCount)
		for i := range m.verify {
			buckets[i] = m.verify[i].Load()
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
