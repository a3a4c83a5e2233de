package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m := New(Config{})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if s := m.Snapshot(); len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}
}

func TestAddAndSnapshot(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	m.Add(MetricPurgedRecords, 7)
	m.Add(MetricPurgedRecords, -3)
	m.Inc(MetricVerifyRevoked)
	m.Observe(MetricVerifyLatency, 3*time.Millisecond)
	m.Observe(MetricVerifyLatency, time.Second)
	m.Observe(MetricLoginSuccess, time.Second)

	s := m.Snapshot()
	if s.Counters[MetricPurgedRecords] != 7 {
		t.Fatalf("purged: got %d", s.Counters[MetricPurgedRecords])
	}
	if s.Counters[MetricVerifyRevoked] != 1 {
		t.Fatalf("revoked: got %d", s.Counters[MetricVerifyRevoked])
	}
	b := s.Histograms[MetricVerifyLatency]
	if len(b) != histBucketCount || b[0] != 1 || b[7] != 1 {
		t.Fatalf("unexpected buckets %v", b)
	}
	if _, ok := s.Counters[MetricVerifyLatency]; ok {
		t.Fatal("latency id must not appear as a counter")
	}
}

func TestConcurrentInc(t *testing.T) {
	m := New(Config{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricVerifySuccess)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(MetricVerifySuccess); got != 16000 {
		t.Fatalf("expected 16000, got %d", got)
	}
}

func TestBucketIndex(t *testing.T) {
	cases := map[time.Duration]int{
		5 * time.Millisecond:   0,
		6 * time.Millisecond:   1,
		25 * time.Millisecond:  2,
		50 * time.Millisecond:  3,
		100 * time.Millisecond: 4,
		250 * time.Millisecond: 5,
		500 * time.Millisecond: 6,
		501 * time.Millisecond: 7,
	}
	for d, want := range cases {
		if got := bucketIndex(d); got != want {
			t.Fatalf("bucketIndex(%v) = %d, want %d", d, got, want)
		}
	}
}
