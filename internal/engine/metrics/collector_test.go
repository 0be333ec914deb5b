package metrics

import (
	"testing"
	"time"
)

func TestCollector_CounterMonotonicity(t *testing.T) {
	c := NewCollector(DefaultCollectorConfig())

	for i := 0; i < 10; i++ {
		c.Fold(Result{Endpoint: "GET /", OK: true, ElapsedMs: 10, StartedAtNs: time.Now().UnixNano()})
	}
	s1 := c.Snapshot(false)

	for i := 0; i < 10; i++ {
		c.Fold(Result{Endpoint: "GET /", OK: false, ErrorKind: "timeout", StartedAtNs: time.Now().UnixNano()})
	}
	s2 := c.Snapshot(false)

	if s2.TotalRequests < s1.TotalRequests {
		t.Errorf("s2.TotalRequests=%d < s1.TotalRequests=%d", s2.TotalRequests, s1.TotalRequests)
	}
	if s2.Successes < s1.Successes {
		t.Errorf("s2.Successes=%d < s1.Successes=%d", s2.Successes, s1.Successes)
	}
	if s2.Failures < s1.Failures {
		t.Errorf("s2.Failures=%d < s1.Failures=%d", s2.Failures, s1.Failures)
	}
}

func TestCollector_ResultConservation(t *testing.T) {
	c := NewCollector(DefaultCollectorConfig())

	endpoints := []string{"GET /a", "GET /b", "POST /c"}
	for i := 0; i < 300; i++ {
		ep := endpoints[i%len(endpoints)]
		c.Fold(Result{Endpoint: ep, OK: i%5 != 0, ElapsedMs: 5, StartedAtNs: time.Now().UnixNano()})
	}

	agg := c.Snapshot(false)
	var sum int64
	for _, ep := range agg.EndpointBreakdown {
		sum += ep.Total
	}
	if sum != agg.TotalRequests {
		t.Errorf("sum(endpoint.total)=%d != global.total=%d", sum, agg.TotalRequests)
	}
}

func TestCollector_PercentileMonotonicity(t *testing.T) {
	c := NewCollector(DefaultCollectorConfig())
	for i := 1; i <= 2000; i++ {
		c.Fold(Result{Endpoint: "GET /", OK: true, ElapsedMs: float64(i % 500), StartedAtNs: time.Now().UnixNano()})
	}

	agg := c.Snapshot(false)
	if !(agg.P50Ms <= agg.P95Ms && agg.P95Ms <= agg.P99Ms) {
		t.Errorf("percentiles not monotonic: p50=%v p95=%v p99=%v", agg.P50Ms, agg.P95Ms, agg.P99Ms)
	}
}

func TestCollector_RingBufferBound(t *testing.T) {
	cfg := DefaultCollectorConfig()
	cfg.MaxRingResults = 100
	c := NewCollector(cfg)

	for i := 0; i < 1000; i++ {
		c.Fold(Result{Endpoint: "GET /", OK: true, ElapsedMs: 1, StartedAtNs: time.Now().UnixNano()})
	}

	agg := c.Snapshot(true)
	if len(agg.ResponseTimesSample) != 100 {
		t.Errorf("len(ResponseTimesSample) = %d, want 100", len(agg.ResponseTimesSample))
	}
}

func TestCollector_MeanLatencyExactBeyondRingCapacity(t *testing.T) {
	cfg := DefaultCollectorConfig()
	cfg.MaxRingResults = 100
	c := NewCollector(cfg)

	// First 100 results establish a low mean that would be evicted from
	// the ring entirely once folding continues; a ring-derived mean would
	// drift toward the later, higher-latency batch instead of the exact
	// global mean across all 300 results.
	var wantSum float64
	for i := 0; i < 100; i++ {
		c.Fold(Result{Endpoint: "GET /", OK: true, ElapsedMs: 1, StartedAtNs: time.Now().UnixNano()})
		wantSum += 1
	}
	for i := 0; i < 200; i++ {
		c.Fold(Result{Endpoint: "GET /", OK: true, ElapsedMs: 50, StartedAtNs: time.Now().UnixNano()})
		wantSum += 50
	}

	agg := c.Snapshot(false)
	want := wantSum / 300
	if agg.MeanLatencyMs != want {
		t.Errorf("MeanLatencyMs = %v, want exact global mean %v", agg.MeanLatencyMs, want)
	}

	ep := agg.EndpointBreakdown["GET /"]
	if ep.MeanLatencyMs != want {
		t.Errorf("endpoint MeanLatencyMs = %v, want exact mean %v", ep.MeanLatencyMs, want)
	}
}

func TestCollector_GetCachedAggregate_HonorsTTL(t *testing.T) {
	c := NewCollector(DefaultCollectorConfig())
	c.Fold(Result{Endpoint: "GET /", OK: true, ElapsedMs: 10, StartedAtNs: time.Now().UnixNano()})

	first := c.GetCachedAggregate(50 * time.Millisecond)
	c.Fold(Result{Endpoint: "GET /", OK: true, ElapsedMs: 10, StartedAtNs: time.Now().UnixNano()})
	second := c.GetCachedAggregate(50 * time.Millisecond)

	if first.TotalRequests != second.TotalRequests {
		t.Errorf("expected cached snapshot to be reused within TTL: first=%d second=%d", first.TotalRequests, second.TotalRequests)
	}

	time.Sleep(60 * time.Millisecond)
	third := c.GetCachedAggregate(50 * time.Millisecond)
	if third.TotalRequests == first.TotalRequests {
		t.Errorf("expected fresh snapshot after TTL expiry, got same count %d", third.TotalRequests)
	}
}
