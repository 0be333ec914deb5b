package metrics

import (
	"math"
	"testing"
)

func TestTDigest_QuantileWithinBounds(t *testing.T) {
	td := NewTDigest(100)
	for i := 1; i <= 1000; i++ {
		td.Add(float64(i))
	}

	if got := td.Quantile(0); got != 1 {
		t.Errorf("Quantile(0) = %v, want 1", got)
	}
	if got := td.Quantile(1); got != 1000 {
		t.Errorf("Quantile(1) = %v, want 1000", got)
	}

	p95 := td.Quantile(0.95)
	if math.Abs(p95-950) > 20 {
		t.Errorf("Quantile(0.95) = %v, want close to 950", p95)
	}
}

func TestTDigest_MonotonicPercentiles(t *testing.T) {
	td := NewTDigest(100)
	for i := 1; i <= 5000; i++ {
		td.Add(float64(i % 997))
	}

	p50 := td.Quantile(0.50)
	p95 := td.Quantile(0.95)
	p99 := td.Quantile(0.99)
	max := td.Max()

	if !(p50 <= p95 && p95 <= p99 && p99 <= max) {
		t.Errorf("percentiles not monotonic: p50=%v p95=%v p99=%v max=%v", p50, p95, p99, max)
	}
}

func TestTDigest_EmptyQuantileIsZero(t *testing.T) {
	td := NewTDigest(100)
	if got := td.Quantile(0.5); got != 0 {
		t.Errorf("Quantile on empty digest = %v, want 0", got)
	}
}

func TestReservoir_BoundedSize(t *testing.T) {
	r := newReservoir(256)
	for i := 0; i < 10_000; i++ {
		r.add(float64(i))
	}
	if len(r.samples) != 256 {
		t.Errorf("reservoir size = %d, want 256", len(r.samples))
	}
}
