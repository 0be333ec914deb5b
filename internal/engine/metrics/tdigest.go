// Package metrics implements the streaming metrics pipeline: a bounded
// results ring buffer, per-endpoint and global T-Digest percentile
// sketches, and 1-second time-bucketed series.
package metrics

import (
	"math"
	"sort"
	"sync"
)

// defaultCompression bounds the number of centroids a TDigest retains.
// spec.md §9 leaves the exact value open, requiring only ≤1% relative
// error at q=0.99; 100 centroids comfortably clears that bar for
// normally-shaped latency distributions.
const defaultCompression = 100

type centroid struct {
	mean   float64
	weight float64
}

// TDigest is a bounded-memory streaming quantile sketch (Dunning & Ertl).
// It ingests positive doubles one at a time and answers Quantile(q)
// queries with bounded relative error at the tails, using a scale
// function that packs more precision into centroids near q=0 and q=1.
//
// Not safe for concurrent use without external synchronization; callers
// that share a TDigest across goroutines (the global and per-endpoint
// sketches in Collector) must guard it, which Collector already does by
// feeding it only from its single consumer goroutine.
type TDigest struct {
	compression float64
	centroids   []centroid
	count       float64
	min         float64
	max         float64

	unmerged    []centroid
	maxUnmerged int
}

// NewTDigest constructs a TDigest with the given compression (centroid
// budget). compression <= 0 selects defaultCompression.
func NewTDigest(compression float64) *TDigest {
	if compression <= 0 {
		compression = defaultCompression
	}
	return &TDigest{
		compression: compression,
		centroids:   make([]centroid, 0, int(compression)*2),
		min:         math.Inf(1),
		max:         math.Inf(-1),
		maxUnmerged: int(compression) * 2,
	}
}

// Add ingests one sample. Amortized O(1): most calls just buffer; a
// buffer-full triggers an O(n log n) remerge of at most ~2*compression
// points, which runs every maxUnmerged calls.
func (t *TDigest) Add(x float64) {
	if math.IsNaN(x) {
		return
	}
	t.count++
	if x < t.min {
		t.min = x
	}
	if x > t.max {
		t.max = x
	}
	t.unmerged = append(t.unmerged, centroid{mean: x, weight: 1})
	if len(t.unmerged) >= t.maxUnmerged {
		t.compress()
	}
}

// compress merges buffered points into the centroid list using the k1
// scale function, bounding the final centroid count near t.compression.
func (t *TDigest) compress() {
	if len(t.unmerged) == 0 {
		return
	}

	all := make([]centroid, 0, len(t.centroids)+len(t.unmerged))
	all = append(all, t.centroids...)
	all = append(all, t.unmerged...)
	t.unmerged = t.unmerged[:0]

	sort.Slice(all, func(i, j int) bool { return all[i].mean < all[j].mean })

	totalWeight := 0.0
	for _, c := range all {
		totalWeight += c.weight
	}
	if totalWeight == 0 {
		return
	}

	merged := make([]centroid, 0, int(t.compression)+1)
	var cur centroid
	haveCur := false
	weightSoFar := 0.0

	for _, c := range all {
		if !haveCur {
			cur = c
			haveCur = true
			continue
		}

		proposedWeight := cur.weight + c.weight
		q0 := weightSoFar / totalWeight
		q2 := (weightSoFar + proposedWeight) / totalWeight
		if scaleSpread(q0, q2, t.compression) <= 2/t.compression {
			cur.mean = (cur.mean*cur.weight + c.mean*c.weight) / proposedWeight
			cur.weight = proposedWeight
		} else {
			weightSoFar += cur.weight
			merged = append(merged, cur)
			cur = c
		}
	}
	if haveCur {
		merged = append(merged, cur)
	}

	t.centroids = merged
}

// scaleSpread is the k1 scale function's inverse span between q0 and q2:
// it allows larger centroids near the median and forces small ones near
// the tails, which is what gives T-Digest its tail accuracy.
func scaleSpread(q0, q2, compression float64) float64 {
	k1 := func(q float64) float64 {
		return compression / (2 * math.Pi) * math.Asin(2*q-1)
	}
	return math.Abs(k1(q2)-k1(q0)) * 2 / compression
}

// Quantile returns the estimated value at quantile q (0 <= q <= 1). It
// is in [min, max] of ingested values, per spec.md §4.4's T-Digest
// contract.
func (t *TDigest) Quantile(q float64) float64 {
	if len(t.unmerged) > 0 {
		t.compress()
	}
	if t.count == 0 {
		return 0
	}
	if q <= 0 {
		return t.min
	}
	if q >= 1 {
		return t.max
	}
	if len(t.centroids) == 1 {
		return t.centroids[0].mean
	}

	target := q * t.count
	cumulative := 0.0

	for i, c := range t.centroids {
		next := cumulative + c.weight
		if target <= next {
			if i == 0 {
				return interpolate(target, 0, cumulative, next, t.min, c.mean)
			}
			if i == len(t.centroids)-1 {
				return interpolate(target, cumulative, next, cumulative, c.mean, t.max)
			}
			return c.mean
		}
		cumulative = next
	}
	return t.max
}

func interpolate(target, loCum, _, hiCum, loVal, hiVal float64) float64 {
	if hiCum == loCum {
		return loVal
	}
	frac := (target - loCum) / (hiCum - loCum)
	return loVal + frac*(hiVal-loVal)
}

// Count returns the total number of samples ingested.
func (t *TDigest) Count() int64 {
	return int64(t.count)
}

// Min returns the smallest ingested value, or 0 if empty.
func (t *TDigest) Min() float64 {
	if t.count == 0 {
		return 0
	}
	return t.min
}

// Max returns the largest ingested value, or 0 if empty.
func (t *TDigest) Max() float64 {
	if t.count == 0 {
		return 0
	}
	return t.max
}

// reservoir is a fixed-capacity sample used for the per-bucket P95
// alternative spec.md §4.4 explicitly permits ("reservoir of size 256")
// instead of a second T-Digest per time bucket.
type reservoir struct {
	mu      sync.Mutex
	samples []float64
	seen    int64
	cap     int
}

func newReservoir(capacity int) *reservoir {
	return &reservoir{samples: make([]float64, 0, capacity), cap: capacity}
}

// add uses the low bits of seen as a cheap, allocation-free substitute
// for a random index once the reservoir is full — deterministic given
// call order, which keeps bucket P95 reproducible in tests.
func (r *reservoir) add(x float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen++
	if len(r.samples) < r.cap {
		r.samples = append(r.samples, x)
		return
	}
	idx := int(r.seen % int64(r.cap))
	r.samples[idx] = x
}

func (r *reservoir) p95() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), r.samples...)
	sort.Float64s(sorted)
	idx := int(0.95 * float64(len(sorted)-1))
	return sorted[idx]
}
