package metrics

import (
	"sort"
	"sync"
	"time"
)

// Result is the minimal shape the Collector folds. It mirrors the fields
// of engine.RequestResult that the aggregator actually needs; defined
// locally (rather than importing the engine package) so metrics stays a
// leaf package with no dependency back on its caller.
type Result struct {
	Endpoint    string // request_name, or method+url if unnamed
	OK          bool
	ElapsedMs   float64
	Bytes       int64
	ErrorKind   string
	StartedAtNs int64
}

// EndpointStats is the per-endpoint slice of an Aggregate (spec.md §3).
type EndpointStats struct {
	Name          string
	Total         int64
	Successes     int64
	Failures      int64
	MeanLatencyMs float64
	P50Ms         float64
	P95Ms         float64
	P99Ms         float64
}

// Aggregate is an immutable snapshot of counters, percentiles,
// per-endpoint tallies, and time-series buckets at a moment in time
// (spec.md §3).
type Aggregate struct {
	TotalRequests      int64
	Successes          int64
	Failures           int64
	Timeouts           int64
	ConnectionErrors   int64
	TPSInstant         float64
	TPSMean            float64
	MeanLatencyMs      float64
	P50Ms              float64
	P95Ms              float64
	P99Ms              float64
	ErrorRatePct       float64
	Elapsed            time.Duration
	EndpointBreakdown  map[string]*EndpointStats
	TimeSeries         []*TimeBucket
	ResponseTimesSample []float64
}

// CollectorConfig bounds the collector's memory footprint.
type CollectorConfig struct {
	MaxRingResults int           // default 100_000 (spec.md §4.4)
	Compression    float64       // T-Digest compression, default 100
	CacheTTL       time.Duration // default 500ms (spec.md §4.4)
}

// DefaultCollectorConfig matches spec.md §4.4's stated defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		MaxRingResults: 100_000,
		Compression:    defaultCompression,
		CacheTTL:       500 * time.Millisecond,
	}
}

// endpointState is the collector's live, mutable per-endpoint state —
// distinct from the EndpointStats view handed out in snapshots.
type endpointState struct {
	total, successes, failures int64
	sumLatencyMs               float64
	okCount                    int64
	digest                     *TDigest
}

// Collector is the MetricsCollector of spec.md §4.4: a single-consumer
// aggregator that drains a results channel, maintains exact counters, a
// global and per-endpoint T-Digest, a bounded ring buffer for histogram
// rendering, and a 1-second time-bucketed series.
//
// All mutating methods are intended to be called from exactly one
// goroutine (the consumer); Snapshot and GetCachedAggregate are safe to
// call concurrently from other goroutines.
type Collector struct {
	cfg CollectorConfig

	startTime time.Time

	totalRequests    int64
	successes        int64
	failures         int64
	timeouts         int64
	connectionErrors int64
	totalBytes       int64
	sumLatencyMs     float64

	globalDigest *TDigest
	endpoints    map[string]*endpointState

	ring      []float64
	ringHead  int
	ringCount int

	buckets *TimeBucketStore

	cacheMu     sync.Mutex
	cached      *Aggregate
	cachedAt    time.Time
}

// NewCollector builds a Collector with startTime set to now; the caller
// should construct it immediately before the run begins so Elapsed is
// accurate.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.MaxRingResults <= 0 {
		cfg.MaxRingResults = 100_000
	}
	if cfg.Compression <= 0 {
		cfg.Compression = defaultCompression
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 500 * time.Millisecond
	}
	return &Collector{
		cfg:          cfg,
		startTime:    time.Now(),
		globalDigest: NewTDigest(cfg.Compression),
		endpoints:    make(map[string]*endpointState),
		ring:         make([]float64, 0, cfg.MaxRingResults),
		buckets:      NewTimeBucketStore(3600),
	}
}

// Fold applies one Result to the aggregator state. Must be called from
// the single consumer goroutine only (spec.md §5: "the aggregator state
// — single writer, the consumer").
func (c *Collector) Fold(r Result) {
	c.totalRequests++
	if r.OK {
		c.successes++
	} else {
		c.failures++
		switch r.ErrorKind {
		case "timeout":
			c.timeouts++
		case "connection":
			c.connectionErrors++
		}
	}
	c.totalBytes += r.Bytes

	ep := c.endpointFor(r.Endpoint)
	ep.total++
	if r.OK {
		ep.successes++
	} else {
		ep.failures++
	}

	if r.OK {
		c.globalDigest.Add(r.ElapsedMs)
		c.sumLatencyMs += r.ElapsedMs
		ep.digest.Add(r.ElapsedMs)
		ep.sumLatencyMs += r.ElapsedMs
		ep.okCount++
		c.appendRing(r.ElapsedMs)
	}

	index := (r.StartedAtNs - c.startTime.UnixNano()) / int64(time.Second)
	c.buckets.Record(index, r.OK, r.ElapsedMs)
}

func (c *Collector) endpointFor(name string) *endpointState {
	ep, ok := c.endpoints[name]
	if !ok {
		ep = &endpointState{digest: NewTDigest(c.cfg.Compression)}
		c.endpoints[name] = ep
	}
	return ep
}

// appendRing pushes into the bounded ring buffer, evicting the oldest
// sample once full (spec.md §3 invariant: "the oldest result is evicted
// from the ring buffer used for histogram sampling").
func (c *Collector) appendRing(v float64) {
	if len(c.ring) < c.cfg.MaxRingResults {
		c.ring = append(c.ring, v)
		c.ringCount = len(c.ring)
		return
	}
	c.ring[c.ringHead] = v
	c.ringHead = (c.ringHead + 1) % c.cfg.MaxRingResults
}

// Snapshot assembles a full Aggregate. Its cost is not constant: it walks
// every endpoint and copies every retained time bucket, in addition to the
// ring-buffer copy when includeResponseTimes is set.
func (c *Collector) Snapshot(includeResponseTimes bool) *Aggregate {
	elapsed := time.Since(c.startTime)

	errorRate := 0.0
	if c.totalRequests > 0 {
		errorRate = float64(c.failures) / float64(c.totalRequests) * 100
	}

	tpsMean := 0.0
	if elapsed.Seconds() > 0 {
		tpsMean = float64(c.totalRequests) / elapsed.Seconds()
	}

	agg := &Aggregate{
		TotalRequests:    c.totalRequests,
		Successes:        c.successes,
		Failures:         c.failures,
		Timeouts:         c.timeouts,
		ConnectionErrors: c.connectionErrors,
		TPSInstant:       instantTPS(c.buckets),
		TPSMean:          tpsMean,
		MeanLatencyMs:    meanOf(c.sumLatencyMs, c.successes),
		P50Ms:            c.globalDigest.Quantile(0.50),
		P95Ms:            c.globalDigest.Quantile(0.95),
		P99Ms:            c.globalDigest.Quantile(0.99),
		ErrorRatePct:     errorRate,
		Elapsed:          elapsed,
		EndpointBreakdown: c.endpointBreakdown(),
		TimeSeries:       c.buckets.Snapshot(),
	}

	if includeResponseTimes {
		agg.ResponseTimesSample = append([]float64(nil), c.ring...)
	}

	return agg
}

func (c *Collector) endpointBreakdown() map[string]*EndpointStats {
	out := make(map[string]*EndpointStats, len(c.endpoints))
	for name, ep := range c.endpoints {
		out[name] = &EndpointStats{
			Name:          name,
			Total:         ep.total,
			Successes:     ep.successes,
			Failures:      ep.failures,
			MeanLatencyMs: meanOf(ep.sumLatencyMs, ep.okCount),
			P50Ms:         ep.digest.Quantile(0.50),
			P95Ms:         ep.digest.Quantile(0.95),
			P99Ms:         ep.digest.Quantile(0.99),
		}
	}
	return out
}

// GetCachedAggregate returns the last snapshot if its age is within ttl,
// otherwise recomputes (without response times) and caches the result.
// This decouples a live dashboard's render rate from aggregation work
// (spec.md §4.4).
func (c *Collector) GetCachedAggregate(ttl time.Duration) *Aggregate {
	if ttl <= 0 {
		ttl = c.cfg.CacheTTL
	}

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.cached != nil && time.Since(c.cachedAt) <= ttl {
		return c.cached
	}

	snap := c.Snapshot(false)
	c.cached = snap
	c.cachedAt = time.Now()
	return snap
}

// meanOf computes an exact mean from a running sum/count, independent of
// the bounded ring buffer — spec.md §4.4 bounds only the histogram sample
// buffer, so MeanLatencyMs must stay exact regardless of ring eviction.
func meanOf(sum float64, count int64) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// instantTPS derives a short-window throughput estimate from the count of
// the highest-index time bucket, which may still be filling, falling back
// to 0 if none exist yet.
func instantTPS(store *TimeBucketStore) float64 {
	buckets := store.Snapshot()
	if len(buckets) == 0 {
		return 0
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Index < buckets[j].Index })
	last := buckets[len(buckets)-1]
	return float64(last.Count)
}
