package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromCollector adapts a live Collector to prometheus.Collector, letting
// an operator scrape a running load test rather than wait for the final
// Aggregate (SPEC_FULL.md §2's promexport component).
type PromCollector struct {
	collector *Collector

	totalDesc     *prometheus.Desc
	successDesc   *prometheus.Desc
	failureDesc   *prometheus.Desc
	errorRateDesc *prometheus.Desc
	p50Desc       *prometheus.Desc
	p95Desc       *prometheus.Desc
	p99Desc       *prometheus.Desc
	tpsDesc       *prometheus.Desc
}

// NewPromCollector wraps collector for Prometheus registration.
func NewPromCollector(collector *Collector) *PromCollector {
	return &PromCollector{
		collector:     collector,
		totalDesc:     prometheus.NewDesc("deli_requests_total", "Total requests issued so far.", nil, nil),
		successDesc:   prometheus.NewDesc("deli_requests_success_total", "Successful requests so far.", nil, nil),
		failureDesc:   prometheus.NewDesc("deli_requests_failure_total", "Failed requests so far.", nil, nil),
		errorRateDesc: prometheus.NewDesc("deli_error_rate_pct", "Current error rate percentage.", nil, nil),
		p50Desc:       prometheus.NewDesc("deli_latency_p50_ms", "P50 latency in milliseconds.", nil, nil),
		p95Desc:       prometheus.NewDesc("deli_latency_p95_ms", "P95 latency in milliseconds.", nil, nil),
		p99Desc:       prometheus.NewDesc("deli_latency_p99_ms", "P99 latency in milliseconds.", nil, nil),
		tpsDesc:       prometheus.NewDesc("deli_tps_mean", "Mean transactions per second over the run.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (p *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.totalDesc
	ch <- p.successDesc
	ch <- p.failureDesc
	ch <- p.errorRateDesc
	ch <- p.p50Desc
	ch <- p.p95Desc
	ch <- p.p99Desc
	ch <- p.tpsDesc
}

// Collect implements prometheus.Collector, reading a cached aggregate so
// a scrape never blocks the run's consumer goroutine for long.
func (p *PromCollector) Collect(ch chan<- prometheus.Metric) {
	agg := p.collector.GetCachedAggregate(0)

	ch <- prometheus.MustNewConstMetric(p.totalDesc, prometheus.CounterValue, float64(agg.TotalRequests))
	ch <- prometheus.MustNewConstMetric(p.successDesc, prometheus.CounterValue, float64(agg.Successes))
	ch <- prometheus.MustNewConstMetric(p.failureDesc, prometheus.CounterValue, float64(agg.Failures))
	ch <- prometheus.MustNewConstMetric(p.errorRateDesc, prometheus.GaugeValue, agg.ErrorRatePct)
	ch <- prometheus.MustNewConstMetric(p.p50Desc, prometheus.GaugeValue, agg.P50Ms)
	ch <- prometheus.MustNewConstMetric(p.p95Desc, prometheus.GaugeValue, agg.P95Ms)
	ch <- prometheus.MustNewConstMetric(p.p99Desc, prometheus.GaugeValue, agg.P99Ms)
	ch <- prometheus.MustNewConstMetric(p.tpsDesc, prometheus.GaugeValue, agg.TPSMean)
}
