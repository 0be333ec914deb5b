package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cumakurt/deli/internal/engine/metrics"
)

// LoadTestConfig is the full set of knobs for a single load-test run
// (spec.md §6 ScenarioConfig, plus the collector/executor defaults a
// complete run needs).
type LoadTestConfig struct {
	Scheduler  SchedulerConfig
	Executor   ExecutorConfig
	Collector  metrics.CollectorConfig
	Thresholds Thresholds
}

// LoadTestReport is the output contract to renderers for a load test
// (spec.md §6): the final aggregate and its SLA verdict.
type LoadTestReport struct {
	RunID     string
	Aggregate *metrics.Aggregate
	Verdict   Verdict
}

// RunLoadTest wires a Scheduler, HTTPExecutor, and MetricsCollector
// together for one fixed-shape, fixed-duration run (spec.md §1's "load
// test" mode), draining results to a final Aggregate and SLA Verdict.
func RunLoadTest(ctx context.Context, cfg LoadTestConfig, requests []*ParsedRequest, logger *zap.Logger) (*LoadTestReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	runID := uuid.NewString()

	executor, err := NewHTTPExecutor(cfg.Executor)
	if err != nil {
		return nil, err
	}
	defer executor.Close()

	collector := metrics.NewCollector(cfg.Collector)

	results := make(chan RequestResult, 50_000)
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		drainInBatches(results, collector)
	}()

	sched := NewScheduler(cfg.Scheduler, runID, requests, executor, results, logger)
	sched.Run(ctx)
	<-drainDone

	agg := collector.Snapshot(true)
	verdict := EvaluateSLA(agg, cfg.Thresholds)

	logger.Info("load test complete",
		zap.String("component", "run"), zap.String("phase", "complete"),
		zap.String("run_id", runID), zap.Bool("sla_pass", verdict.Pass))

	return &LoadTestReport{RunID: runID, Aggregate: agg, Verdict: verdict}, nil
}

// RunStressTest runs a phased stress test to completion or first SLA
// breach (spec.md §1's "stress test" mode), returning every phase result
// plus the derived breaking point and maximum sustainable load.
func RunStressTest(ctx context.Context, execCfg ExecutorConfig, stressCfg StressConfig, requests []*ParsedRequest, logger *zap.Logger) (*StressResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	runID := uuid.NewString()

	executor, err := NewHTTPExecutor(execCfg)
	if err != nil {
		return nil, err
	}
	defer executor.Close()

	controller := NewStressController(stressCfg, runID, requests, executor, logger)
	return controller.Run(ctx), nil
}

// drainInBatches consumes results in batches of 64-512 (spec.md §4.4),
// folding each into collector. It returns once results is closed and
// fully drained, guaranteeing every emitted RequestResult is folded
// before the caller takes its final snapshot (spec.md §3 invariant).
func drainInBatches(results <-chan RequestResult, collector *metrics.Collector) {
	const batchSize = 256
	batch := make([]RequestResult, 0, batchSize)

	flush := func() {
		for _, r := range batch {
			collector.Fold(metrics.Result{
				Endpoint:    endpointKey(r),
				OK:          r.OK,
				ElapsedMs:   r.ElapsedMs,
				Bytes:       r.BytesReceived,
				ErrorKind:   string(r.ErrorKind),
				StartedAtNs: r.StartedAtNs,
			})
		}
		batch = batch[:0]
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-results:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func endpointKey(r RequestResult) string {
	if r.RequestName != "" {
		return r.RequestName
	}
	return r.Method + " " + r.URL
}
