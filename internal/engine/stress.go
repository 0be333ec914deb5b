package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cumakurt/deli/internal/engine/metrics"
)

// StressScenario names a StressController phase sequence (spec.md §4.6).
type StressScenario string

const (
	StressLinearOverload StressScenario = "linear_overload"
	StressSpike          StressScenario = "spike_stress"
	StressSoak           StressScenario = "soak_stress"
)

// StressConfig drives the StressController's phase loop (spec.md §6).
type StressConfig struct {
	Scenario            StressScenario
	InitialUsers        int
	StepUsers           int
	StepIntervalSeconds int
	MaxUsers            int
	ThinkTimeMs         int
	SpikeUsers          int
	SpikeHoldSeconds    int
	SoakUsers           int
	SoakDurationSeconds int
	Thresholds          Thresholds
}

// PhaseResult is the per-phase output spec.md §3 and §4.6 describe.
type PhaseResult struct {
	PhaseIndex    int
	TargetUsers   int
	ReachedUsers  int
	Duration      time.Duration
	Aggregate     *metrics.Aggregate
	Verdict       Verdict
	BreakingPoint bool
}

// StressResult is the full output of a stress run: every phase plus the
// derived breaking point and maximum sustainable load (spec.md §4.6).
type StressResult struct {
	Phases             []PhaseResult
	BreakingPoint      int // 0 if none breached
	MaxSustainableLoad int
}

// StressController is the outer control loop of spec.md §4.6: it
// promotes a Scheduler through a sequence of fixed-concurrency phases,
// evaluates SLA at the end of each, and halts on first breach.
type StressController struct {
	cfg      StressConfig
	runID    string
	requests []*ParsedRequest
	executor *HTTPExecutor
	logger   *zap.Logger
}

// NewStressController builds a StressController ready to Run.
func NewStressController(cfg StressConfig, runID string, requests []*ParsedRequest, executor *HTTPExecutor, logger *zap.Logger) *StressController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StressController{cfg: cfg, runID: runID, requests: requests, executor: executor, logger: logger}
}

// Run executes the configured scenario's phase sequence to completion or
// to the first SLA breach, whichever comes first.
func (sc *StressController) Run(ctx context.Context) *StressResult {
	phases := sc.planPhases()

	result := &StressResult{}
	for i, target := range phases {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		phase := sc.runPhase(ctx, i, target)
		result.Phases = append(result.Phases, phase)

		if phase.BreakingPoint {
			result.BreakingPoint = phase.TargetUsers
			sc.logger.Info("stress run halted on SLA breach",
				zap.String("component", "stress"), zap.String("phase", "halt"),
				zap.Int("target_users", phase.TargetUsers))
			return result
		}

		result.MaxSustainableLoad = phase.TargetUsers
	}

	return result
}

// planPhases expands the configured scenario into the sequence of target
// concurrency levels each phase should hold (spec.md §4.6).
func (sc *StressController) planPhases() []int {
	switch sc.cfg.Scenario {
	case StressSpike:
		return []int{sc.cfg.SpikeUsers}
	case StressSoak:
		targets := []int{sc.cfg.SoakUsers}
		targets = append(targets, sc.linearOverloadTargets()...)
		return targets
	default:
		return sc.linearOverloadTargets()
	}
}

func (sc *StressController) linearOverloadTargets() []int {
	var targets []int
	for target := sc.cfg.InitialUsers; target <= sc.cfg.MaxUsers; target += sc.cfg.StepUsers {
		targets = append(targets, target)
		if sc.cfg.StepUsers <= 0 {
			break
		}
	}
	return targets
}

// runPhase holds the scheduler at a constant target for one phase
// window, takes a phase-window aggregate from a fresh per-phase
// collector that drains only this phase's own results channel, and
// evaluates SLA.
func (sc *StressController) runPhase(ctx context.Context, index int, target int) PhaseResult {
	duration := sc.phaseDuration(index)

	results := make(chan RequestResult, 50_000)
	collector := metrics.NewCollector(metrics.DefaultCollectorConfig())

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for r := range results {
			collector.Fold(metrics.Result{
				Endpoint:    endpointKey(r),
				OK:          r.OK,
				ElapsedMs:   r.ElapsedMs,
				Bytes:       r.BytesReceived,
				ErrorKind:   string(r.ErrorKind),
				StartedAtNs: r.StartedAtNs,
			})
		}
	}()

	schedCfg := SchedulerConfig{
		Scenario:        ScenarioConstant,
		Users:           target,
		DurationSeconds: int(duration.Seconds()),
		ThinkTime:       time.Duration(sc.cfg.ThinkTimeMs) * time.Millisecond,
		Tick:            250 * time.Millisecond,
		GracePeriod:     5 * time.Second,
	}
	sched := NewScheduler(schedCfg, sc.runID, sc.requests, sc.executor, results, sc.logger)
	sched.Run(ctx)
	<-drainDone

	agg := collector.Snapshot(false)
	verdict := EvaluateSLA(agg, sc.cfg.Thresholds)

	return PhaseResult{
		PhaseIndex:    index,
		TargetUsers:   target,
		ReachedUsers:  sched.PeakActiveVUs(),
		Duration:      duration,
		Aggregate:     agg,
		Verdict:       verdict,
		BreakingPoint: !verdict.Pass,
	}
}

func (sc *StressController) phaseDuration(index int) time.Duration {
	if sc.cfg.Scenario == StressSpike {
		return time.Duration(sc.cfg.SpikeHoldSeconds) * time.Second
	}
	if sc.cfg.Scenario == StressSoak && index == 0 {
		return time.Duration(sc.cfg.SoakDurationSeconds) * time.Second
	}
	return time.Duration(sc.cfg.StepIntervalSeconds) * time.Second
}
