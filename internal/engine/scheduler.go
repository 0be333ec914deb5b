package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ScenarioKind names a load-test scheduler shape (spec.md §4.5).
type ScenarioKind string

const (
	ScenarioConstant ScenarioKind = "constant"
	ScenarioGradual  ScenarioKind = "gradual"
	ScenarioSpike    ScenarioKind = "spike"
)

// SchedulerConfig drives the target-concurrency function N(t).
type SchedulerConfig struct {
	Scenario            ScenarioKind
	Users               int
	RampUpSeconds       int
	DurationSeconds     int
	SpikeUsers          int
	SpikeDurationSeconds int
	Iterations          int
	ThinkTime           time.Duration
	Tick                time.Duration
	GracePeriod         time.Duration
}

// DefaultSchedulerConfig fills in the scheduler's own defaults; scenario
// fields are left zero and must be set by the caller.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Tick:        250 * time.Millisecond,
		GracePeriod: 5 * time.Second,
	}
}

// TargetAt computes N(t) — the target concurrent VU count at elapsed time
// t — for the configured scenario (spec.md §4.5).
func (c SchedulerConfig) TargetAt(t time.Duration) int {
	switch c.Scenario {
	case ScenarioGradual:
		return c.gradualTarget(t)
	case ScenarioSpike:
		return c.spikeTarget(t)
	default:
		return c.Users
	}
}

func (c SchedulerConfig) gradualTarget(t time.Duration) int {
	rampUp := time.Duration(c.RampUpSeconds) * time.Second
	if rampUp <= 0 || t >= rampUp {
		return c.Users
	}
	frac := float64(t) / float64(rampUp)
	return int(frac * float64(c.Users))
}

func (c SchedulerConfig) spikeTarget(t time.Duration) int {
	duration := time.Duration(c.DurationSeconds) * time.Second
	mid := duration / 2
	spikeDur := time.Duration(c.SpikeDurationSeconds) * time.Second
	spikeEnd := mid + spikeDur
	if t >= mid && t < spikeEnd {
		return c.Users + c.SpikeUsers
	}
	return c.Users
}

// Scheduler converges a live pool of VUs to the configured scenario's
// target concurrency N(t), ticking at a coarse interval and spawning or
// gracefully stopping VUs as needed (spec.md §4.5).
type Scheduler struct {
	cfg       SchedulerConfig
	runID     string
	requests  []*ParsedRequest
	executor  *HTTPExecutor
	results   chan RequestResult
	logger    *zap.Logger

	mu       sync.Mutex
	vus      map[int]*VU
	nextID   int
	start    time.Time
	wg       sync.WaitGroup
	peak     int
}

// NewScheduler builds a Scheduler ready to Run. The scheduler owns
// results: it is the sole closer, once every spawned VU has exited.
func NewScheduler(cfg SchedulerConfig, runID string, requests []*ParsedRequest, executor *HTTPExecutor, results chan RequestResult, logger *zap.Logger) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = 250 * time.Millisecond
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		runID:    runID,
		requests: requests,
		executor: executor,
		results:  results,
		logger:   logger,
		vus:      make(map[int]*VU),
	}
}

// ActiveVUs returns the current count of non-stopped VUs.
func (s *Scheduler) ActiveVUs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActive()
}

// PeakActiveVUs returns the highest concurrent VU count reached at any
// tick during the run, even after shutdown has brought the live count
// back to zero.
func (s *Scheduler) PeakActiveVUs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func (s *Scheduler) countActive() int {
	n := 0
	for _, vu := range s.vus {
		if vu.State() != VUStopped {
			n++
		}
	}
	return n
}

// Run drives the scheduler loop until the configured duration elapses or
// ctx is cancelled, converging the VU pool to N(t) on every tick, then
// performs graceful shutdown: stop all VUs, wait up to GracePeriod for
// in-flight requests, and close the results channel.
func (s *Scheduler) Run(ctx context.Context) {
	s.start = time.Now()
	duration := time.Duration(s.cfg.DurationSeconds) * time.Second

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.reconcile(ctx, 0)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case now := <-ticker.C:
			elapsed := now.Sub(s.start)
			if duration > 0 && elapsed >= duration {
				break loop
			}
			s.reconcile(runCtx, elapsed)
		}
	}

	s.shutdown()
}

// reconcile spawns or signals-stop on VUs to converge the pool toward
// TargetAt(elapsed), within one tick, per spec.md §4.5.
func (s *Scheduler) reconcile(ctx context.Context, elapsed time.Duration) {
	target := s.cfg.TargetAt(elapsed)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.countActive()
	if current > s.peak {
		s.peak = current
	}
	switch {
	case current < target:
		for i := current; i < target; i++ {
			s.spawnLocked(ctx)
		}
		if target > s.peak {
			s.peak = target
		}
	case current > target:
		excess := current - target
		stopped := 0
		for _, vu := range s.vus {
			if stopped >= excess {
				break
			}
			if vu.State() == VURunning {
				vu.Stop()
				stopped++
			}
		}
	}
}

func (s *Scheduler) spawnLocked(ctx context.Context) {
	s.nextID++
	id := s.nextID
	vu := NewVU(id, s.runID, s.requests, s.executor, s.results, s.cfg.ThinkTime, s.cfg.Iterations)
	s.vus[id] = vu
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		vu.Run(ctx)
	}()
}

// shutdown signals every VU to stop, waits up to the configured grace
// period for in-flight requests, and closes the results channel.
func (s *Scheduler) shutdown() {
	s.mu.Lock()
	for _, vu := range s.vus {
		vu.Stop()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.GracePeriod):
		s.logger.Warn("scheduler shutdown grace period expired", zap.String("component", "scheduler"), zap.String("phase", "shutdown"))
	}

	close(s.results)
}
