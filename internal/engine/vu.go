package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// VUState is the lifecycle of a single virtual user.
type VUState int32

const (
	VUIdle VUState = iota
	VURunning
	VUStopping
	VUStopped
)

// VU is a cooperative task that repeatedly walks the request sequence,
// issuing each request through the shared HTTPExecutor and pushing every
// result onto the run's bounded results channel. It never folds results
// itself — that is the MetricsCollector's job, run by a single consumer.
type VU struct {
	ID         int
	RunID      string
	Requests   []*ParsedRequest
	Executor   *HTTPExecutor
	Results    chan<- RequestResult
	ThinkTime  time.Duration
	Iterations int // 0 means unlimited

	state     atomic.Int32
	iterCount atomic.Int64
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewVU constructs a VU in VUIdle state. The caller retains ownership of
// results and must not close it until every VU fed by it has exited.
func NewVU(id int, runID string, requests []*ParsedRequest, executor *HTTPExecutor, results chan<- RequestResult, thinkTime time.Duration, iterations int) *VU {
	vu := &VU{
		ID:         id,
		RunID:      runID,
		Requests:   requests,
		Executor:   executor,
		Results:    results,
		ThinkTime:  thinkTime,
		Iterations: iterations,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	vu.state.Store(int32(VUIdle))
	return vu
}

// State returns the VU's current lifecycle state.
func (v *VU) State() VUState {
	return VUState(v.state.Load())
}

// IterCount returns the number of full request-sequence passes completed.
func (v *VU) IterCount() int64 {
	return v.iterCount.Load()
}

// Stop requests a graceful stop: the VU finishes its current request, then
// exits before starting the next one in its sequence (spec.md §4.5:
// "signal VUs to stop after their current request completes").
func (v *VU) Stop() {
	switch v.State() {
	case VURunning:
		if v.state.CompareAndSwap(int32(VURunning), int32(VUStopping)) {
			close(v.stopCh)
		}
	case VUIdle:
		if v.state.CompareAndSwap(int32(VUIdle), int32(VUStopped)) {
			close(v.stopCh)
			close(v.doneCh)
		}
	}
}

// Done returns a channel closed once the VU's Run loop has exited.
func (v *VU) Done() <-chan struct{} {
	return v.doneCh
}

// Run drives the VU loop until ctx is cancelled, Stop is called, or the
// configured iteration count is reached. It closes doneCh on exit; if Stop
// reached the VU while it was still idle, Stop has already closed doneCh
// and Run returns at once.
func (v *VU) Run(ctx context.Context) {
	if !v.state.CompareAndSwap(int32(VUIdle), int32(VURunning)) {
		return
	}
	defer close(v.doneCh)

	for {
		if v.shouldStop(ctx) {
			break
		}
		if v.Iterations > 0 && v.iterCount.Load() >= int64(v.Iterations) {
			break
		}

		for _, req := range v.Requests {
			if v.shouldStop(ctx) {
				v.state.Store(int32(VUStopped))
				return
			}

			result := v.Executor.Execute(ctx, v.RunID, v.ID, req)
			select {
			case v.Results <- result:
			case <-ctx.Done():
				v.state.Store(int32(VUStopped))
				return
			}

			if v.ThinkTime > 0 {
				select {
				case <-time.After(v.ThinkTime):
				case <-v.stopCh:
					v.state.Store(int32(VUStopped))
					return
				case <-ctx.Done():
					v.state.Store(int32(VUStopped))
					return
				}
			}
		}

		v.iterCount.Add(1)
	}

	v.state.Store(int32(VUStopped))
}

func (v *VU) shouldStop(ctx context.Context) bool {
	select {
	case <-v.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
