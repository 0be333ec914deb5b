package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cumakurt/deli/internal/engine"
)

// newConcurrencyScaledServer returns a server whose response latency grows
// with the number of in-flight requests, so a StressController ramping
// concurrency eventually trips a fixed p95 SLA — spec.md S5's "mock latency
// = target_users ms" expressed without the controller leaking its internal
// phase target to the handler.
func newConcurrencyScaledServer() *httptest.Server {
	var inflight int64
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inflight, 1)
		defer atomic.AddInt64(&inflight, -1)
		time.Sleep(time.Duration(n) * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
}

// TestRunStressTest_LinearOverloadHaltsOnBreach implements spec.md S5 and
// property 7: a linear_overload run steps concurrency up until p95 breaches
// the SLA, then halts instead of continuing to MaxUsers.
func TestRunStressTest_LinearOverloadHaltsOnBreach(t *testing.T) {
	server := newConcurrencyScaledServer()
	defer server.Close()

	req := engine.NewManualRequest(server.URL)
	req.Prepare(nil)

	stressCfg := engine.StressConfig{
		Scenario:            engine.StressLinearOverload,
		InitialUsers:        4,
		StepUsers:           4,
		StepIntervalSeconds: 1,
		MaxUsers:            24,
		Thresholds:          engine.Thresholds{P95Ms: 12},
	}

	result, err := engine.RunStressTest(context.Background(), engine.DefaultExecutorConfig(), stressCfg, []*engine.ParsedRequest{req}, zap.NewNop())
	if err != nil {
		t.Fatalf("RunStressTest: %v", err)
	}

	if len(result.Phases) == 0 {
		t.Fatal("expected at least one phase")
	}

	prevTarget := 0
	for _, p := range result.Phases {
		if p.TargetUsers <= prevTarget {
			t.Fatalf("phase targets not strictly increasing: %d after %d", p.TargetUsers, prevTarget)
		}
		prevTarget = p.TargetUsers
	}

	last := result.Phases[len(result.Phases)-1]
	if last.BreakingPoint {
		if result.BreakingPoint != last.TargetUsers {
			t.Errorf("BreakingPoint = %d, want %d (last phase's target)", result.BreakingPoint, last.TargetUsers)
		}
		if result.MaxSustainableLoad >= result.BreakingPoint {
			t.Errorf("MaxSustainableLoad (%d) should be below BreakingPoint (%d)", result.MaxSustainableLoad, result.BreakingPoint)
		}
	} else {
		if result.BreakingPoint != 0 {
			t.Errorf("expected no breach, got BreakingPoint=%d", result.BreakingPoint)
		}
		if result.MaxSustainableLoad != last.TargetUsers {
			t.Errorf("MaxSustainableLoad = %d, want %d", result.MaxSustainableLoad, last.TargetUsers)
		}
	}
}

// TestRunStressTest_SpikeRunsSinglePhase covers the spike_stress scenario:
// a single phase held at SpikeUsers for SpikeHoldSeconds.
func TestRunStressTest_SpikeRunsSinglePhase(t *testing.T) {
	server := newConcurrencyScaledServer()
	defer server.Close()

	req := engine.NewManualRequest(server.URL)
	req.Prepare(nil)

	stressCfg := engine.StressConfig{
		Scenario:         engine.StressSpike,
		SpikeUsers:       6,
		SpikeHoldSeconds: 1,
		Thresholds:       engine.Thresholds{P95Ms: 1000},
	}

	result, err := engine.RunStressTest(context.Background(), engine.DefaultExecutorConfig(), stressCfg, []*engine.ParsedRequest{req}, zap.NewNop())
	if err != nil {
		t.Fatalf("RunStressTest: %v", err)
	}

	if len(result.Phases) != 1 {
		t.Fatalf("expected exactly 1 phase for spike_stress, got %d", len(result.Phases))
	}
	if result.Phases[0].TargetUsers != 6 {
		t.Errorf("TargetUsers = %d, want 6", result.Phases[0].TargetUsers)
	}
}
