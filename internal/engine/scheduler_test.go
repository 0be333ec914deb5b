package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cumakurt/deli/internal/engine"
)

func TestSchedulerConfig_TargetAt_Constant(t *testing.T) {
	cfg := engine.SchedulerConfig{Scenario: engine.ScenarioConstant, Users: 5, DurationSeconds: 3}
	for _, d := range []time.Duration{0, time.Second, 3 * time.Second} {
		if got := cfg.TargetAt(d); got != 5 {
			t.Errorf("TargetAt(%v) = %d, want 5", d, got)
		}
	}
}

func TestSchedulerConfig_TargetAt_Gradual(t *testing.T) {
	cfg := engine.SchedulerConfig{Scenario: engine.ScenarioGradual, Users: 10, RampUpSeconds: 2, DurationSeconds: 4}

	if got := cfg.TargetAt(0); got != 0 {
		t.Errorf("TargetAt(0) = %d, want 0", got)
	}
	if got := cfg.TargetAt(time.Second); got != 5 {
		t.Errorf("TargetAt(1s) = %d, want 5", got)
	}
	if got := cfg.TargetAt(3 * time.Second); got != 10 {
		t.Errorf("TargetAt(3s) = %d, want 10", got)
	}
}

func TestSchedulerConfig_TargetAt_Spike(t *testing.T) {
	// spec.md S3: users:2, duration:6, spike_users:8, spike_duration:2
	// Active VUs trace: 2 for [0,3), 10 for [3,5), 2 for [5,6).
	cfg := engine.SchedulerConfig{
		Scenario:             engine.ScenarioSpike,
		Users:                2,
		DurationSeconds:      6,
		SpikeUsers:           8,
		SpikeDurationSeconds: 2,
	}

	cases := []struct {
		t    time.Duration
		want int
	}{
		{0, 2},
		{2900 * time.Millisecond, 2},
		{3100 * time.Millisecond, 10},
		{4900 * time.Millisecond, 10},
		{5100 * time.Millisecond, 2},
	}
	for _, c := range cases {
		if got := cfg.TargetAt(c.t); got != c.want {
			t.Errorf("TargetAt(%v) = %d, want %d", c.t, got, c.want)
		}
	}
}

func TestScheduler_ClosesResultsAfterConstantRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec, err := engine.NewHTTPExecutor(engine.DefaultExecutorConfig())
	if err != nil {
		t.Fatalf("NewHTTPExecutor: %v", err)
	}
	defer exec.Close()

	req := engine.NewManualRequest(server.URL)
	req.Prepare(nil)

	results := make(chan engine.RequestResult, 1000)
	cfg := engine.SchedulerConfig{
		Scenario:        engine.ScenarioConstant,
		Users:           5,
		DurationSeconds: 1,
		Tick:            50 * time.Millisecond,
		GracePeriod:     2 * time.Second,
	}
	sched := engine.NewScheduler(cfg, "run-1", []*engine.ParsedRequest{req}, exec, results, nil)

	done := make(chan struct{})
	go func() {
		for range results {
		}
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sched.Run(ctx)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("results channel was not closed after scheduler shutdown")
	}
}
