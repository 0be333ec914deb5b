package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromCollector_RegistersAndCollects(t *testing.T) {
	collector := NewCollector(DefaultCollectorConfig())
	collector.Fold(Result{Endpoint: "GET /", OK: true, ElapsedMs: 12.5})
	collector.Fold(Result{Endpoint: "GET /", OK: false, ElapsedMs: 30, ErrorKind: "timeout"})

	promCollector := NewPromCollector(collector)

	registry := prometheus.NewRegistry()
	if err := registry.Register(promCollector); err != nil {
		t.Fatalf("register: %v", err)
	}

	count, err := testutil.GatherAndCount(registry)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 8 {
		t.Fatalf("expected 8 collected metrics, got %d", count)
	}
}
