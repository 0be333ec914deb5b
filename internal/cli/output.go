package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cumakurt/deli/internal/engine"
	"github.com/cumakurt/deli/internal/engine/metrics"
)

type aggregateReport struct {
	RunID     string             `json:"run_id"`
	Aggregate *metrics.Aggregate `json:"aggregate"`
	Verdict   engine.Verdict     `json:"verdict"`
}

func printAggregateJSON(runID string, agg *metrics.Aggregate, verdict engine.Verdict) {
	data, err := json.MarshalIndent(aggregateReport{RunID: runID, Aggregate: agg, Verdict: verdict}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printStressResultJSON(result *engine.StressResult) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
