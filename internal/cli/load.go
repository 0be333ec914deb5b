package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cumakurt/deli/internal/engine"
	"github.com/cumakurt/deli/internal/engine/config"
	"github.com/cumakurt/deli/internal/engine/logging"
	"github.com/cumakurt/deli/internal/engine/metrics"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Run a fixed-shape, fixed-duration load test",
	Long: `Drive a constant, gradual, or spike concurrency scenario against a
single HTTP target and evaluate the result against an SLA.

Config file mode:
  deli load --config run.yaml

Quick CLI mode (single URL, constant scenario):
  deli load --url https://api.example.com/health --users 20 --duration 30s`,
	Run: runLoadCmd,
}

func init() {
	loadCmd.Flags().StringP("config", "c", "", "path to a YAML run document")
	loadCmd.Flags().String("url", "", "target URL for quick CLI mode (alternative to --config)")
	loadCmd.Flags().Int("users", 10, "target concurrent virtual users")
	loadCmd.Flags().Duration("duration", 30*time.Second, "test duration")
	loadCmd.Flags().String("scenario", "constant", "constant|gradual|spike")
	loadCmd.Flags().Int("ramp-up-seconds", 0, "ramp-up window for the gradual scenario")
	loadCmd.Flags().Int("spike-users", 0, "additional users during the spike window")
	loadCmd.Flags().Int("spike-duration-seconds", 0, "spike window width in seconds")
	loadCmd.Flags().Int("think-time-ms", 0, "pause after each request per VU")
	loadCmd.Flags().Float64("sla-p95-ms", 0, "fail if observed p95 latency exceeds this")
	loadCmd.Flags().Float64("sla-p99-ms", 0, "fail if observed p99 latency exceeds this")
	loadCmd.Flags().Float64("sla-error-rate-pct", 0, "fail if the error rate exceeds this percentage")
	loadCmd.Flags().Bool("json", false, "print the final aggregate as JSON instead of a summary line")
}

func runLoadCmd(cmd *cobra.Command, args []string) {
	logger := logging.New()
	defer logger.Sync()

	configPath, _ := cmd.Flags().GetString("config")
	url, _ := cmd.Flags().GetString("url")

	var root *config.RootConfig
	var err error

	switch {
	case configPath != "":
		root, err = config.Load(configPath)
	case url != "":
		root, err = loadRootFromFlags(cmd, url)
	default:
		fmt.Fprintln(os.Stderr, "either --config or --url is required")
		cmd.Help()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	requests, err := buildRequests(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request source error: %v\n", err)
		os.Exit(2)
	}

	cfg := engine.LoadTestConfig{
		Scheduler:  root.Load.ToSchedulerConfig(),
		Executor:   engine.DefaultExecutorConfig(),
		Collector:  metrics.DefaultCollectorConfig(),
		Thresholds: root.Load.ToThresholds(),
	}

	report, err := engine.RunLoadTest(context.Background(), cfg, requests, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load test failed to run: %v\n", err)
		os.Exit(2)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		printAggregateJSON(report.RunID, report.Aggregate, report.Verdict)
	} else {
		printLoadSummary(report)
	}

	if !report.Verdict.Pass {
		os.Exit(1)
	}
}

func loadRootFromFlags(cmd *cobra.Command, url string) (*config.RootConfig, error) {
	users, _ := cmd.Flags().GetInt("users")
	duration, _ := cmd.Flags().GetDuration("duration")
	scenario, _ := cmd.Flags().GetString("scenario")
	rampUp, _ := cmd.Flags().GetInt("ramp-up-seconds")
	spikeUsers, _ := cmd.Flags().GetInt("spike-users")
	spikeDuration, _ := cmd.Flags().GetInt("spike-duration-seconds")
	thinkTimeMs, _ := cmd.Flags().GetInt("think-time-ms")
	p95, _ := cmd.Flags().GetFloat64("sla-p95-ms")
	p99, _ := cmd.Flags().GetFloat64("sla-p99-ms")
	errRate, _ := cmd.Flags().GetFloat64("sla-error-rate-pct")

	root := &config.RootConfig{
		Name: "cli-load-test",
		Mode: "load",
		Load: &config.ScenarioConfig{
			Users:                users,
			RampUpSeconds:        rampUp,
			DurationSeconds:      int(duration.Seconds()),
			ThinkTimeMs:          thinkTimeMs,
			Scenario:             scenario,
			SpikeUsers:           spikeUsers,
			SpikeDurationSeconds: spikeDuration,
		},
		Request: config.RequestSourceConfig{ManualURL: url},
	}
	if p95 > 0 {
		root.Load.SLAP95Ms = &p95
	}
	if p99 > 0 {
		root.Load.SLAP99Ms = &p99
	}
	if errRate > 0 {
		root.Load.SLAErrorRatePct = &errRate
	}

	if err := root.Validate(); err != nil {
		return nil, err
	}
	return root, nil
}

// buildRequests resolves a RootConfig's request source into the ordered
// []*engine.ParsedRequest the scheduler drives (spec.md §6). Collection
// parsing is an external collaborator (spec.md §1); only the manual URL
// source is implemented in the core.
func buildRequests(root *config.RootConfig) ([]*engine.ParsedRequest, error) {
	if root.Request.ManualURL != "" {
		req := engine.NewManualRequest(root.Request.ManualURL)
		req.Prepare(root.Env)
		return []*engine.ParsedRequest{req}, nil
	}
	return nil, fmt.Errorf("collection_path %q: Postman v2.1 collection parsing is not implemented in the core; supply a CollectionSource externally", root.Request.CollectionPath)
}

func printLoadSummary(report *engine.LoadTestReport) {
	agg := report.Aggregate
	statusColor := color.New(color.FgGreen, color.Bold)
	status := "PASS"
	if !report.Verdict.Pass {
		statusColor = color.New(color.FgRed, color.Bold)
		status = "FAIL"
	}

	statusColor.Printf("[%s]", status)
	fmt.Printf(" run=%s requests=%d errors=%d (%.2f%%) p50=%.1fms p95=%.1fms p99=%.1fms rps=%.1f\n",
		report.RunID, agg.TotalRequests, agg.Failures, agg.ErrorRatePct,
		agg.P50Ms, agg.P95Ms, agg.P99Ms, agg.TPSMean)

	for _, v := range report.Verdict.Violations {
		color.Yellow("  SLA breach: %s observed=%.2f threshold=%.2f", v.MetricName, v.Observed, v.Threshold)
	}
}
