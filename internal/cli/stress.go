package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cumakurt/deli/internal/engine"
	"github.com/cumakurt/deli/internal/engine/config"
	"github.com/cumakurt/deli/internal/engine/logging"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Ramp concurrency in phases until an SLA breach or the ceiling is reached",
	Long: `Promote a virtual-user pool through a sequence of fixed-concurrency
phases (linear_overload, spike_stress, or soak_stress), evaluating the SLA at
the end of each phase and halting on first breach.

  deli stress --config ramp.yaml`,
	Run: runStressCmd,
}

func init() {
	stressCmd.Flags().StringP("config", "c", "", "path to a YAML run document (required)")
	stressCmd.Flags().Bool("json", false, "print every phase as JSON instead of a summary")
}

func runStressCmd(cmd *cobra.Command, args []string) {
	logger := logging.New()
	defer logger.Sync()

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "--config is required for stress runs")
		cmd.Help()
		os.Exit(2)
	}

	root, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	if root.Mode != "stress" || root.Stress == nil {
		fmt.Fprintln(os.Stderr, "configuration error: mode must be 'stress' with a stress block")
		os.Exit(2)
	}

	requests, err := buildRequests(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request source error: %v\n", err)
		os.Exit(2)
	}

	result, err := engine.RunStressTest(context.Background(), engine.DefaultExecutorConfig(), root.Stress.ToStressConfig(), requests, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stress test failed to run: %v\n", err)
		os.Exit(2)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		printStressResultJSON(result)
	} else {
		printStressSummary(result)
	}

	if result.BreakingPoint > 0 {
		os.Exit(1)
	}
}

func printStressSummary(result *engine.StressResult) {
	for _, phase := range result.Phases {
		status := color.New(color.FgGreen, color.Bold)
		label := "PASS"
		if phase.BreakingPoint {
			status = color.New(color.FgRed, color.Bold)
			label = "BREACH"
		}
		status.Printf("[phase %d target=%d reached=%d] %s", phase.PhaseIndex, phase.TargetUsers, phase.ReachedUsers, label)
		fmt.Printf(" p95=%.1fms p99=%.1fms errors=%.2f%%\n",
			phase.Aggregate.P95Ms, phase.Aggregate.P99Ms, phase.Aggregate.ErrorRatePct)
	}

	if result.BreakingPoint > 0 {
		color.Red("breaking point: %d concurrent users", result.BreakingPoint)
	}
	fmt.Printf("max sustainable load: %d concurrent users\n", result.MaxSustainableLoad)
}
