package engine

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/cumakurt/deli/internal/engine/metrics"
)

// Thresholds are the SLA parameters spec.md §4.7 evaluates an Aggregate
// against. Each of the four fixed fields is checked only when it is > 0; a
// zero field disables that check. ExtraSLA is an additive, optional list
// of free-form boolean
// expressions (SPEC_FULL.md §4.7).
type Thresholds struct {
	P95Ms          float64
	P99Ms          float64
	ErrorRatePct   float64
	TimeoutRatePct float64
	ExtraSLA       []string
}

// Violation records one breached metric (spec.md §4.7).
type Violation struct {
	MetricName string
	Observed   float64
	Threshold  float64
}

// Verdict is the SLA evaluator's output: pass/fail plus the list of
// breached metrics.
type Verdict struct {
	Pass       bool
	Violations []Violation
}

// EvaluateSLA is the pure function of spec.md §4.7: compares an
// Aggregate against Thresholds and returns a Verdict. It never mutates
// its inputs and performs no I/O.
func EvaluateSLA(agg *metrics.Aggregate, t Thresholds) Verdict {
	var violations []Violation

	if t.P95Ms > 0 && agg.P95Ms > t.P95Ms {
		violations = append(violations, Violation{MetricName: "p95_ms", Observed: agg.P95Ms, Threshold: t.P95Ms})
	}
	if t.P99Ms > 0 && agg.P99Ms > t.P99Ms {
		violations = append(violations, Violation{MetricName: "p99_ms", Observed: agg.P99Ms, Threshold: t.P99Ms})
	}
	if t.ErrorRatePct > 0 && agg.ErrorRatePct > t.ErrorRatePct {
		violations = append(violations, Violation{MetricName: "error_rate_pct", Observed: agg.ErrorRatePct, Threshold: t.ErrorRatePct})
	}
	if t.TimeoutRatePct > 0 {
		timeoutRate := timeoutRatePct(agg)
		if timeoutRate > t.TimeoutRatePct {
			violations = append(violations, Violation{MetricName: "timeout_rate_pct", Observed: timeoutRate, Threshold: t.TimeoutRatePct})
		}
	}

	for _, exprStr := range t.ExtraSLA {
		breached, observed, err := evaluateExtraSLA(exprStr, agg)
		if err != nil {
			// A malformed expression is a client misconfiguration
			// (spec.md §7), surfaced as a violation rather than a panic
			// so the run still produces a verdict.
			violations = append(violations, Violation{MetricName: exprStr, Observed: 0, Threshold: 0})
			continue
		}
		if breached {
			violations = append(violations, Violation{MetricName: exprStr, Observed: observed, Threshold: 1})
		}
	}

	return Verdict{Pass: len(violations) == 0, Violations: violations}
}

func timeoutRatePct(agg *metrics.Aggregate) float64 {
	if agg.TotalRequests == 0 {
		return 0
	}
	return float64(agg.Timeouts) / float64(agg.TotalRequests) * 100
}

// evaluateExtraSLA compiles and runs a free-form boolean expr-lang
// expression against the Aggregate's exported fields (SPEC_FULL.md
// §4.7). A true result means the SLA is breached: ExtraSLA expressions
// are phrased as breach conditions (e.g. "ErrorRate > 0.02"), the
// mirror image of the fixed thresholds above.
func evaluateExtraSLA(exprStr string, agg *metrics.Aggregate) (bool, float64, error) {
	env := map[string]interface{}{
		"TotalRequests": float64(agg.TotalRequests),
		"Successes":     float64(agg.Successes),
		"Failures":      float64(agg.Failures),
		"ErrorRate":     agg.ErrorRatePct / 100,
		"ErrorRatePct":  agg.ErrorRatePct,
		"RPS":           agg.TPSMean,
		"P50Ms":         agg.P50Ms,
		"P95Ms":         agg.P95Ms,
		"P99Ms":         agg.P99Ms,
	}

	program, err := expr.Compile(exprStr, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, 0, fmt.Errorf("compile extra SLA expression %q: %w", exprStr, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, 0, fmt.Errorf("evaluate extra SLA expression %q: %w", exprStr, err)
	}

	breached, ok := out.(bool)
	if !ok {
		return false, 0, fmt.Errorf("extra SLA expression %q did not evaluate to bool", exprStr)
	}
	return breached, 0, nil
}
