package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire root configuration (spec.md §7: client
// misconfiguration is surfaced before the run starts, exit code 2).
func (c *RootConfig) Validate() error {
	errs := &ValidationErrors{}

	switch c.Mode {
	case "load":
		if c.Load == nil {
			errs.Add("load", "mode is 'load' but no load scenario is configured")
		} else {
			validateScenario(c.Load, errs)
		}
	case "stress":
		if c.Stress == nil {
			errs.Add("stress", "mode is 'stress' but no stress scenario is configured")
		} else {
			validateStress(c.Stress, errs)
		}
	default:
		errs.Add("mode", fmt.Sprintf("must be 'load' or 'stress', got %q", c.Mode))
	}

	validateRequestSource(&c.Request, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateRequestSource(r *RequestSourceConfig, errs *ValidationErrors) {
	if r.CollectionPath == "" && r.ManualURL == "" {
		errs.Add("request", "either collection_path or manual_url must be set")
		return
	}
	if r.CollectionPath != "" && r.ManualURL != "" {
		errs.Add("request", "collection_path and manual_url are mutually exclusive")
	}
	if r.ManualURL != "" {
		if _, err := url.Parse(r.ManualURL); err != nil {
			errs.Add("request.manual_url", fmt.Sprintf("invalid URL: %v", err))
		}
	}
}

func validateScenario(s *ScenarioConfig, errs *ValidationErrors) {
	if s.Users < 1 {
		errs.Add("load.users", "must be >= 1")
	}
	if s.DurationSeconds < 1 {
		errs.Add("load.duration_seconds", "must be >= 1")
	}
	if s.RampUpSeconds < 0 {
		errs.Add("load.ramp_up_seconds", "must be >= 0")
	}
	if s.Iterations < 0 {
		errs.Add("load.iterations", "must be >= 0")
	}
	if s.ThinkTimeMs < 0 {
		errs.Add("load.think_time_ms", "must be >= 0")
	}

	switch s.Scenario {
	case "constant":
	case "gradual":
		if s.RampUpSeconds <= 0 {
			errs.Add("load.ramp_up_seconds", "must be > 0 for a gradual scenario")
		}
	case "spike":
		if s.SpikeUsers <= 0 {
			errs.Add("load.spike_users", "must be > 0 for a spike scenario")
		}
		if s.SpikeDurationSeconds <= 0 {
			errs.Add("load.spike_duration_seconds", "must be > 0 for a spike scenario")
		}
	default:
		errs.Add("load.scenario", fmt.Sprintf("must be one of constant|gradual|spike, got %q", s.Scenario))
	}

	for _, e := range s.ExtraSLA {
		if strings.TrimSpace(e) == "" {
			errs.Add("load.extra_sla", "entries must not be empty")
		}
	}
}

func validateStress(s *StressConfig, errs *ValidationErrors) {
	switch s.Scenario {
	case "linear_overload":
		if s.InitialUsers < 1 {
			errs.Add("stress.initial_users", "must be >= 1")
		}
		if s.StepUsers <= 0 {
			errs.Add("stress.step_users", "must be > 0")
		}
		if s.MaxUsers < s.InitialUsers {
			errs.Add("stress.max_users", "must be >= initial_users")
		}
		if s.StepIntervalSeconds < 1 {
			errs.Add("stress.step_interval_seconds", "must be >= 1")
		}
	case "spike_stress":
		if s.SpikeUsers < 1 {
			errs.Add("stress.spike_users", "must be >= 1")
		}
		if s.SpikeHoldSeconds < 1 {
			errs.Add("stress.spike_hold_seconds", "must be >= 1")
		}
	case "soak_stress":
		if s.SoakUsers < 1 {
			errs.Add("stress.soak_users", "must be >= 1")
		}
		if s.SoakDurationSeconds < 1 {
			errs.Add("stress.soak_duration_seconds", "must be >= 1")
		}
		if s.StepUsers <= 0 {
			errs.Add("stress.step_users", "must be > 0 (soak is followed by linear_overload)")
		}
	default:
		errs.Add("stress.scenario", fmt.Sprintf("must be one of linear_overload|spike_stress|soak_stress, got %q", s.Scenario))
	}

	if s.SLAP95Ms <= 0 {
		errs.Add("stress.sla_p95_ms", "must be > 0")
	}
	if s.SLAP99Ms <= 0 {
		errs.Add("stress.sla_p99_ms", "must be > 0")
	}
	if s.SLAErrorRatePct < 0 {
		errs.Add("stress.sla_error_rate_pct", "must be >= 0")
	}
	if s.SLATimeoutRatePct < 0 {
		errs.Add("stress.sla_timeout_rate_pct", "must be >= 0")
	}
}
