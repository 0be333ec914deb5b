// Package config provides YAML configuration parsing and validation for
// load and stress test runs.
package config

import (
	"time"
)

// RootConfig is the top-level document a YAML file decodes into. Exactly
// one of Load or Stress is populated, selected by Mode.
type RootConfig struct {
	Name  string          `json:"name" yaml:"name"`
	Mode  string          `json:"mode" yaml:"mode"` // "load" | "stress"
	Load  *ScenarioConfig `json:"load,omitempty" yaml:"load,omitempty"`
	Stress *StressConfig  `json:"stress,omitempty" yaml:"stress,omitempty"`

	// Request is the request-source block (spec.md §6): either a path to
	// a Postman v2.1 collection, or a single manual URL.
	Request RequestSourceConfig `json:"request" yaml:"request"`

	// Env holds KEY=VALUE substitutions applied during RequestPrep
	// (spec.md §6), distinct from the DELI_* process-environment overlay
	// config.Load applies to this document's own fields.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// RequestSourceConfig selects the request source (spec.md §6).
type RequestSourceConfig struct {
	CollectionPath string `json:"collection_path,omitempty" yaml:"collection_path,omitempty"`
	ManualURL      string `json:"manual_url,omitempty" yaml:"manual_url,omitempty"`
}

// ScenarioConfig is the load-test configuration of spec.md §6:
//
//	{users, ramp_up_seconds, duration_seconds, iterations, think_time_ms,
//	 scenario, spike_users, spike_duration_seconds, sla_p95_ms, sla_p99_ms,
//	 sla_error_rate_pct}
type ScenarioConfig struct {
	Users                int      `json:"users" yaml:"users"`
	RampUpSeconds        int      `json:"ramp_up_seconds,omitempty" yaml:"ramp_up_seconds,omitempty"`
	DurationSeconds      int      `json:"duration_seconds" yaml:"duration_seconds"`
	Iterations           int      `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	ThinkTimeMs          int      `json:"think_time_ms,omitempty" yaml:"think_time_ms,omitempty"`
	Scenario             string   `json:"scenario" yaml:"scenario"` // constant|gradual|spike
	SpikeUsers           int      `json:"spike_users,omitempty" yaml:"spike_users,omitempty"`
	SpikeDurationSeconds int      `json:"spike_duration_seconds,omitempty" yaml:"spike_duration_seconds,omitempty"`
	SLAP95Ms             *float64 `json:"sla_p95_ms,omitempty" yaml:"sla_p95_ms,omitempty"`
	SLAP99Ms             *float64 `json:"sla_p99_ms,omitempty" yaml:"sla_p99_ms,omitempty"`
	SLAErrorRatePct      *float64 `json:"sla_error_rate_pct,omitempty" yaml:"sla_error_rate_pct,omitempty"`
	ExtraSLA             []string `json:"extra_sla,omitempty" yaml:"extra_sla,omitempty"`
}

// StressConfig is the stress-test configuration of spec.md §6:
//
//	{scenario, initial_users, step_users, step_interval_seconds, max_users,
//	 think_time_ms, spike_users?, spike_hold_seconds?, soak_users?,
//	 soak_duration_seconds?, sla_p95_ms, sla_p99_ms, sla_error_rate_pct,
//	 sla_timeout_rate_pct}
type StressConfig struct {
	Scenario            string   `json:"scenario" yaml:"scenario"` // linear_overload|spike_stress|soak_stress
	InitialUsers        int      `json:"initial_users,omitempty" yaml:"initial_users,omitempty"`
	StepUsers           int      `json:"step_users,omitempty" yaml:"step_users,omitempty"`
	StepIntervalSeconds int      `json:"step_interval_seconds,omitempty" yaml:"step_interval_seconds,omitempty"`
	MaxUsers            int      `json:"max_users,omitempty" yaml:"max_users,omitempty"`
	ThinkTimeMs         int      `json:"think_time_ms,omitempty" yaml:"think_time_ms,omitempty"`
	SpikeUsers          int      `json:"spike_users,omitempty" yaml:"spike_users,omitempty"`
	SpikeHoldSeconds    int      `json:"spike_hold_seconds,omitempty" yaml:"spike_hold_seconds,omitempty"`
	SoakUsers           int      `json:"soak_users,omitempty" yaml:"soak_users,omitempty"`
	SoakDurationSeconds int      `json:"soak_duration_seconds,omitempty" yaml:"soak_duration_seconds,omitempty"`
	SLAP95Ms            float64  `json:"sla_p95_ms" yaml:"sla_p95_ms"`
	SLAP99Ms            float64  `json:"sla_p99_ms" yaml:"sla_p99_ms"`
	SLAErrorRatePct     float64  `json:"sla_error_rate_pct" yaml:"sla_error_rate_pct"`
	SLATimeoutRatePct   float64  `json:"sla_timeout_rate_pct" yaml:"sla_timeout_rate_pct"`
	ExtraSLA            []string `json:"extra_sla,omitempty" yaml:"extra_sla,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML
// strings like "30s", "2m", "1h30m".
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
