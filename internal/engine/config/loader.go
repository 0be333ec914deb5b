package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cumakurt/deli/internal/engine"
)

// Load reads a YAML run document from path, applies the DELI_* process
// environment overlay (spec.md §6), and validates the result.
func Load(path string) (*RootConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg RootConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	applyEnvOverlay(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverlay binds DELI_* environment variables on top of whatever
// the YAML document set, letting a CI pipeline override a handful of
// knobs (users, duration, mode) without editing the file (spec.md §6).
func applyEnvOverlay(cfg *RootConfig) {
	v := viper.New()
	v.SetEnvPrefix("DELI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if mode := v.GetString("mode"); mode != "" {
		cfg.Mode = mode
	}
	if users := v.GetInt("users"); users > 0 && cfg.Load != nil {
		cfg.Load.Users = users
	}
	if dur := v.GetInt("duration_seconds"); dur > 0 && cfg.Load != nil {
		cfg.Load.DurationSeconds = dur
	}
	if url := v.GetString("manual_url"); url != "" {
		cfg.Request.ManualURL = url
		cfg.Request.CollectionPath = ""
	}
}

// ToSchedulerConfig translates the YAML-facing load scenario into the
// engine's runtime scheduler configuration (spec.md §4.5).
func (s *ScenarioConfig) ToSchedulerConfig() engine.SchedulerConfig {
	return engine.SchedulerConfig{
		Scenario:             engine.ScenarioKind(s.Scenario),
		Users:                s.Users,
		RampUpSeconds:        s.RampUpSeconds,
		DurationSeconds:      s.DurationSeconds,
		SpikeUsers:           s.SpikeUsers,
		SpikeDurationSeconds: s.SpikeDurationSeconds,
		Iterations:           s.Iterations,
		ThinkTime:            time.Duration(s.ThinkTimeMs) * time.Millisecond,
		Tick:                 250 * time.Millisecond,
		GracePeriod:          5 * time.Second,
	}
}

// ToThresholds translates the YAML-facing SLA fields into engine.Thresholds.
func (s *ScenarioConfig) ToThresholds() engine.Thresholds {
	t := engine.Thresholds{ExtraSLA: s.ExtraSLA}
	if s.SLAP95Ms != nil {
		t.P95Ms = *s.SLAP95Ms
	}
	if s.SLAP99Ms != nil {
		t.P99Ms = *s.SLAP99Ms
	}
	if s.SLAErrorRatePct != nil {
		t.ErrorRatePct = *s.SLAErrorRatePct
	}
	return t
}

// ToStressConfig translates the YAML-facing stress scenario into the
// engine's runtime stress controller configuration (spec.md §4.6).
func (s *StressConfig) ToStressConfig() engine.StressConfig {
	return engine.StressConfig{
		Scenario:            engine.StressScenario(s.Scenario),
		InitialUsers:        s.InitialUsers,
		StepUsers:           s.StepUsers,
		StepIntervalSeconds: s.StepIntervalSeconds,
		MaxUsers:            s.MaxUsers,
		ThinkTimeMs:         s.ThinkTimeMs,
		SpikeUsers:          s.SpikeUsers,
		SpikeHoldSeconds:    s.SpikeHoldSeconds,
		SoakUsers:           s.SoakUsers,
		SoakDurationSeconds: s.SoakDurationSeconds,
		Thresholds: engine.Thresholds{
			P95Ms:          s.SLAP95Ms,
			P99Ms:          s.SLAP99Ms,
			ErrorRatePct:   s.SLAErrorRatePct,
			TimeoutRatePct: s.SLATimeoutRatePct,
			ExtraSLA:       s.ExtraSLA,
		},
	}
}
