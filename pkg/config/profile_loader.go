package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScenarioProfile describes one seedable alert scenario: a synthetic metric
// series plus the alert rules that should fire against it. Profiles live as
// profile_<name>.yaml files in the scenario profiles directory.
type ScenarioProfile struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Metric      string         `yaml:"metric" json:"metric"`
	Days        int            `yaml:"days" json:"days"`
	Baseline    BaselineConfig `yaml:"baseline" json:"baseline"`
	Anomalies   []Anomaly      `yaml:"anomalies,omitempty" json:"anomalies,omitempty"`
	Rules       []RuleConfig   `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// BaselineConfig shapes the normal portion of the series.
type BaselineConfig struct {
	Mean   float64 `yaml:"mean" json:"mean"`
	Jitter float64 `yaml:"jitter,omitempty" json:"jitter,omitempty"`
}

// Anomaly injects a deviation on a given day of the series.
type Anomaly struct {
	Day        int     `yaml:"day" json:"day"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// RuleConfig is an alert rule seeded alongside the scenario data.
type RuleConfig struct {
	Name     string `yaml:"name" json:"name"`
	Expr     string `yaml:"expr" json:"expr"`
	Severity string `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// Validate rejects profiles that cannot produce a usable scenario.
func (p *ScenarioProfile) Validate() error {
	if p.Metric == "" {
		return fmt.Errorf("profile %q: metric is required", p.Name)
	}
	if p.Days <= 0 {
		return fmt.Errorf("profile %q: days must be positive", p.Name)
	}
	if p.Baseline.Mean <= 0 {
		return fmt.Errorf("profile %q: baseline.mean must be positive", p.Name)
	}
	for _, a := range p.Anomalies {
		if a.Day < 0 || a.Day >= p.Days {
			return fmt.Errorf("profile %q: anomaly day %d outside series", p.Name, a.Day)
		}
		if a.Multiplier <= 0 {
			return fmt.Errorf("profile %q: anomaly multiplier must be positive", p.Name)
		}
	}
	for _, r := range p.Rules {
		if r.Name == "" || r.Expr == "" {
			return fmt.Errorf("profile %q: rule name and expr are required", p.Name)
		}
	}
	return nil
}

// LoadScenarioProfile loads one profile by name from the profiles directory.
func LoadScenarioProfile(profilesDir, name string) (*ScenarioProfile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var profile ScenarioProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}
	if profile.Name == "" {
		profile.Name = name
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// LoadAllScenarioProfiles loads every profile_*.yaml in the directory.
func LoadAllScenarioProfiles(profilesDir string) (map[string]*ScenarioProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*ScenarioProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile ScenarioProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Name == "" {
			base := filepath.Base(path)
			profile.Name = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		if err := profile.Validate(); err != nil {
			return nil, err
		}
		profiles[profile.Name] = &profile
	}
	return profiles, nil
}
