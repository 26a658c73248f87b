package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spikeProfile = `
name: traffic-spike
description: sudden 5x spike on day 20
metric: pageviews
days: 30
baseline:
  mean: 1200
  jitter: 0.1
anomalies:
  - day: 20
    multiplier: 5.0
rules:
  - name: pageview-spike
    expr: "value > baseline * 3.0"
    severity: critical
`

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, "profile_"+name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadScenarioProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "spike", spikeProfile)

	p, err := LoadScenarioProfile(dir, "spike")
	require.NoError(t, err)
	assert.Equal(t, "traffic-spike", p.Name)
	assert.Equal(t, "pageviews", p.Metric)
	assert.Equal(t, 30, p.Days)
	assert.Equal(t, 1200.0, p.Baseline.Mean)
	require.Len(t, p.Anomalies, 1)
	assert.Equal(t, 20, p.Anomalies[0].Day)
	require.Len(t, p.Rules, 1)
	assert.Equal(t, "value > baseline * 3.0", p.Rules[0].Expr)
}

func TestLoadScenarioProfile_Missing(t *testing.T) {
	_, err := LoadScenarioProfile(t.TempDir(), "nope")
	assert.Error(t, err)
}

func TestLoadScenarioProfile_NameFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "flat", "metric: sessions\ndays: 7\nbaseline:\n  mean: 100\n")

	p, err := LoadScenarioProfile(dir, "flat")
	require.NoError(t, err)
	assert.Equal(t, "flat", p.Name)
}

func TestScenarioProfile_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*ScenarioProfile)
		wantErr string
	}{
		{"missing metric", func(p *ScenarioProfile) { p.Metric = "" }, "metric is required"},
		{"zero days", func(p *ScenarioProfile) { p.Days = 0 }, "days must be positive"},
		{"zero baseline", func(p *ScenarioProfile) { p.Baseline.Mean = 0 }, "baseline.mean"},
		{"anomaly out of range", func(p *ScenarioProfile) { p.Anomalies = []Anomaly{{Day: 99, Multiplier: 2}} }, "outside series"},
		{"anomaly zero multiplier", func(p *ScenarioProfile) { p.Anomalies = []Anomaly{{Day: 1, Multiplier: 0}} }, "multiplier"},
		{"rule without expr", func(p *ScenarioProfile) { p.Rules = []RuleConfig{{Name: "x"}} }, "rule name and expr"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &ScenarioProfile{
				Name: "t", Metric: "m", Days: 10,
				Baseline: BaselineConfig{Mean: 100},
			}
			tc.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadAllScenarioProfiles(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "spike", spikeProfile)
	writeProfile(t, dir, "flat", "metric: sessions\ndays: 7\nbaseline:\n  mean: 100\n")

	profiles, err := LoadAllScenarioProfiles(dir)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Contains(t, profiles, "traffic-spike")
	assert.Contains(t, profiles, "flat")
}
