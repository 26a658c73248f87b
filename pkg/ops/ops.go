// Package ops holds the business operations behind the toolkit commands:
// tenant resets, alert-scenario seeding and alert-rule evaluation. Each
// operation sits behind a narrow interface so the executor and the HTTP
// surface never see database or profile details.
package ops

import (
	"context"

	"github.com/brightsignal/opskit/pkg/config"
)

// ResetSummary reports what a reset touched (or would touch, on dry run).
type ResetSummary struct {
	TenantID string           `json:"tenantId"`
	Scope    string           `json:"scope"`
	DryRun   bool             `json:"dryRun"`
	Rows     map[string]int64 `json:"rows"`
}

// TenantResetter clears tenant data. SoftReset removes derived state only
// (alert state, cached reports); HardReset removes everything the tenant
// owns, including raw metric events and alert rules.
type TenantResetter interface {
	SoftReset(ctx context.Context, tenantID string, dryRun bool) (*ResetSummary, error)
	HardReset(ctx context.Context, tenantID string, dryRun bool) (*ResetSummary, error)
}

// SeedSummary reports what a scenario seed produced.
type SeedSummary struct {
	TenantID  string `json:"tenantId"`
	Profile   string `json:"profile"`
	Metric    string `json:"metric"`
	DryRun    bool   `json:"dryRun"`
	Events    int    `json:"events"`
	Anomalies int    `json:"anomalies"`
	Rules     int    `json:"rules"`
}

// ScenarioSeeder populates a tenant with a synthetic metric series and the
// alert rules of a scenario profile. Re-seeding the same profile replaces
// the previous scenario data for that metric.
type ScenarioSeeder interface {
	Seed(ctx context.Context, tenantID string, profile *config.ScenarioProfile, dryRun bool) (*SeedSummary, error)
}

// Finding is one rule firing against one series point.
type Finding struct {
	Rule     string  `json:"rule"`
	Severity string  `json:"severity,omitempty"`
	Metric   string  `json:"metric"`
	Day      int     `json:"day"`
	Value    float64 `json:"value"`
	Baseline float64 `json:"baseline"`
}

// RuleRunSummary reports one evaluation pass over a tenant's data.
type RuleRunSummary struct {
	TenantID       string    `json:"tenantId"`
	DryRun         bool      `json:"dryRun"`
	RulesEvaluated int       `json:"rulesEvaluated"`
	PointsScanned  int       `json:"pointsScanned"`
	Findings       []Finding `json:"findings"`
}

// RuleEvaluator runs a tenant's enabled alert rules over its metric data.
// A non-dry run records firings in the alert state table.
type RuleEvaluator interface {
	Run(ctx context.Context, tenantID string, dryRun bool) (*RuleRunSummary, error)
}
