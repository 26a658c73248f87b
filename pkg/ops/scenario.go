package ops

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/brightsignal/opskit/pkg/config"
)

// SQLScenarioSeeder implements ScenarioSeeder over the tenant tables.
type SQLScenarioSeeder struct {
	db *sql.DB
}

// NewSQLScenarioSeeder wraps an open database handle.
func NewSQLScenarioSeeder(db *sql.DB) *SQLScenarioSeeder {
	return &SQLScenarioSeeder{db: db}
}

// Seed writes the profile's synthetic series and rules for the tenant.
// The series is deterministic for a given profile so repeated seeds (and
// the reports they produce) are reproducible.
func (s *SQLScenarioSeeder) Seed(ctx context.Context, tenantID string, profile *config.ScenarioProfile, dryRun bool) (*SeedSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("seed: tenant id is required")
	}
	if profile == nil {
		return nil, fmt.Errorf("seed: profile is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	series := buildSeries(profile)
	summary := &SeedSummary{
		TenantID:  tenantID,
		Profile:   profile.Name,
		Metric:    profile.Metric,
		DryRun:    dryRun,
		Events:    len(series),
		Anomalies: len(profile.Anomalies),
		Rules:     len(profile.Rules),
	}
	if dryRun {
		return summary, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Re-seeding replaces the previous series for this metric.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM metric_events WHERE tenant_id = $1 AND metric = $2`,
		tenantID, profile.Metric,
	); err != nil {
		return nil, fmt.Errorf("seed clear events: %w", err)
	}

	for day, value := range series {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO metric_events (tenant_id, metric, day, value) VALUES ($1, $2, $3, $4)`,
			tenantID, profile.Metric, day, value,
		); err != nil {
			return nil, fmt.Errorf("seed event day %d: %w", day, err)
		}
	}

	for _, rule := range profile.Rules {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM alert_rules WHERE tenant_id = $1 AND name = $2`,
			tenantID, rule.Name,
		); err != nil {
			return nil, fmt.Errorf("seed clear rule %q: %w", rule.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alert_rules (tenant_id, name, expr, severity, enabled) VALUES ($1, $2, $3, $4, TRUE)`,
			tenantID, rule.Name, rule.Expr, rule.Severity,
		); err != nil {
			return nil, fmt.Errorf("seed rule %q: %w", rule.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("seed commit: %w", err)
	}
	return summary, nil
}

// buildSeries renders the profile into per-day values: a smooth jittered
// baseline with anomaly days multiplied on top.
func buildSeries(p *config.ScenarioProfile) []float64 {
	series := make([]float64, p.Days)
	for day := range series {
		jitter := p.Baseline.Jitter * math.Sin(float64(day))
		series[day] = round2(p.Baseline.Mean * (1 + jitter))
	}
	for _, a := range p.Anomalies {
		series[a.Day] = round2(series[a.Day] * a.Multiplier)
	}
	return series
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
