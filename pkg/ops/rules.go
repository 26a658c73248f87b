package ops

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// CELRuleEngine implements RuleEvaluator with CEL expressions and a
// compiled-program cache. Rule expressions see these variables:
//
//	value    current series point (double)
//	baseline series mean for the metric (double)
//	day      day index of the point (int)
//	metric   metric name (string)
//	tenant   tenant id (string)
type CELRuleEngine struct {
	db       *sql.DB
	env      *cel.Env
	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewCELRuleEngine creates an engine over the tenant tables.
func NewCELRuleEngine(db *sql.DB) (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DoubleType),
		cel.Variable("baseline", cel.DoubleType),
		cel.Variable("day", cel.IntType),
		cel.Variable("metric", cel.StringType),
		cel.Variable("tenant", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("rule engine environment: %w", err)
	}
	return &CELRuleEngine{
		db:       db,
		env:      env,
		prgCache: make(map[string]cel.Program),
	}, nil
}

type storedRule struct {
	name     string
	expr     string
	severity string
}

// Run evaluates every enabled rule of the tenant against its metric series.
// Firings are recorded in alert_state unless dryRun is set.
func (e *CELRuleEngine) Run(ctx context.Context, tenantID string, dryRun bool) (*RuleRunSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("rule run: tenant id is required")
	}

	rules, err := e.loadRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	points, baselines, err := e.loadSeries(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summary := &RuleRunSummary{
		TenantID:       tenantID,
		DryRun:         dryRun,
		RulesEvaluated: len(rules),
		PointsScanned:  len(points),
		Findings:       []Finding{},
	}

	for _, p := range points {
		input := map[string]any{
			"value":    p.value,
			"baseline": baselines[p.metric],
			"day":      p.day,
			"metric":   p.metric,
			"tenant":   tenantID,
		}
		for _, rule := range rules {
			fired, err := e.evaluateExpr(rule.expr, input)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rule.name, err)
			}
			if fired {
				summary.Findings = append(summary.Findings, Finding{
					Rule:     rule.name,
					Severity: rule.severity,
					Metric:   p.metric,
					Day:      p.day,
					Value:    p.value,
					Baseline: baselines[p.metric],
				})
			}
		}
	}

	if !dryRun && len(summary.Findings) > 0 {
		if err := e.recordFindings(ctx, tenantID, summary.Findings); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func (e *CELRuleEngine) loadRules(ctx context.Context, tenantID string) ([]storedRule, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name, expr, severity FROM alert_rules WHERE tenant_id = $1 AND enabled = TRUE ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	var rules []storedRule
	for rows.Next() {
		var r storedRule
		var severity sql.NullString
		if err := rows.Scan(&r.name, &r.expr, &severity); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.severity = severity.String
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

type seriesPoint struct {
	metric string
	day    int
	value  float64
}

// loadSeries returns every point plus the per-metric mean used as baseline.
func (e *CELRuleEngine) loadSeries(ctx context.Context, tenantID string) ([]seriesPoint, map[string]float64, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT metric, day, value FROM metric_events WHERE tenant_id = $1 ORDER BY metric, day`,
		tenantID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	var points []seriesPoint
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for rows.Next() {
		var p seriesPoint
		if err := rows.Scan(&p.metric, &p.day, &p.value); err != nil {
			return nil, nil, fmt.Errorf("scan point: %w", err)
		}
		points = append(points, p)
		sums[p.metric] += p.value
		counts[p.metric]++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	baselines := make(map[string]float64, len(sums))
	for metric, sum := range sums {
		baselines[metric] = sum / float64(counts[metric])
	}
	return points, baselines, nil
}

func (e *CELRuleEngine) recordFindings(ctx context.Context, tenantID string, findings []Finding) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record findings begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, f := range findings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alert_state (tenant_id, rule_name, metric, day, value, fired_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			tenantID, f.Rule, f.Metric, f.Day, f.Value, now,
		); err != nil {
			return fmt.Errorf("record finding %q: %w", f.Rule, err)
		}
	}
	return tx.Commit()
}

func (e *CELRuleEngine) evaluateExpr(expr string, input map[string]any) (bool, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()

	if !hit {
		e.mu.Lock()
		if prg, hit = e.prgCache[expr]; !hit {
			ast, issues := e.env.Compile(expr)
			if issues != nil && issues.Err() != nil {
				e.mu.Unlock()
				return false, fmt.Errorf("compile: %w", issues.Err())
			}
			p, err := e.env.Program(ast,
				cel.InterruptCheckFrequency(100),
				cel.CostLimit(10000),
			)
			if err != nil {
				e.mu.Unlock()
				return false, fmt.Errorf("program: %w", err)
			}
			e.prgCache[expr] = p
			prg = p
		}
		e.mu.Unlock()
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	fired, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not produce a boolean")
	}
	return fired, nil
}
