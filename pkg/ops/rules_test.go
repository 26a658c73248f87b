package ops

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockEngine(t *testing.T) (*CELRuleEngine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	engine, err := NewCELRuleEngine(db)
	require.NoError(t, err)
	return engine, mock
}

func expectRules(mock sqlmock.Sqlmock, rules ...[3]string) {
	rows := sqlmock.NewRows([]string{"name", "expr", "severity"})
	for _, r := range rules {
		rows.AddRow(r[0], r[1], r[2])
	}
	mock.ExpectQuery("SELECT name, expr, severity FROM alert_rules").
		WithArgs("t-1").WillReturnRows(rows)
}

func expectSeries(mock sqlmock.Sqlmock, points ...[3]any) {
	rows := sqlmock.NewRows([]string{"metric", "day", "value"})
	for _, p := range points {
		rows.AddRow(p[0], p[1], p[2])
	}
	mock.ExpectQuery("SELECT metric, day, value FROM metric_events").
		WithArgs("t-1").WillReturnRows(rows)
}

func TestRuleRun_FiresOnAnomaly(t *testing.T) {
	engine, mock := newMockEngine(t)

	expectRules(mock, [3]string{"pageview-spike", "value > baseline * 3.0", "critical"})
	// Baseline = (100+100+100+1000)/4 = 325; only day 3's 1000 clears
	// 3x (975). A value of exactly 3x would not fire: the comparison is
	// strict.
	expectSeries(mock,
		[3]any{"pageviews", 0, 100.0},
		[3]any{"pageviews", 1, 100.0},
		[3]any{"pageviews", 2, 100.0},
		[3]any{"pageviews", 3, 1000.0},
	)

	summary, err := engine.Run(context.Background(), "t-1", true)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RulesEvaluated)
	assert.Equal(t, 4, summary.PointsScanned)
	require.Len(t, summary.Findings, 1)
	f := summary.Findings[0]
	assert.Equal(t, "pageview-spike", f.Rule)
	assert.Equal(t, "critical", f.Severity)
	assert.Equal(t, 3, f.Day)
	assert.Equal(t, 1000.0, f.Value)
	assert.Equal(t, 325.0, f.Baseline)
	assert.NoError(t, mock.ExpectationsWereMet(), "dry run must not write alert_state")
}

// TestRuleRun_ExactThresholdDoesNotFire: baseline (100+100+100+900)/4 = 300,
// so day 3's 900 is exactly 3x and a strict > must not fire.
func TestRuleRun_ExactThresholdDoesNotFire(t *testing.T) {
	engine, mock := newMockEngine(t)

	expectRules(mock, [3]string{"pageview-spike", "value > baseline * 3.0", "critical"})
	expectSeries(mock,
		[3]any{"pageviews", 0, 100.0},
		[3]any{"pageviews", 1, 100.0},
		[3]any{"pageviews", 2, 100.0},
		[3]any{"pageviews", 3, 900.0},
	)

	summary, err := engine.Run(context.Background(), "t-1", true)
	require.NoError(t, err)
	assert.Empty(t, summary.Findings)
}

func TestRuleRun_RecordsFindings(t *testing.T) {
	engine, mock := newMockEngine(t)

	expectRules(mock, [3]string{"always", "value >= 0.0", ""})
	expectSeries(mock, [3]any{"sessions", 0, 42.0})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO alert_state").
		WithArgs("t-1", "always", "sessions", 0, 42.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	summary, err := engine.Run(context.Background(), "t-1", false)
	require.NoError(t, err)
	assert.Len(t, summary.Findings, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRun_NoRulesNoFindings(t *testing.T) {
	engine, mock := newMockEngine(t)

	expectRules(mock)
	expectSeries(mock, [3]any{"pageviews", 0, 100.0})

	summary, err := engine.Run(context.Background(), "t-1", false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.RulesEvaluated)
	assert.Empty(t, summary.Findings)
}

func TestRuleRun_BadExpressionFails(t *testing.T) {
	engine, mock := newMockEngine(t)

	expectRules(mock, [3]string{"broken", "value +", ""})
	expectSeries(mock, [3]any{"pageviews", 0, 100.0})

	_, err := engine.Run(context.Background(), "t-1", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRuleRun_NonBooleanExpressionFails(t *testing.T) {
	engine, mock := newMockEngine(t)

	expectRules(mock, [3]string{"numeric", "value * 2.0", ""})
	expectSeries(mock, [3]any{"pageviews", 0, 100.0})

	_, err := engine.Run(context.Background(), "t-1", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boolean")
}

func TestRuleRun_RequiresTenantID(t *testing.T) {
	engine, _ := newMockEngine(t)
	_, err := engine.Run(context.Background(), "", true)
	assert.Error(t, err)
}
