package ops

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLTenantStore implements TenantResetter over database/sql.
// It supports both Postgres and SQLite via standard drivers.
type SQLTenantStore struct {
	db *sql.DB
}

// NewSQLTenantStore wraps an open database handle.
func NewSQLTenantStore(db *sql.DB) *SQLTenantStore {
	return &SQLTenantStore{db: db}
}

const tenantSchema = `
CREATE TABLE IF NOT EXISTS metric_events (
	tenant_id TEXT NOT NULL,
	metric TEXT NOT NULL,
	day INTEGER NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (tenant_id, metric, day)
);
CREATE TABLE IF NOT EXISTS alert_rules (
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	expr TEXT NOT NULL,
	severity TEXT,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (tenant_id, name)
);
CREATE TABLE IF NOT EXISTS alert_state (
	tenant_id TEXT NOT NULL,
	rule_name TEXT NOT NULL,
	metric TEXT NOT NULL,
	day INTEGER NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	fired_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS report_cache (
	tenant_id TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	payload TEXT,
	PRIMARY KEY (tenant_id, cache_key)
);
`

// Init creates the tenant tables if they do not exist.
func (s *SQLTenantStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, tenantSchema)
	return err
}

// softResetTables hold derived state only; raw events and rules survive.
var softResetTables = []string{"alert_state", "report_cache"}

// hardResetTables is everything the tenant owns. Order matters only for
// readability; there are no FK constraints between them.
var hardResetTables = []string{"alert_state", "report_cache", "alert_rules", "metric_events"}

// SoftReset clears derived tenant state.
func (s *SQLTenantStore) SoftReset(ctx context.Context, tenantID string, dryRun bool) (*ResetSummary, error) {
	return s.reset(ctx, tenantID, "soft", softResetTables, dryRun)
}

// HardReset clears all tenant data. Callers are expected to have passed the
// destructive confirmation flow; this layer does not re-check it.
func (s *SQLTenantStore) HardReset(ctx context.Context, tenantID string, dryRun bool) (*ResetSummary, error) {
	return s.reset(ctx, tenantID, "hard", hardResetTables, dryRun)
}

func (s *SQLTenantStore) reset(ctx context.Context, tenantID, scope string, tables []string, dryRun bool) (*ResetSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("reset: tenant id is required")
	}

	summary := &ResetSummary{
		TenantID: tenantID,
		Scope:    scope,
		DryRun:   dryRun,
		Rows:     make(map[string]int64, len(tables)),
	}

	if dryRun {
		for _, table := range tables {
			var count int64
			query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = $1`, table)
			if err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&count); err != nil {
				return nil, fmt.Errorf("count %s: %w", table, err)
			}
			summary.Rows[table] = count
		}
		return summary, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reset begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range tables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1`, table)
		res, err := tx.ExecContext(ctx, query, tenantID)
		if err != nil {
			return nil, fmt.Errorf("delete from %s: %w", table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected %s: %w", table, err)
		}
		summary.Rows[table] = affected
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("reset commit: %w", err)
	}
	return summary, nil
}
