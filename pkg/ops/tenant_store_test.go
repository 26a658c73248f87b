package ops

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLTenantStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLTenantStore(db), mock
}

func TestSoftReset_DeletesDerivedTablesOnly(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM alert_state").
		WithArgs("t-1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM report_cache").
		WithArgs("t-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	summary, err := store.SoftReset(context.Background(), "t-1", false)
	require.NoError(t, err)
	assert.Equal(t, "soft", summary.Scope)
	assert.False(t, summary.DryRun)
	assert.Equal(t, int64(4), summary.Rows["alert_state"])
	assert.Equal(t, int64(2), summary.Rows["report_cache"])
	assert.NotContains(t, summary.Rows, "metric_events", "soft reset must leave raw events alone")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHardReset_DeletesEverything(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM alert_state").WithArgs("t-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM report_cache").WithArgs("t-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM alert_rules").WithArgs("t-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM metric_events").WithArgs("t-1").WillReturnResult(sqlmock.NewResult(0, 90))
	mock.ExpectCommit()

	summary, err := store.HardReset(context.Background(), "t-1", false)
	require.NoError(t, err)
	assert.Equal(t, "hard", summary.Scope)
	assert.Equal(t, int64(90), summary.Rows["metric_events"])
	assert.Equal(t, int64(3), summary.Rows["alert_rules"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReset_DryRunCountsWithoutDeleting(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM alert_state").
		WithArgs("t-1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM report_cache").
		WithArgs("t-1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	summary, err := store.SoftReset(context.Background(), "t-1", true)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, int64(7), summary.Rows["alert_state"])
	assert.NoError(t, mock.ExpectationsWereMet(), "dry run must not begin a transaction")
}

func TestReset_RollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM alert_state").
		WithArgs("t-1").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.SoftReset(context.Background(), "t-1", false)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReset_RequiresTenantID(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.SoftReset(context.Background(), "", false)
	assert.Error(t, err)
	_, err = store.HardReset(context.Background(), "", true)
	assert.Error(t, err)
}
