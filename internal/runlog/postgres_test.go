package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockLog(t *testing.T) (pgxmock.PgxPoolIface, *PostgresLog) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresWithPool(mock)
}

func TestPostgresStart(t *testing.T) {
	mock, l := newMockLog(t)

	mock.ExpectQuery("INSERT INTO harvest_sessions").
		WithArgs("fda", "session-1", StatusRunning).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := l.Start(context.Background(), "fda", "session-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresComplete(t *testing.T) {
	mock, l := newMockLog(t)

	mock.ExpectExec("UPDATE harvest_sessions").
		WithArgs(StatusComplete, 5, 4, 2, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, l.Complete(context.Background(), 7, 5, 4, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFail(t *testing.T) {
	mock, l := newMockLog(t)

	mock.ExpectExec("UPDATE harvest_sessions").
		WithArgs(StatusFailed, "listing fetch failed", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, l.Fail(context.Background(), 7, "listing fetch failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLastSuccess(t *testing.T) {
	mock, l := newMockLog(t)

	started := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT started_at FROM harvest_sessions").
		WithArgs("fda", StatusComplete).
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(started))

	ts, err := l.LastSuccess(context.Background(), "fda")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, started, *ts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLastSuccessNoRows(t *testing.T) {
	mock, l := newMockLog(t)

	mock.ExpectQuery("SELECT started_at FROM harvest_sessions").
		WithArgs("fda", StatusComplete).
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}))

	ts, err := l.LastSuccess(context.Background(), "fda")
	require.NoError(t, err)
	assert.Nil(t, ts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList(t *testing.T) {
	mock, l := newMockLog(t)

	now := time.Now().UTC()
	completed := now.Add(time.Minute)
	rows := pgxmock.NewRows([]string{
		"id", "collector", "session_id", "status", "started_at", "completed_at",
		"announcements", "full_content", "skipped", "error",
	}).
		AddRow(int64(2), "fda", "s2", StatusComplete, now, &completed, 3, 2, 1, "").
		AddRow(int64(1), "cdc", "s1", StatusFailed, now.Add(-time.Hour), (*time.Time)(nil), 0, 0, 0, "boom")

	mock.ExpectQuery("SELECT id, collector, session_id").
		WithArgs(10).
		WillReturnRows(rows)

	sessions, err := l.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "fda", sessions[0].Collector)
	require.NotNil(t, sessions[0].CompletedAt)
	assert.Nil(t, sessions[1].CompletedAt)
	assert.Equal(t, "boom", sessions[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
