package runlog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the Postgres log needs. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresLog implements Log on a pgx connection pool.
type PostgresLog struct {
	pool Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS harvest_sessions (
	id            BIGSERIAL PRIMARY KEY,
	collector     TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ,
	announcements INTEGER NOT NULL DEFAULT 0,
	full_content  INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_collector ON harvest_sessions(collector);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON harvest_sessions(started_at);
`

// NewPostgres connects a pool to the given database and applies the schema.
func NewPostgres(ctx context.Context, connString string) (*PostgresLog, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "runlog: ping")
	}
	l := &PostgresLog{pool: pool}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "runlog: migrate")
	}
	return l, nil
}

// NewPostgresWithPool wraps an existing pool without migrating. Used by
// tests with a mock pool.
func NewPostgresWithPool(pool Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

func (l *PostgresLog) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresLog) Start(ctx context.Context, collector, sessionID string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO harvest_sessions (collector, session_id, status, started_at)
		 VALUES ($1, $2, $3, now()) RETURNING id`,
		collector, sessionID, StatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start session for %s", collector)
	}
	return id, nil
}

func (l *PostgresLog) Complete(ctx context.Context, id int64, announcements, fullContent, skipped int) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE harvest_sessions
		 SET status = $1, completed_at = now(), announcements = $2, full_content = $3, skipped = $4
		 WHERE id = $5`,
		StatusComplete, announcements, fullContent, skipped, id,
	)
	return eris.Wrapf(err, "runlog: complete session %d", id)
}

func (l *PostgresLog) Fail(ctx context.Context, id int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE harvest_sessions SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		StatusFailed, errMsg, id,
	)
	return eris.Wrapf(err, "runlog: fail session %d", id)
}

func (l *PostgresLog) LastSuccess(ctx context.Context, collector string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM harvest_sessions
		 WHERE collector = $1 AND status = $2
		 ORDER BY started_at DESC LIMIT 1`,
		collector, StatusComplete,
	).Scan(&t)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runlog: last success for %s", collector)
	}
	return &t, nil
}

func (l *PostgresLog) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, collector, session_id, status, started_at, completed_at,
		        announcements, full_content, skipped, error
		 FROM harvest_sessions ORDER BY started_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list sessions")
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var completed *time.Time
		if err := rows.Scan(&s.ID, &s.Collector, &s.SessionID, &s.Status, &s.StartedAt,
			&completed, &s.Announcements, &s.FullContent, &s.Skipped, &s.Error); err != nil {
			return nil, eris.Wrap(err, "runlog: scan session")
		}
		s.CompletedAt = completed
		sessions = append(sessions, s)
	}
	return sessions, eris.Wrap(rows.Err(), "runlog: iterate sessions")
}
