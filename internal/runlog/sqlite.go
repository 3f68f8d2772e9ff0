package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteLog implements Log using modernc.org/sqlite.
type SQLiteLog struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS harvest_sessions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	collector     TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	started_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at  DATETIME,
	announcements INTEGER NOT NULL DEFAULT 0,
	full_content  INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_collector ON harvest_sessions(collector);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON harvest_sessions(started_at);
`

// NewSQLite opens (or creates) a SQLite run log at the given path,
// configures WAL mode, and applies the schema.
func NewSQLite(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "runlog: migrate")
	}
	return &SQLiteLog{db: db}, nil
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func (l *SQLiteLog) Start(ctx context.Context, collector, sessionID string) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO harvest_sessions (collector, session_id, status, started_at) VALUES (?, ?, ?, ?)`,
		collector, sessionID, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start session for %s", collector)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "runlog: session id")
	}
	return id, nil
}

func (l *SQLiteLog) Complete(ctx context.Context, id int64, announcements, fullContent, skipped int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE harvest_sessions
		 SET status = ?, completed_at = ?, announcements = ?, full_content = ?, skipped = ?
		 WHERE id = ?`,
		StatusComplete, time.Now().UTC(), announcements, fullContent, skipped, id,
	)
	return eris.Wrapf(err, "runlog: complete session %d", id)
}

func (l *SQLiteLog) Fail(ctx context.Context, id int64, errMsg string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE harvest_sessions SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		StatusFailed, time.Now().UTC(), errMsg, id,
	)
	return eris.Wrapf(err, "runlog: fail session %d", id)
}

func (l *SQLiteLog) LastSuccess(ctx context.Context, collector string) (*time.Time, error) {
	var t time.Time
	err := l.db.QueryRowContext(ctx,
		`SELECT started_at FROM harvest_sessions
		 WHERE collector = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		collector, StatusComplete,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last success for %s", collector)
	}
	return &t, nil
}

func (l *SQLiteLog) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, collector, session_id, status, started_at, completed_at,
		        announcements, full_content, skipped, error
		 FROM harvest_sessions ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list sessions")
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var completed sql.NullTime
		if err := rows.Scan(&s.ID, &s.Collector, &s.SessionID, &s.Status, &s.StartedAt,
			&completed, &s.Announcements, &s.FullContent, &s.Skipped, &s.Error); err != nil {
			return nil, eris.Wrap(err, "runlog: scan session")
		}
		if completed.Valid {
			s.CompletedAt = &completed.Time
		}
		sessions = append(sessions, s)
	}
	return sessions, eris.Wrap(rows.Err(), "runlog: iterate sessions")
}
