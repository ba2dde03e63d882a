package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	model_version TEXT NOT NULL,
	role          TEXT NOT NULL,
	content       TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, model_version, created_at);
`

// SQLStore persists turns in SQLite. Driver "sqlite" is the pure-Go
// modernc.org/sqlite; "sqlite3" is mattn/go-sqlite3 and needs cgo.
type SQLStore struct {
	db       *sql.DB
	maxTurns int
}

// OpenSQL opens (and migrates) the database at path.
func OpenSQL(ctx context.Context, driver, path string, maxTurns int) (*SQLStore, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if driver != "sqlite" && driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite memory backend requires a path")
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{db: db, maxTurns: maxTurns}, nil
}

func (s *SQLStore) Load(ctx context.Context, sessionID, modelVersion string) ([]Turn, error) {
	q := `SELECT id, role, content, created_at FROM turns
		WHERE session_id = ? AND model_version = ?
		ORDER BY created_at, rowid`
	rows, err := s.db.QueryContext(ctx, q, sessionID, modelVersion)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()
	var out []Turn
	for rows.Next() {
		var t Turn
		var at int64
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &at); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.At = time.Unix(0, at)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if s.maxTurns > 0 && len(out) > s.maxTurns {
		out = out[len(out)-s.maxTurns:]
	}
	return out, nil
}

func (s *SQLStore) Append(ctx context.Context, sessionID, modelVersion string, t Turn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, model_version, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, sessionID, modelVersion, t.Role, t.Content, t.At.UnixNano())
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, sessionID, modelVersion string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ? AND model_version = ?`, sessionID, modelVersion)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *SQLStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
