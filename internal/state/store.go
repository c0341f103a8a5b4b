package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	_ "modernc.org/sqlite"
)

// #region schema
// timeLayout is fixed-width so updated_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id      TEXT PRIMARY KEY,
	state_json      TEXT NOT NULL,
	next_action     TEXT NOT NULL,
	iteration_count INTEGER NOT NULL,
	top_entity      TEXT,
	top_confidence  REAL,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	kind          TEXT NOT NULL,
	payload_json  TEXT,
	cost          REAL,
	latency_ms    INTEGER,
	model         TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_id, id);
`

// #endregion schema

// #region store-struct
// SQLiteStore persists sessions in SQLite. The same database carries the
// audit_log table written by the logging package.
type SQLiteStore struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewSQLiteStore opens a SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region get
// Get loads the state for sessionID.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (AgentState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return AgentState{}, ErrSessionNotFound
	}
	if err != nil {
		return AgentState{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var st AgentState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return AgentState{}, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return st, nil
}

// #endregion get

// #region put
// Put upserts the state, keeping the original created_at.
func (s *SQLiteStore) Put(ctx context.Context, st AgentState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	sum := Summarize(st)
	now := time.Now().UTC().Format(timeLayout)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, state_json, next_action, iteration_count, top_entity, top_confidence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			state_json = excluded.state_json,
			next_action = excluded.next_action,
			iteration_count = excluded.iteration_count,
			top_entity = excluded.top_entity,
			top_confidence = excluded.top_confidence,
			updated_at = excluded.updated_at`,
		st.SessionID, string(raw), string(sum.NextAction), sum.IterationCount,
		nullIfEmpty(string(sum.TopEntity)), sum.TopConfidence, now, now,
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", st.SessionID, err)
	}
	return nil
}

// #endregion put

// #region delete
// Delete removes a session. Deleting an unknown id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// #endregion delete

// #region list
// List returns the most recently updated sessions.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, next_action, iteration_count, top_entity, top_confidence, updated_at
		 FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var next string
		var top sql.NullString
		var conf sql.NullFloat64
		var updated string
		if err := rows.Scan(&sum.SessionID, &next, &sum.IterationCount, &top, &conf, &updated); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.NextAction = NextAction(next)
		if top.Valid {
			sum.TopEntity = knowledge.EntityID(top.String)
		}
		sum.TopConfidence = conf.Float64
		sum.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// #endregion list

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
