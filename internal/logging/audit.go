package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region sqlite-sink
// SQLiteSink writes audit events to the audit_log table created by the
// session store.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(db *sql.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

// Write inserts one audit row.
func (s *SQLiteSink) Write(ctx context.Context, ev AuditEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	var payload string
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payload = string(b)
	}

	var cost, latency, model interface{}
	if ev.Metadata != nil {
		cost = ev.Metadata.Cost
		latency = ev.Metadata.LatencyMs
		model = nullIfEmpty(ev.Metadata.Model)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (session_id, kind, payload_json, cost, latency_ms, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.SessionID,
		string(ev.Kind),
		nullIfEmpty(payload),
		cost,
		latency,
		model,
		ev.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log audit event: %w", err)
	}
	return nil
}

// #endregion sqlite-sink

// #region query
// AuditRow is a stored audit event with its payload left as raw JSON.
type AuditRow struct {
	ID        int64
	SessionID string
	Kind      EventKind
	Payload   json.RawMessage
	Cost      float64
	LatencyMs int64
	Model     string
	CreatedAt time.Time
}

// QueryAudit returns a session's audit trail in insertion order. limit <= 0
// returns everything.
func QueryAudit(ctx context.Context, db *sql.DB, sessionID string, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, session_id, kind, payload_json, cost, latency_ms, model, created_at
		 FROM audit_log WHERE session_id = ? ORDER BY id LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var (
			r         AuditRow
			kind      string
			payload   sql.NullString
			cost      sql.NullFloat64
			latency   sql.NullInt64
			model     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &kind, &payload, &cost, &latency, &model, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		r.Kind = EventKind(kind)
		if payload.Valid {
			r.Payload = json.RawMessage(payload.String)
		}
		r.Cost = cost.Float64
		r.LatencyMs = latency.Int64
		r.Model = model.String
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion query

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
