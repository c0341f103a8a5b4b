package logging

import (
	"context"
	"time"
)

// #region event-kind
// EventKind tags one step of the reasoning trail.
type EventKind string

const (
	KindThought        EventKind = "thought"
	KindAction         EventKind = "action"
	KindObservation    EventKind = "observation"
	KindReflection     EventKind = "reflection"
	KindError          EventKind = "error"
	KindRecommendation EventKind = "recommendation"
)

// #endregion event-kind

// #region audit-event
// AuditEvent is a single row in the audit_log table.
type AuditEvent struct {
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      EventKind      `json:"kind"`
	Payload   any            `json:"payload,omitempty"`
	Metadata  *EventMetadata `json:"metadata,omitempty"`
}

// EventMetadata carries reasoner accounting for events backed by a call.
type EventMetadata struct {
	Cost      float64 `json:"cost"`
	LatencyMs int64   `json:"latency_ms"`
	Model     string  `json:"model,omitempty"`
}

// #endregion audit-event

// #region sink
// Sink stores audit events.
type Sink interface {
	Write(ctx context.Context, ev AuditEvent) error
}

// #endregion sink
