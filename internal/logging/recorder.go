package logging

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// #region recorder
// Recorder fans audit events out to every sink. A failing sink is logged
// and skipped; Record never fails.
type Recorder struct {
	sinks  []Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder over sinks. A nil logger discards sink errors.
func NewRecorder(logger *zap.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sinks: sinks, logger: logger, now: time.Now}
}

// Record stamps ev if needed and writes it to all sinks.
func (r *Recorder) Record(ctx context.Context, ev AuditEvent) {
	if r == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now().UTC()
	}
	for _, s := range r.sinks {
		if err := s.Write(ctx, ev); err != nil {
			r.logger.Warn("audit sink failed",
				zap.String("session_id", ev.SessionID),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
		}
	}
}

// #endregion recorder

// #region zap-sink
// ZapSink writes audit events as structured log lines.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.With(zap.String("component", "audit"))}
}

func (z *ZapSink) Write(_ context.Context, ev AuditEvent) error {
	fields := []zap.Field{
		zap.String("session_id", ev.SessionID),
		zap.String("kind", string(ev.Kind)),
		zap.Time("ts", ev.Timestamp),
		zap.Any("payload", ev.Payload),
	}
	if ev.Metadata != nil {
		fields = append(fields,
			zap.Float64("cost", ev.Metadata.Cost),
			zap.Int64("latency_ms", ev.Metadata.LatencyMs),
			zap.String("model", ev.Metadata.Model))
	}
	z.logger.Info("audit", fields...)
	return nil
}

// #endregion zap-sink
