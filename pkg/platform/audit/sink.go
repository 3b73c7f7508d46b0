package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// LogSink writes dead-lettered entries to the operational log at ERROR level
// with the full payload, so log-based alerting can still reconstruct them.
// It is the fallback when no durable sink is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish logs the pending entry.
func (s *LogSink) Publish(ctx context.Context, p Pending) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.logger.ErrorContext(ctx, "CRITICAL: audit entry dead-lettered",
		"audit_id", p.Entry.ID.String(),
		"action", p.Entry.Action,
		"entity_id", p.Entry.EntityID,
		"attempts", p.Attempts,
		"payload", string(payload),
	)
	return nil
}

// FallbackSink tries each sink in order until one accepts the entry.
type FallbackSink []DeadLetterSink

// Publish implements DeadLetterSink.
func (f FallbackSink) Publish(ctx context.Context, p Pending) error {
	var lastErr error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, p); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no dead-letter sink configured")
	}
	return lastErr
}
