package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"clearance/internal/platform/kafka/consumer"
	audit "clearance/pkg/platform/audit"

	"github.com/google/uuid"
)

// ReplayHandler re-appends dead-lettered audit entries to the primary store.
// Appends are idempotent on entry id, so replaying a topic twice is safe.
type ReplayHandler struct {
	store  audit.Store
	logger *slog.Logger

	replayed int
	skipped  int
}

// NewReplayHandler creates a dead-letter replay handler.
func NewReplayHandler(store audit.Store, logger *slog.Logger) *ReplayHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayHandler{
		store:  store,
		logger: logger,
	}
}

// Handle processes one dead-lettered entry.
func (h *ReplayHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	entryID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.ErrorContext(ctx, "CRITICAL: failed to parse dead-letter key",
			"key", string(msg.Key),
			"offset", msg.Offset,
			"error", err,
		)
		// Commit anyway; a malformed record must not block the partition.
		h.skipped++
		return nil
	}

	var pending audit.Pending
	if err := json.Unmarshal(msg.Value, &pending); err != nil {
		h.logger.ErrorContext(ctx, "CRITICAL: failed to unmarshal dead-letter payload",
			"audit_id", entryID.String(),
			"error", err,
		)
		h.skipped++
		return nil
	}

	entry := pending.Entry
	if entry.ID.IsNil() || uuid.UUID(entry.ID) != entryID {
		h.logger.ErrorContext(ctx, "CRITICAL: dead-letter key does not match entry id",
			"key", entryID.String(),
			"audit_id", entry.ID.String(),
		)
		h.skipped++
		return nil
	}
	if entry.Action == "" || entry.EntityID == "" {
		h.logger.ErrorContext(ctx, "CRITICAL: dead-letter entry missing action or entity",
			"audit_id", entry.ID.String(),
		)
		h.skipped++
		return nil
	}

	if err := h.store.Append(ctx, entry); err != nil {
		h.logger.ErrorContext(ctx, "failed to replay audit entry",
			"audit_id", entry.ID.String(),
			"action", entry.Action,
			"error", err,
		)
		return fmt.Errorf("replay audit entry: %w", err)
	}

	h.replayed++
	h.logger.InfoContext(ctx, "replayed audit entry",
		"audit_id", entry.ID.String(),
		"action", entry.Action,
		"entity_id", entry.EntityID,
		"attempts", pending.Attempts,
	)
	return nil
}

// Stats returns how many entries were replayed and skipped.
func (h *ReplayHandler) Stats() (replayed, skipped int) {
	return h.replayed, h.skipped
}
