package audit

import (
	"context"
	"time"

	id "clearance/pkg/domain"
)

// Action names an audited state change.
type Action string

const (
	// ActionOverrideCreated records an administrator granting a compliance override.
	ActionOverrideCreated Action = "admin.override"
	// ActionOverrideRevoked records an administrator revoking a compliance override.
	ActionOverrideRevoked Action = "admin.override_revoke"
)

// EntityType names the kind of record an entry refers to.
type EntityType string

const (
	EntityComplianceOverride EntityType = "compliance_override"
)

// Entry is one append-only audit row. Entries are never updated or deleted
// once written; corrections are new entries.
type Entry struct {
	ID             id.AuditEntryID    `json:"id"`
	Action         Action             `json:"action"`
	EntityType     EntityType         `json:"entity_type"`
	EntityID       string             `json:"entity_id"`
	OrganisationID *id.OrganisationID `json:"organisation_id,omitempty"`
	UserID         *id.UserID         `json:"user_id,omitempty"`
	UserEmail      string             `json:"user_email,omitempty"`
	UserName       string             `json:"user_name,omitempty"`
	OldValues      map[string]any     `json:"old_values,omitempty"`
	AfterValues    map[string]any     `json:"after_values,omitempty"`
	RequestID      string             `json:"request_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Store persists audit entries. Append must be idempotent on Entry.ID so
// retries and dead-letter replays cannot duplicate rows.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error)
}

// UserDirectory resolves display names for acting users.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID id.UserID) (string, error)
}

// Pending is an entry that failed to reach the store and awaits retry.
type Pending struct {
	Entry         Entry     `json:"entry"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error"`
	FirstFailedAt time.Time `json:"first_failed_at"`
}

// DeadLetterSink receives entries that could not be written after all
// retries. It is the monitored out-of-band path for audit gaps.
type DeadLetterSink interface {
	Publish(ctx context.Context, p Pending) error
}
