package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "clearance/pkg/domain"
	audit "clearance/pkg/platform/audit"
	txcontext "clearance/pkg/platform/tx"
)

// Store implements audit.Store on the audit_logs table. The table rejects
// UPDATE and DELETE through triggers, so this type only ever inserts.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts the entry. Idempotent via ON CONFLICT DO NOTHING so retries
// and dead-letter replays never duplicate a row.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	oldValues, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	afterValues, err := marshalValues(entry.AfterValues)
	if err != nil {
		return fmt.Errorf("marshal after values: %w", err)
	}

	var orgID, userID *uuid.UUID
	if entry.OrganisationID != nil {
		u := uuid.UUID(*entry.OrganisationID)
		orgID = &u
	}
	if entry.UserID != nil {
		u := uuid.UUID(*entry.UserID)
		userID = &u
	}

	query := `
		INSERT INTO audit_logs (
			id, action, entity_type, entity_id, organisation_id,
			user_id, user_email, user_name, old_values, after_values,
			request_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		string(entry.Action),
		string(entry.EntityType),
		entry.EntityID,
		orgID,
		userID,
		nullString(entry.UserEmail),
		nullString(entry.UserName),
		oldValues,
		afterValues,
		nullString(entry.RequestID),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListByEntity returns the entity's audit trail, oldest first.
func (s *Store) ListByEntity(ctx context.Context, entityType audit.EntityType, entityID string) ([]audit.Entry, error) {
	query := `
		SELECT id, action, entity_type, entity_id, organisation_id,
			   user_id, user_email, user_name, old_values, after_values,
			   request_id, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry                  audit.Entry
			entryID                uuid.UUID
			action, etype          string
			orgID, userID          uuid.NullUUID
			email, name, requestID sql.NullString
			oldValues, afterValues []byte
		)
		if err := rows.Scan(
			&entryID, &action, &etype, &entry.EntityID, &orgID,
			&userID, &email, &name, &oldValues, &afterValues,
			&requestID, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entry.ID = id.AuditEntryID(entryID)
		entry.Action = audit.Action(action)
		entry.EntityType = audit.EntityType(etype)
		if orgID.Valid {
			o := id.OrganisationID(orgID.UUID)
			entry.OrganisationID = &o
		}
		if userID.Valid {
			u := id.UserID(userID.UUID)
			entry.UserID = &u
		}
		entry.UserEmail = email.String
		entry.UserName = name.String
		entry.RequestID = requestID.String
		if entry.OldValues, err = unmarshalValues(oldValues); err != nil {
			return nil, err
		}
		if entry.AfterValues, err = unmarshalValues(afterValues); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return entries, nil
}

// marshalValues encodes a value map for a jsonb column, bound as text like
// the override store's blocked_certifications.
func marshalValues(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func unmarshalValues(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal audit values: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
