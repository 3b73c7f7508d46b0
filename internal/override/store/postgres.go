package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clearance/internal/compliance"
	"clearance/internal/override"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
	txcontext "clearance/pkg/platform/tx"
)

// PostgresStore persists overrides in compliance_overrides. A trigger rejects
// DELETE; revocation is an UPDATE of is_active.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

const overrideColumns = `
	id, organisation_id, employee_id, override_by, override_by_name, reason,
	blocked_certifications, context_type, context_id, created_at, expires_at,
	is_active, revoked_at, revoked_by`

func (s *PostgresStore) Insert(ctx context.Context, o *override.Override) error {
	// jsonb is bound as text; a []byte parameter would reach the server as bytea.
	blocked, err := json.Marshal(o.BlockedCertifications)
	if err != nil {
		return fmt.Errorf("marshal blocked certifications: %w", err)
	}
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO compliance_overrides (`+overrideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(o.ID),
		uuid.UUID(o.OrganisationID),
		uuid.UUID(o.EmployeeID),
		uuid.UUID(o.OverrideBy),
		o.OverrideByName,
		o.Reason,
		string(blocked),
		string(o.ContextType),
		sql.NullString{String: o.ContextID, Valid: o.ContextID != ""},
		o.CreatedAt,
		o.ExpiresAt,
		o.IsActive,
		o.RevokedAt,
		nullUUID(o.RevokedBy),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert override: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, overrideID id.OverrideID) (*override.Override, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM compliance_overrides WHERE id = $1`,
		uuid.UUID(overrideID),
	)
	o, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find override: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) ListActive(ctx context.Context, employeeID id.EmployeeID, now time.Time) ([]*override.Override, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT `+overrideColumns+`
		FROM compliance_overrides
		WHERE employee_id = $1 AND is_active AND expires_at > $2
		ORDER BY created_at DESC`,
		uuid.UUID(employeeID), now,
	)
	if err != nil {
		return nil, fmt.Errorf("list active overrides: %w", err)
	}
	defer rows.Close()

	var out []*override.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, overrideID id.OverrideID, revokedAt time.Time, revokedBy id.UserID) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE compliance_overrides
		SET is_active = FALSE, revoked_at = $2, revoked_by = $3
		WHERE id = $1 AND is_active`,
		uuid.UUID(overrideID), revokedAt, uuid.UUID(revokedBy),
	)
	if err != nil {
		return fmt.Errorf("deactivate override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate override: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.FindByID(ctx, overrideID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOverride(row scanner) (*override.Override, error) {
	var (
		o                                  override.Override
		oid, orgID, employeeID, overrideBy uuid.UUID
		blocked                            []byte
		contextType                        string
		contextID                          sql.NullString
		revokedAt                          sql.NullTime
		revokedBy                          uuid.NullUUID
	)
	if err := row.Scan(
		&oid, &orgID, &employeeID, &overrideBy, &o.OverrideByName, &o.Reason,
		&blocked, &contextType, &contextID, &o.CreatedAt, &o.ExpiresAt,
		&o.IsActive, &revokedAt, &revokedBy,
	); err != nil {
		return nil, err
	}
	o.ID = id.OverrideID(oid)
	o.OrganisationID = id.OrganisationID(orgID)
	o.EmployeeID = id.EmployeeID(employeeID)
	o.OverrideBy = id.UserID(overrideBy)
	o.ContextType = compliance.ContextType(contextType)
	o.ContextID = contextID.String
	o.CreatedAt = o.CreatedAt.UTC()
	o.ExpiresAt = o.ExpiresAt.UTC()
	if err := json.Unmarshal(blocked, &o.BlockedCertifications); err != nil {
		return nil, fmt.Errorf("unmarshal blocked certifications: %w", err)
	}
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		o.RevokedAt = &t
	}
	if revokedBy.Valid {
		u := id.UserID(revokedBy.UUID)
		o.RevokedBy = &u
	}
	return &o, nil
}

func nullUUID(u *id.UserID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*u), Valid: true}
}
