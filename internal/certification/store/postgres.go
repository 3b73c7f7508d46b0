package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clearance/internal/certification"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
	txcontext "clearance/pkg/platform/tx"
)

// PostgresStore reads employees, certifications, requirements and user names.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindEmployee(ctx context.Context, employeeID id.EmployeeID) (*certification.Employee, error) {
	var (
		orgID uuid.UUID
		name  string
	)
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT organisation_id, full_name FROM employees WHERE id = $1`,
		uuid.UUID(employeeID),
	).Scan(&orgID, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &certification.Employee{
		ID:             employeeID,
		OrganisationID: id.OrganisationID(orgID),
		FullName:       name,
	}, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, employeeID id.EmployeeID, types []string) ([]certification.Record, error) {
	query := `
		SELECT id, certification_type, status, expiry_date, updated_at
		FROM certifications
		WHERE employee_id = $1`
	args := []any{uuid.UUID(employeeID)}
	if len(types) > 0 {
		query += ` AND certification_type = ANY($2)`
		args = append(args, pq.Array(types))
	}
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	defer rows.Close()

	var out []certification.Record
	for rows.Next() {
		var (
			r      certification.Record
			status string
			expiry sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Type, &status, &expiry, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan certification: %w", err)
		}
		r.EmployeeID = employeeID
		r.Status = certification.Status(status)
		if expiry.Valid {
			t := expiry.Time.UTC()
			r.ExpiryDate = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListRequirements(ctx context.Context, orgID id.OrganisationID) ([]string, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT certification_type
		FROM certification_requirements
		WHERE organisation_id = $1
		ORDER BY certification_type`,
		uuid.UUID(orgID),
	)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}
	return out, nil
}

// DisplayName implements audit.UserDirectory.
func (s *PostgresStore) DisplayName(ctx context.Context, userID id.UserID) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT full_name FROM users WHERE id = $1`, uuid.UUID(userID),
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find user name: %w", err)
	}
	return name, nil
}

// Seeding helpers used by integration tests and the dev seed command.

func (s *PostgresStore) InsertEmployee(ctx context.Context, e certification.Employee) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employees (id, organisation_id, full_name) VALUES ($1, $2, $3)`,
		uuid.UUID(e.ID), uuid.UUID(e.OrganisationID), e.FullName,
	)
	return err
}

func (s *PostgresStore) InsertRecord(ctx context.Context, r certification.Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO certifications (id, employee_id, certification_type, status, expiry_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, uuid.UUID(r.EmployeeID), r.Type, string(r.Status), r.ExpiryDate, r.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) InsertRequirement(ctx context.Context, orgID id.OrganisationID, certType string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO certification_requirements (organisation_id, certification_type) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		uuid.UUID(orgID), certType,
	)
	return err
}

func (s *PostgresStore) InsertUser(ctx context.Context, userID id.UserID, orgID id.OrganisationID, name, email, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, organisation_id, full_name, email, role) VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(userID), uuid.UUID(orgID), name, email, role,
	)
	return err
}
