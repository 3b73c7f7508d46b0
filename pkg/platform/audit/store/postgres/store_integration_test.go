//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "clearance/pkg/domain"
	audit "clearance/pkg/platform/audit"
	"clearance/pkg/platform/audit/store/postgres"
	"clearance/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	ctx      context.Context
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "audit_logs"))
}

func (s *AuditStoreSuite) entry(entityID string, at time.Time) audit.Entry {
	org := id.OrganisationID(uuid.New())
	user := id.UserID(uuid.New())
	return audit.Entry{
		ID:             id.NewAuditEntryID(),
		Action:         audit.ActionOverrideCreated,
		EntityType:     audit.EntityComplianceOverride,
		EntityID:       entityID,
		OrganisationID: &org,
		UserID:         &user,
		UserEmail:      "ops@example.com",
		UserName:       "Ops Lead",
		AfterValues:    map[string]any{"reason": "cover shift", "is_active": true},
		RequestID:      "req-1",
		CreatedAt:      at.UTC().Truncate(time.Microsecond),
	}
}

func (s *AuditStoreSuite) TestAppendAndList() {
	entityID := uuid.NewString()
	now := time.Now()
	created := s.entry(entityID, now.Add(-time.Minute))
	revoked := s.entry(entityID, now)
	revoked.Action = audit.ActionOverrideRevoked
	revoked.OldValues = map[string]any{"is_active": true}
	revoked.AfterValues = map[string]any{"is_active": false}

	s.Require().NoError(s.store.Append(s.ctx, revoked))
	s.Require().NoError(s.store.Append(s.ctx, created))
	s.Require().NoError(s.store.Append(s.ctx, s.entry(uuid.NewString(), now)))

	trail, err := s.store.ListByEntity(s.ctx, audit.EntityComplianceOverride, entityID)
	s.Require().NoError(err)
	s.Require().Len(trail, 2)
	s.Equal(created.ID, trail[0].ID)
	s.Equal(audit.ActionOverrideRevoked, trail[1].Action)
	s.Equal("Ops Lead", trail[1].UserName)
	s.Equal(false, trail[1].AfterValues["is_active"])
	s.Equal(true, trail[1].OldValues["is_active"])
	s.Equal(*created.UserID, *trail[0].UserID)

	var kind string
	s.Require().NoError(s.postgres.DB.QueryRowContext(s.ctx,
		`SELECT jsonb_typeof(after_values) FROM audit_logs WHERE id = $1`,
		uuid.UUID(revoked.ID),
	).Scan(&kind))
	s.Equal("object", kind)
}

func (s *AuditStoreSuite) TestAppendIsIdempotent() {
	e := s.entry(uuid.NewString(), time.Now())
	s.Require().NoError(s.store.Append(s.ctx, e))
	s.Require().NoError(s.store.Append(s.ctx, e))

	trail, err := s.store.ListByEntity(s.ctx, e.EntityType, e.EntityID)
	s.Require().NoError(err)
	s.Len(trail, 1)
}

func (s *AuditStoreSuite) TestRowsCannotBeDeleted() {
	e := s.entry(uuid.NewString(), time.Now())
	s.Require().NoError(s.store.Append(s.ctx, e))

	_, err := s.postgres.DB.ExecContext(s.ctx, `DELETE FROM audit_logs WHERE id = $1`, uuid.UUID(e.ID))
	s.Error(err)
}
