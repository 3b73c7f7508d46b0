//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearance/internal/certification"
	certstore "clearance/internal/certification/store"
	"clearance/internal/compliance"
	"clearance/internal/override"
	"clearance/internal/override/store"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
	"clearance/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
	now      time.Time
	employee certification.Employee
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx,
		"audit_logs", "compliance_overrides", "certifications", "certification_requirements", "employees", "users"))

	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.employee = certification.Employee{
		ID:             id.EmployeeID(uuid.New()),
		OrganisationID: id.OrganisationID(uuid.New()),
		FullName:       "Robin Support",
	}
	s.Require().NoError(certstore.NewPostgres(s.postgres.DB).InsertEmployee(s.ctx, s.employee))
}

func (s *PostgresStoreSuite) newOverride(createdAgo, ttl time.Duration) *override.Override {
	created := s.now.Add(-createdAgo)
	return &override.Override{
		ID:             id.NewOverrideID(),
		OrganisationID: s.employee.OrganisationID,
		EmployeeID:     s.employee.ID,
		OverrideBy:     id.UserID(uuid.New()),
		OverrideByName: "Ada Admin",
		Reason:         "urgent roster gap",
		BlockedCertifications: []compliance.Issue{
			{Type: "dbs_check", Status: certification.StatusMissing},
		},
		ContextType: compliance.ContextClient,
		ContextID:   "client-42",
		CreatedAt:   created,
		ExpiresAt:   created.Add(ttl),
		IsActive:    true,
	}
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	o := s.newOverride(0, 10*24*time.Hour)
	s.Require().NoError(s.store.Insert(s.ctx, o))

	got, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(o.Reason, got.Reason)
	s.Equal(o.BlockedCertifications, got.BlockedCertifications)
	s.Equal(compliance.ContextClient, got.ContextType)
	s.Equal("client-42", got.ContextID)
	s.True(o.ExpiresAt.Equal(got.ExpiresAt))
	s.True(got.IsActive)
	s.Nil(got.RevokedAt)

	var kind string
	s.Require().NoError(s.postgres.DB.QueryRowContext(s.ctx,
		`SELECT jsonb_typeof(blocked_certifications) FROM compliance_overrides WHERE id = $1`,
		uuid.UUID(o.ID),
	).Scan(&kind))
	s.Equal("array", kind)

	s.ErrorIs(s.store.Insert(s.ctx, o), sentinel.ErrConflict)

	_, err = s.store.FindByID(s.ctx, id.NewOverrideID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExpiryCapIsEnforcedByTheTable() {
	o := s.newOverride(0, override.MaxDuration+time.Hour)
	s.Error(s.store.Insert(s.ctx, o))
}

func (s *PostgresStoreSuite) TestListActiveFiltersAndOrders() {
	older := s.newOverride(72*time.Hour, 10*24*time.Hour)
	newer := s.newOverride(time.Hour, 10*24*time.Hour)
	expired := s.newOverride(5*24*time.Hour, 24*time.Hour)
	revoked := s.newOverride(2*time.Hour, 10*24*time.Hour)
	for _, o := range []*override.Override{older, newer, expired, revoked} {
		s.Require().NoError(s.store.Insert(s.ctx, o))
	}
	s.Require().NoError(s.store.Deactivate(s.ctx, revoked.ID, s.now, id.UserID(uuid.New())))

	got, err := s.store.ListActive(s.ctx, s.employee.ID, s.now)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(newer.ID, got[0].ID)
	s.Equal(older.ID, got[1].ID)
}

func (s *PostgresStoreSuite) TestDeactivate() {
	o := s.newOverride(0, 24*time.Hour)
	s.Require().NoError(s.store.Insert(s.ctx, o))
	revoker := id.UserID(uuid.New())

	s.Require().NoError(s.store.Deactivate(s.ctx, o.ID, s.now, revoker))
	got, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)
	s.Require().NotNil(got.RevokedBy)
	s.Equal(revoker, *got.RevokedBy)

	s.ErrorIs(s.store.Deactivate(s.ctx, o.ID, s.now, revoker), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.Deactivate(s.ctx, id.NewOverrideID(), s.now, revoker), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRowsCannotBeDeleted() {
	o := s.newOverride(0, 24*time.Hour)
	s.Require().NoError(s.store.Insert(s.ctx, o))

	_, err := s.postgres.DB.ExecContext(s.ctx, `DELETE FROM compliance_overrides WHERE id = $1`, uuid.UUID(o.ID))
	s.Error(err)
}
