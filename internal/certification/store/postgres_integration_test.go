//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearance/internal/certification"
	"clearance/internal/certification/store"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
	"clearance/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
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
	err := s.postgres.TruncateTables(s.ctx,
		"audit_logs", "compliance_overrides", "certifications", "certification_requirements", "employees", "users")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newEmployee() certification.Employee {
	emp := certification.Employee{
		ID:             id.EmployeeID(uuid.New()),
		OrganisationID: id.OrganisationID(uuid.New()),
		FullName:       "Robin Support",
	}
	s.Require().NoError(s.store.InsertEmployee(s.ctx, emp))
	return emp
}

func (s *PostgresStoreSuite) TestFindEmployee() {
	emp := s.newEmployee()

	got, err := s.store.FindEmployee(s.ctx, emp.ID)
	s.Require().NoError(err)
	s.Equal(emp.OrganisationID, got.OrganisationID)
	s.Equal("Robin Support", got.FullName)

	_, err = s.store.FindEmployee(s.ctx, id.EmployeeID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListRecords() {
	emp := s.newEmployee()
	expiry := time.Now().Add(90 * 24 * time.Hour).UTC().Truncate(time.Second)
	s.Require().NoError(s.store.InsertRecord(s.ctx, certification.Record{
		EmployeeID: emp.ID, Type: "dbs_check", Status: certification.StatusValid, ExpiryDate: &expiry,
	}))
	s.Require().NoError(s.store.InsertRecord(s.ctx, certification.Record{
		EmployeeID: emp.ID, Type: "right_to_work", Status: certification.StatusPending,
	}))
	s.Require().NoError(s.store.InsertRecord(s.ctx, certification.Record{
		EmployeeID: emp.ID, Type: "unrelated", Status: certification.StatusValid,
	}))

	got, err := s.store.ListRecords(s.ctx, emp.ID, []string{"dbs_check", "right_to_work"})
	s.Require().NoError(err)
	s.Require().Len(got, 2)

	byType := map[string]certification.Record{}
	for _, r := range got {
		byType[r.Type] = r
	}
	s.Require().NotNil(byType["dbs_check"].ExpiryDate)
	s.True(expiry.Equal(*byType["dbs_check"].ExpiryDate))
	s.Nil(byType["right_to_work"].ExpiryDate)
	s.Equal(certification.StatusPending, byType["right_to_work"].Status)
}

func (s *PostgresStoreSuite) TestListRequirements() {
	org := id.OrganisationID(uuid.New())
	s.Require().NoError(s.store.InsertRequirement(s.ctx, org, "right_to_work"))
	s.Require().NoError(s.store.InsertRequirement(s.ctx, org, "dbs_check"))
	s.Require().NoError(s.store.InsertRequirement(s.ctx, org, "dbs_check"))

	got, err := s.store.ListRequirements(s.ctx, org)
	s.Require().NoError(err)
	s.Equal([]string{"dbs_check", "right_to_work"}, got)

	none, err := s.store.ListRequirements(s.ctx, id.OrganisationID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *PostgresStoreSuite) TestDisplayName() {
	user := id.UserID(uuid.New())
	s.Require().NoError(s.store.InsertUser(s.ctx, user, id.OrganisationID(uuid.New()), "Ada Admin", "ada@example.com", "admin"))

	name, err := s.store.DisplayName(s.ctx, user)
	s.Require().NoError(err)
	s.Equal("Ada Admin", name)
}
