package override

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	EmployeeID(name string) (string, error)
	LastStatus() int
	LastBody() []byte
	ResponseField(path string) (any, error)
	Remember(alias, value string)
	Recall(alias string) (string, error)
}

// RegisterSteps registers override lifecycle steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &overrideSteps{tc: tc}

	ctx.Step(`^I create an override for "([^"]*)" on a "([^"]*)" lasting (\d+) days because "([^"]*)"$`, steps.createOverride)
	ctx.Step(`^an override for "([^"]*)" on a "([^"]*)" exists as "([^"]*)"$`, steps.overrideExists)
	ctx.Step(`^I revoke override "([^"]*)"$`, steps.revokeOverride)
	ctx.Step(`^I list the overrides of "([^"]*)"$`, steps.listOverrides)
	ctx.Step(`^I fetch the audit trail of override "([^"]*)"$`, steps.auditTrail)
}

type overrideSteps struct {
	tc TestContext
}

func (s *overrideSteps) createOverride(_ context.Context, name, contextType string, days int, reason string) error {
	employeeID, err := s.tc.EmployeeID(name)
	if err != nil {
		return err
	}
	return s.tc.POST("/compliance/overrides", map[string]any{
		"employee_id":  employeeID,
		"reason":       reason,
		"context_type": contextType,
		"expires_at":   time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour).Add(-time.Minute),
	})
}

func (s *overrideSteps) overrideExists(ctx context.Context, name, contextType, alias string) error {
	if err := s.createOverride(ctx, name, contextType, 7, "Cover while renewal is processed"); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusCreated {
		return fmt.Errorf("override not created: %d %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	overrideID, err := s.tc.ResponseField("override.id")
	if err != nil {
		return err
	}
	s.tc.Remember(alias, fmt.Sprint(overrideID))
	return nil
}

func (s *overrideSteps) revokeOverride(_ context.Context, alias string) error {
	overrideID, err := s.tc.Recall(alias)
	if err != nil {
		return err
	}
	return s.tc.POST("/compliance/overrides/"+overrideID+"/revoke", map[string]any{})
}

func (s *overrideSteps) listOverrides(_ context.Context, name string) error {
	employeeID, err := s.tc.EmployeeID(name)
	if err != nil {
		return err
	}
	return s.tc.GET("/compliance/employees/" + employeeID + "/overrides")
}

func (s *overrideSteps) auditTrail(_ context.Context, alias string) error {
	overrideID, err := s.tc.Recall(alias)
	if err != nil {
		return err
	}
	return s.tc.GET("/compliance/overrides/" + overrideID + "/audit")
}
