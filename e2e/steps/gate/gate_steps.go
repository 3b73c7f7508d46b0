package gate

import (
	"context"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	EmployeeID(name string) (string, error)
}

// RegisterSteps registers assignment gate steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &gateSteps{tc: tc}

	ctx.Step(`^I ask whether "([^"]*)" can be assigned to a "([^"]*)"$`, steps.askCanAssign)
	ctx.Step(`^I ask whether an unknown employee can be assigned to a "([^"]*)"$`, steps.askCanAssignUnknown)
	ctx.Step(`^I evaluate "([^"]*)" for a "([^"]*)"$`, steps.evaluate)
}

type gateSteps struct {
	tc TestContext
}

func (s *gateSteps) askCanAssign(_ context.Context, name, contextType string) error {
	employeeID, err := s.tc.EmployeeID(name)
	if err != nil {
		return err
	}
	return s.tc.POST("/compliance/can-assign", evaluateBody(employeeID, contextType))
}

func (s *gateSteps) askCanAssignUnknown(_ context.Context, contextType string) error {
	return s.tc.POST("/compliance/can-assign", evaluateBody(uuid.NewString(), contextType))
}

func (s *gateSteps) evaluate(_ context.Context, name, contextType string) error {
	employeeID, err := s.tc.EmployeeID(name)
	if err != nil {
		return err
	}
	return s.tc.POST("/compliance/evaluate", evaluateBody(employeeID, contextType))
}

func evaluateBody(employeeID, contextType string) map[string]any {
	return map[string]any{
		"employee_id": employeeID,
		"context":     map[string]any{"context_type": contextType},
	}
}
