package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	SignIn(ctx context.Context, role, name string) error
	SeedEmployee(ctx context.Context, name string, valid []string) error
	LastStatus() int
	LastBody() []byte
	LastHeader(name string) string
	ResponseField(path string) (any, error)
	Remember(alias, value string)
}

// RegisterSteps registers sign-in, seeding and generic response steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am signed in as an? "([^"]*)" named "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^employee "([^"]*)" holds valid "([^"]*)"$`, steps.employeeHoldsValid)
	ctx.Step(`^employee "([^"]*)" holds no certifications$`, steps.employeeHoldsNothing)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should list (\d+) items?$`, steps.responseFieldShouldList)
	ctx.Step(`^the response header "([^"]*)" should be present$`, steps.responseHeaderPresent)
	ctx.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, steps.rememberField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) signedInAs(ctx context.Context, role, name string) error {
	return s.tc.SignIn(ctx, role, name)
}

func (s *commonSteps) employeeHoldsValid(ctx context.Context, name, certs string) error {
	var types []string
	for _, t := range strings.Split(certs, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return s.tc.SeedEmployee(ctx, name, types)
}

func (s *commonSteps) employeeHoldsNothing(ctx context.Context, name string) error {
	return s.tc.SeedEmployee(ctx, name, nil)
}

func (s *commonSteps) responseStatusShouldBe(_ context.Context, want int) error {
	if got := s.tc.LastStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBe(_ context.Context, field, want string) error {
	value, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(value); got != want {
		return fmt.Errorf("expected %s to be %q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldList(_ context.Context, field string, want int) error {
	value, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%s is not a list", field)
	}
	if len(items) != want {
		return fmt.Errorf("expected %d items in %s, got %d", want, field, len(items))
	}
	return nil
}

func (s *commonSteps) responseHeaderPresent(_ context.Context, name string) error {
	if s.tc.LastHeader(name) == "" {
		return fmt.Errorf("header %s missing", name)
	}
	return nil
}

func (s *commonSteps) rememberField(_ context.Context, field, alias string) error {
	value, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Remember(alias, fmt.Sprint(value))
	return nil
}
