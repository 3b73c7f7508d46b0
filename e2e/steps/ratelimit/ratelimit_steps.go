package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	EmployeeID(name string) (string, error)
	LastStatus() int
	LastHeader(name string) string
}

// RegisterSteps registers per-user throttling steps for the override routes.
// The server must run with its default RATELIMIT_OVERRIDE_REQUESTS or lower.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I list the overrides of "([^"]*)" (\d+) times in a row$`, steps.listRepeatedly)
	ctx.Step(`^at least one request should have been throttled$`, steps.someThrottled)
	ctx.Step(`^throttled responses should carry "([^"]*)"$`, steps.throttledCarryHeader)
}

type ratelimitSteps struct {
	tc        TestContext
	throttled int
	headers   []string
}

func (s *ratelimitSteps) listRepeatedly(_ context.Context, name string, times int) error {
	employeeID, err := s.tc.EmployeeID(name)
	if err != nil {
		return err
	}
	s.throttled = 0
	s.headers = nil
	for range times {
		if err := s.tc.GET("/compliance/employees/" + employeeID + "/overrides"); err != nil {
			return err
		}
		if s.tc.LastStatus() == http.StatusTooManyRequests {
			s.throttled++
			s.headers = append(s.headers, s.tc.LastHeader("Retry-After"))
		}
	}
	return nil
}

func (s *ratelimitSteps) someThrottled(context.Context) error {
	if s.throttled == 0 {
		return fmt.Errorf("no request was throttled")
	}
	return nil
}

func (s *ratelimitSteps) throttledCarryHeader(_ context.Context, header string) error {
	if header != "Retry-After" {
		return fmt.Errorf("only Retry-After is tracked, got %s", header)
	}
	for i, v := range s.headers {
		if v == "" {
			return fmt.Errorf("throttled response %d has no %s", i+1, header)
		}
	}
	return nil
}
