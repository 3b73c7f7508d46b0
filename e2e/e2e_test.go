package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the feature files against a running server. Start the
// server with `clearance serve --migrate` and point CLEARANCE_E2E_URL and
// DATABASE_URL at it.
func TestFeatures(t *testing.T) {
	if os.Getenv("CLEARANCE_E2E_URL") == "" {
		t.Skip("CLEARANCE_E2E_URL not set")
	}
	tc, err := NewTestContext()
	if err != nil {
		t.Fatal(err)
	}
	defer tc.DB.Close()

	suite := godog.TestSuite{
		Name: "clearance",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature tests failed")
	}
}
