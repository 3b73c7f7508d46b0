package e2e

import (
	"github.com/cucumber/godog"

	"clearance/e2e/steps/common"
	"clearance/e2e/steps/gate"
	"clearance/e2e/steps/override"
	"clearance/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (sign-in, seeding, generic assertions)
	common.RegisterSteps(ctx, tc)

	// Register assignment gate steps
	gate.RegisterSteps(ctx, tc)

	// Register override lifecycle steps
	override.RegisterSteps(ctx, tc)

	ratelimit.RegisterSteps(ctx, tc)
}
