package e2e

import (
	"github.com/cucumber/godog"

	"insurely/e2e/steps/claim"
	"insurely/e2e/steps/common"
	"insurely/e2e/steps/policy"
)

// RegisterSteps binds every step package to the scenario. Common steps own
// actors and response assertions; the domain packages read the ids they record.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	policy.RegisterSteps(ctx, tc)
	claim.RegisterSteps(ctx, tc)
}
