package e2e

import (
	"github.com/cucumber/godog"

	"nftform/e2e/steps/common"
	"nftform/e2e/steps/registration"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// background, raw requests and response assertions
	common.RegisterSteps(ctx, tc)

	// entry form, existence check and prompt recovery
	registration.RegisterSteps(ctx, tc)
}
