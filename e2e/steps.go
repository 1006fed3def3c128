package e2e

import (
	"github.com/cucumber/godog"

	"consentry/e2e/steps/common"
	"consentry/e2e/steps/consent"
	"consentry/e2e/steps/gdpr"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	consent.RegisterSteps(ctx, tc)
	gdpr.RegisterSteps(ctx, tc)
}
