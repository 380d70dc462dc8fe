package registration

import (
	"context"
	"fmt"
	"regexp"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, query map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetEmail() string
	GetAccessCode() string
	SetAccessCode(code string)
}

var accessCodePattern = regexp.MustCompile(`^[A-Z]{10}$`)

// RegisterSteps registers registration-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrationSteps{tc: tc}

	// Entry form
	ctx.Step(`^I register with prompt "([^"]*)"$`, steps.register)
	ctx.Step(`^I register again with prompt "([^"]*)"$`, steps.register)
	ctx.Step(`^I save the access code$`, steps.saveAccessCode)

	// Existence check
	ctx.Step(`^I check whether my email is registered$`, steps.checkOwnEmail)
	ctx.Step(`^I check whether "([^"]*)" is registered$`, steps.checkEmail)

	// Recovery
	ctx.Step(`^I recover my prompt with the saved code$`, steps.recoverWithSavedCode)
	ctx.Step(`^I recover my prompt with code "([^"]*)"$`, steps.recoverWithCode)
	ctx.Step(`^I recover my prompt through the query string$`, steps.recoverViaQuery)
}

type registrationSteps struct {
	tc TestContext
}

func (s *registrationSteps) register(ctx context.Context, prompt string) error {
	body := map[string]interface{}{
		"email":   s.tc.GetEmail(),
		"name":    "E2E Tester",
		"prompt":  prompt,
		"twitter": "@e2e",
	}
	return s.tc.POST("/entry-form", body)
}

func (s *registrationSteps) saveAccessCode(ctx context.Context) error {
	code, err := s.tc.GetResponseField("accessCode")
	if err != nil {
		return err
	}
	str, ok := code.(string)
	if !ok || !accessCodePattern.MatchString(str) {
		return fmt.Errorf("unexpected access code %v", code)
	}
	s.tc.SetAccessCode(str)
	return nil
}

func (s *registrationSteps) checkOwnEmail(ctx context.Context) error {
	return s.checkEmail(ctx, s.tc.GetEmail())
}

func (s *registrationSteps) checkEmail(ctx context.Context, email string) error {
	return s.tc.POST("/check-email", map[string]interface{}{"email": email})
}

func (s *registrationSteps) recoverWithSavedCode(ctx context.Context) error {
	return s.recoverWithCode(ctx, s.tc.GetAccessCode())
}

func (s *registrationSteps) recoverWithCode(ctx context.Context, code string) error {
	body := map[string]interface{}{
		"email":      s.tc.GetEmail(),
		"accesscode": code,
	}
	return s.tc.POST("/recover-prompt", body)
}

func (s *registrationSteps) recoverViaQuery(ctx context.Context) error {
	return s.tc.GET("/recover-prompt", map[string]string{
		"email":      s.tc.GetEmail(),
		"accesscode": s.tc.GetAccessCode(),
	})
}
