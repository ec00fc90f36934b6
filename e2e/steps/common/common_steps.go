package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(principal, path string, body any) error
	GET(principal, path string) error
	GetResponseField(field string) (any, error)
	LastStatus() int
	Admin() string
	SetActor(principal string)
}

// RegisterSteps registers actor, role, and assertion step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am "([^"]*)"$`, steps.actAs)
	ctx.Step(`^the administrator grants the insurer role to "([^"]*)"$`, steps.grantInsurer)
	ctx.Step(`^"([^"]*)" grants the insurer role to "([^"]*)"$`, steps.grantInsurerAs)
	ctx.Step(`^"([^"]*)" should be an insurer$`, steps.shouldBeInsurer)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the error should be "([^"]*)"$`, steps.errorShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) actAs(ctx context.Context, principal string) error {
	s.tc.SetActor(principal)
	return nil
}

func (s *commonSteps) grantInsurer(ctx context.Context, principal string) error {
	if err := s.grantInsurerAs(ctx, s.tc.Admin(), principal); err != nil {
		return err
	}
	return s.statusShouldBe(ctx, 200)
}

func (s *commonSteps) grantInsurerAs(ctx context.Context, caller, principal string) error {
	return s.tc.POST(caller, "/admin/insurers", map[string]string{"principal": principal})
}

func (s *commonSteps) shouldBeInsurer(ctx context.Context, principal string) error {
	if err := s.tc.GET(principal, "/insurers/"+principal); err != nil {
		return err
	}
	v, err := s.tc.GetResponseField("is_insurer")
	if err != nil {
		return err
	}
	if v != true {
		return fmt.Errorf("expected %s to be an insurer", principal)
	}
	return nil
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.LastStatus(); got != expected {
		body, _ := s.tc.GetResponseField("error_description")
		return fmt.Errorf("expected status %d, got %d (%v)", expected, got, body)
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) errorShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldBe(ctx, "error", code)
}
