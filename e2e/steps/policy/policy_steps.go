package policy

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
	Actor() string
	PolicyID() int64
	SetPolicyID(id int64)
}

// RegisterSteps registers policy issuance and premium step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &policySteps{tc: tc}

	ctx.Step(`^"([^"]*)" issues a policy to "([^"]*)" with premium "([^"]*)" and coverage "([^"]*)" for (-?\d+) seconds$`, steps.issuePolicy)
	ctx.Step(`^I issue a policy to "([^"]*)" with premium "([^"]*)" and coverage "([^"]*)" for (-?\d+) seconds$`, steps.issuePolicyAsActor)
	ctx.Step(`^I pay a premium of "([^"]*)"$`, steps.payPremium)
	ctx.Step(`^the policy should be active$`, steps.policyShouldBeActive)
}

type policySteps struct {
	tc TestContext
}

func (s *policySteps) issuePolicy(ctx context.Context, insurer, holder, premium, coverage string, seconds int64) error {
	if err := s.tc.POST(insurer, "/policies", map[string]any{
		"policyholder":     holder,
		"premium":          premium,
		"coverage_amount":  coverage,
		"duration_seconds": seconds,
	}); err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return nil
	}
	id, err := s.tc.GetResponseField("policy_id")
	if err != nil {
		return err
	}
	n, ok := id.(float64)
	if !ok {
		return fmt.Errorf("policy_id is not a number: %v", id)
	}
	s.tc.SetPolicyID(int64(n))
	return nil
}

func (s *policySteps) issuePolicyAsActor(ctx context.Context, holder, premium, coverage string, seconds int64) error {
	return s.issuePolicy(ctx, s.tc.Actor(), holder, premium, coverage, seconds)
}

func (s *policySteps) payPremium(ctx context.Context, amount string) error {
	return s.tc.POST(s.tc.Actor(), fmt.Sprintf("/policies/%d/premiums", s.tc.PolicyID()), map[string]string{"amount": amount})
}

func (s *policySteps) policyShouldBeActive(ctx context.Context) error {
	if err := s.tc.GET(s.tc.Actor(), fmt.Sprintf("/policies/%d", s.tc.PolicyID())); err != nil {
		return err
	}
	status, err := s.tc.GetResponseField("status")
	if err != nil {
		return err
	}
	if status != "active" {
		return fmt.Errorf("expected active policy, got %v", status)
	}
	return nil
}
