package claim

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
	ClaimID() int64
	SetClaimID(id int64)
}

// RegisterSteps registers claim adjudication and payout step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &claimSteps{tc: tc}

	ctx.Step(`^I submit a claim for "([^"]*)" because "([^"]*)"$`, steps.submitClaim)
	ctx.Step(`^"([^"]*)" (approves|rejects|pays) the claim$`, steps.actOnClaim)
	ctx.Step(`^the claim status should be "([^"]*)"$`, steps.claimStatusShouldBe)
	ctx.Step(`^the claim should have a transfer reference$`, steps.claimShouldHaveTransferRef)
}

type claimSteps struct {
	tc TestContext
}

func (s *claimSteps) submitClaim(ctx context.Context, amount, reason string) error {
	path := fmt.Sprintf("/policies/%d/claims", s.tc.PolicyID())
	if err := s.tc.POST(s.tc.Actor(), path, map[string]string{"amount": amount, "reason": reason}); err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return nil
	}
	id, err := s.tc.GetResponseField("claim_id")
	if err != nil {
		return err
	}
	n, ok := id.(float64)
	if !ok {
		return fmt.Errorf("claim_id is not a number: %v", id)
	}
	s.tc.SetClaimID(int64(n))
	return nil
}

func (s *claimSteps) actOnClaim(ctx context.Context, principal, action string) error {
	var verb string
	switch action {
	case "approves":
		verb = "approve"
	case "rejects":
		verb = "reject"
	default:
		verb = "pay"
	}
	return s.tc.POST(principal, fmt.Sprintf("/claims/%d/%s", s.tc.ClaimID(), verb), nil)
}

func (s *claimSteps) fetchClaim() error {
	actor := s.tc.Actor()
	if actor == "" {
		return fmt.Errorf("no actor set; use `I am \"...\"` first")
	}
	return s.tc.GET(actor, fmt.Sprintf("/claims/%d", s.tc.ClaimID()))
}

func (s *claimSteps) claimStatusShouldBe(ctx context.Context, expected string) error {
	if err := s.fetchClaim(); err != nil {
		return err
	}
	status, err := s.tc.GetResponseField("status")
	if err != nil {
		return err
	}
	if status != expected {
		return fmt.Errorf("expected claim status %q, got %v", expected, status)
	}
	return nil
}

func (s *claimSteps) claimShouldHaveTransferRef(ctx context.Context) error {
	if err := s.fetchClaim(); err != nil {
		return err
	}
	ref, err := s.tc.GetResponseField("transfer_ref")
	if err != nil {
		return err
	}
	if ref == "" {
		return fmt.Errorf("expected a transfer reference")
	}
	return nil
}
