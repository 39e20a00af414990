package core

import (
	"context"

	"schedboard/pkg/domain"
)

// NewTargetExistsRule returns the rule rejecting moves to unknown runs or
// malformed cell ids.
func NewTargetExistsRule() domain.Rule {
	return targetExistsRule{}
}

type targetExistsRule struct{}

func (targetExistsRule) Name() string { return "target_exists" }

func (r targetExistsRule) Evaluate(_ context.Context, _ domain.RuleView, plan domain.MovePlan) (domain.Result, error) {
	if plan.TargetResolved {
		return domain.Result{}, nil
	}
	return block(r.Name(), ReasonInvalidTarget, plan.Target, "move target "+plan.Target+" does not exist"), nil
}
