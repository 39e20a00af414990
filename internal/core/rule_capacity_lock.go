package core

import (
	"context"
	"fmt"

	"schedboard/pkg/domain"
)

// NewCapacityLockRule returns the rule blocking moves into a locked date from
// another date. Moves within a date and moves out of a locked date pass.
func NewCapacityLockRule() domain.Rule {
	return capacityLockRule{}
}

type capacityLockRule struct{}

func (capacityLockRule) Name() string { return "capacity_lock" }

func (r capacityLockRule) Evaluate(_ context.Context, view domain.RuleView, plan domain.MovePlan) (domain.Result, error) {
	if !plan.TargetResolved || plan.SourceDate == plan.TargetDate {
		return domain.Result{}, nil
	}
	if !view.IsDateLocked(plan.TargetDate) {
		return domain.Result{}, nil
	}
	return block(r.Name(), ReasonCapacityLocked, plan.Target,
		fmt.Sprintf("capacity on %s is locked; cannot move in from %q", plan.TargetDate, plan.SourceDate)), nil
}
