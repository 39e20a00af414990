package core

import (
	"context"
	"fmt"

	"schedboard/pkg/domain"
)

// NewReadOnlyRule returns the rule freezing read-only orders in place.
func NewReadOnlyRule() domain.Rule {
	return readOnlyRule{}
}

type readOnlyRule struct{}

func (readOnlyRule) Name() string { return "read_only" }

func (r readOnlyRule) Evaluate(_ context.Context, _ domain.RuleView, plan domain.MovePlan) (domain.Result, error) {
	for _, o := range plan.Orders {
		if o.IsReadOnly {
			return block(r.Name(), ReasonReadOnly, o.ID,
				fmt.Sprintf("order %s is %s and read-only", o.ID, o.Status)), nil
		}
	}
	return domain.Result{}, nil
}
