package core

import (
	"context"
	"fmt"

	"schedboard/pkg/domain"
)

// NewInboundZoneRule returns the rule keeping purchase orders in the inbound zone.
func NewInboundZoneRule() domain.Rule {
	return inboundZoneRule{}
}

type inboundZoneRule struct{}

func (inboundZoneRule) Name() string { return "inbound_zone" }

func (r inboundZoneRule) Evaluate(_ context.Context, _ domain.RuleView, plan domain.MovePlan) (domain.Result, error) {
	for _, o := range plan.Orders {
		if o.Type == domain.OrderTypePurchase {
			return block(r.Name(), ReasonInboundZone, o.ID,
				fmt.Sprintf("purchase order %s (%s) cannot leave the inbound zone", o.OrderNumber, o.ID)), nil
		}
	}
	return domain.Result{}, nil
}
