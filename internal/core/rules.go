package core

import "schedboard/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in move policy.
// Registration order is the validation order reported to callers.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewInboundZoneRule())
	engine.Register(NewReadOnlyRule())
	engine.Register(NewTargetExistsRule())
	engine.Register(NewCapacityLockRule())
	return engine
}

func block(rule string, reason Reason, entityID, message string) Result {
	return Result{Violations: []Violation{{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Reason:   reason,
		Message:  message,
		EntityID: entityID,
	}}}
}
