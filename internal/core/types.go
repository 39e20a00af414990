package core

import "schedboard/pkg/domain"

type (
	Order       = domain.Order
	Run         = domain.Run
	Cell        = domain.Cell
	CellID      = domain.CellID
	Payload     = domain.Payload
	MoveResult  = domain.MoveResult
	MovePlan    = domain.MovePlan
	Reason      = domain.Reason
	Violation   = domain.Violation
	Result      = domain.Result
	RuleView    = domain.RuleView
	RulesEngine = domain.RulesEngine
)

const (
	ReasonInboundZone    = domain.ReasonInboundZone
	ReasonReadOnly       = domain.ReasonReadOnly
	ReasonInvalidTarget  = domain.ReasonInvalidTarget
	ReasonCapacityLocked = domain.ReasonCapacityLocked
	ReasonNotFound       = domain.ReasonNotFound
	ReasonRuleError      = domain.ReasonRuleError
)

// Append is the insert index that places an id at the end of its sequence.
const Append = -1
