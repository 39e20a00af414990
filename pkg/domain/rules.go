package domain

import "context"

// Reason explains why a board mutation was rejected.
type Reason string

// Rejection reasons surfaced to the drag-and-drop layer.
const (
	// ReasonInboundZone rejects scheduling a purchase order outside the inbound zone.
	ReasonInboundZone Reason = "INBOUND_ZONE"
	// ReasonReadOnly rejects moving a shipped or invoiced order.
	ReasonReadOnly Reason = "READ_ONLY"
	// ReasonInvalidTarget rejects a missing run/cell or a malformed cell id.
	ReasonInvalidTarget Reason = "INVALID_TARGET"
	// ReasonCapacityLocked rejects a cross-date move into a locked date.
	ReasonCapacityLocked Reason = "CAPACITY_LOCKED"
	// ReasonNotFound rejects an operation on an order id the board does not know.
	ReasonNotFound Reason = "NOT_FOUND"
	// ReasonRuleError is reported when a registered rule fails to evaluate.
	ReasonRuleError Reason = "RULE_ERROR"
)

// MoveResult is the outcome of a board mutation.
type MoveResult struct {
	Success bool   `json:"success"`
	Reason  Reason `json:"reason,omitempty"`
}

// Succeeded returns a successful result.
func Succeeded() MoveResult { return MoveResult{Success: true} }

// Rejected returns a failed result carrying reason.
func Rejected(reason Reason) MoveResult { return MoveResult{Reason: reason} }

// Severity represents rule violation severity.
type Severity string

const (
	// SeverityBlock rejects the mutation.
	SeverityBlock Severity = "block"
	// SeverityWarn is passed to the board's warning handler; the move proceeds.
	SeverityWarn Severity = "warn"
)

// Violation captures a single rule finding.
type Violation struct {
	Rule     string
	Severity Severity
	Reason   Reason
	Message  string
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// FirstBlocking returns the earliest blocking violation in rule registration order.
func (r Result) FirstBlocking() (Violation, bool) {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return v, true
		}
	}
	return Violation{}, false
}

// MoveKind identifies which board operation produced a plan.
type MoveKind string

// Move kinds evaluated by the rules engine.
const (
	MoveOrderToRun  MoveKind = "order_to_run"
	MoveOrderToCell MoveKind = "order_to_cell"
	MoveRunToCell   MoveKind = "run_to_cell"
)

// MovePlan describes a proposed mutation before any state is touched.
type MovePlan struct {
	Kind MoveKind
	// Orders are the orders that change position: one for order moves, every
	// member for run moves.
	Orders []Order
	// Target is the run or cell id the caller asked for.
	Target         string
	TargetResolved bool
	SourceDate     string
	TargetDate     string
}

// RuleView provides read-only access to board state for rule evaluation.
type RuleView interface {
	IsDateLocked(date string) bool
}

// Rule defines an evaluation executed before a board mutation is applied.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, plan MovePlan) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine. Registration order is evaluation order.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Name())
	}
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, plan MovePlan) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, plan)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
