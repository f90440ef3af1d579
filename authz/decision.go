package authz

import "context"

// DecisionRule names the check that produced a decision.
type DecisionRule string

const (
	RuleMinimumRole   DecisionRule = "minimum_role"
	RuleOwnership     DecisionRule = "ownership"
	RuleRoleChange    DecisionRule = "role_change"
	RuleBackwardStage DecisionRule = "backward_stage"
	RuleTransition    DecisionRule = "transition"
	RuleDealOwner     DecisionRule = "deal_owner"
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed bool
	Rule    DecisionRule
	Reason  string
}

// DecisionEvent is emitted for observers after a check runs.
type DecisionEvent struct {
	Actor        Actor
	Operation    string
	ResourceType ResourceType
	ResourceID   string
	OwnerID      string
	Decision     Decision
}

// DecisionHook receives decision events.
type DecisionHook interface {
	OnDecision(ctx context.Context, event DecisionEvent)
}

// DecisionHookFunc wraps a function as a DecisionHook.
type DecisionHookFunc func(context.Context, DecisionEvent)

// OnDecision implements DecisionHook.
func (fn DecisionHookFunc) OnDecision(ctx context.Context, event DecisionEvent) {
	if fn == nil {
		return
	}
	fn(ctx, event)
}
