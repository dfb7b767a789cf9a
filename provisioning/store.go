package provisioning

import (
	"context"
	"time"

	"github.com/gatewise/gatewise/id"
)

// Store defines persistence operations for provisioning rules and actions.
type Store interface {
	// CreateRule persists a new rule.
	CreateRule(ctx context.Context, r *Rule) error

	// GetRule retrieves a rule by ID.
	GetRule(ctx context.Context, ruleID id.RuleID) (*Rule, error)

	// UpdateRule persists changes to a rule.
	UpdateRule(ctx context.Context, r *Rule) error

	// DeleteRule removes a rule by ID.
	DeleteRule(ctx context.Context, ruleID id.RuleID) error

	// ListRules returns rules matching the filter.
	ListRules(ctx context.Context, filter *RuleFilter) ([]*Rule, error)

	// SetRuleLastRun records when a scheduled rule last fired.
	SetRuleLastRun(ctx context.Context, ruleID id.RuleID, at time.Time) error

	// CreateAction persists a new action.
	CreateAction(ctx context.Context, a *Action) error

	// GetAction retrieves an action by ID.
	GetAction(ctx context.Context, actionID id.ActionID) (*Action, error)

	// UpdateAction persists changes to an action.
	UpdateAction(ctx context.Context, a *Action) error

	// ListActions returns actions matching the filter, ordered by
	// (created_at, sequence) so rule order is preserved.
	ListActions(ctx context.Context, filter *ActionFilter) ([]*Action, error)
}
