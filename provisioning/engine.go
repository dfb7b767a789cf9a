package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/gatewise/gatewise/conditional"
	"github.com/gatewise/gatewise/id"
)

var (
	// ErrInvalidTransition is returned when an action status change is not
	// a legal edge of the transition table.
	ErrInvalidTransition = errors.New("provisioning: invalid action transition")

	// ErrNotAuthorized is returned when the approver fails the
	// authorization check for approve/reject.
	ErrNotAuthorized = errors.New("provisioning: approver not authorized")

	// ErrInvalidRule is returned when a rule definition is malformed.
	ErrInvalidRule = errors.New("provisioning: invalid rule")

	// ErrNoExecutor is returned when no executor is registered for an
	// action's type.
	ErrNoExecutor = errors.New("provisioning: no executor for action type")
)

// Executor performs the side effect of one action type. Implementations
// live outside this package (role assignment, membership changes,
// notification delivery are delegated to their owning services).
type Executor interface {
	Execute(ctx context.Context, a *Action) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, a *Action) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, a *Action) error { return f(ctx, a) }

// Authorizer gates approve/reject on an authorization decision. The
// gatewise engine satisfies this via its CheckPermission entry point.
type Authorizer interface {
	Authorize(ctx context.Context, userID, orgID, action, resourceType, resourceID string) (bool, error)
}

// ConditionEvaluator evaluates a rule's condition expression. The gatewise
// condition evaluator satisfies this interface.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, expr *conditional.Expression, ec conditional.EvalContext) (bool, error)
}

// Event is a lifecycle/membership occurrence delivered to FireEvent.
type Event struct {
	Type        EventType
	OrgID       string
	UserID      string
	WorkspaceID string
	Payload     map[string]any
}

// Observer is notified after an action status change is committed.
// Observers run on the transition path and must not block.
type Observer func(ctx context.Context, a *Action)

// Engine sequences provisioning rules and actions.
type Engine struct {
	store      Store
	authorizer Authorizer
	evaluator  ConditionEvaluator
	executors  map[ActionType]Executor
	observers  []Observer
	clock      clockwork.Clock
	logger     *slog.Logger
	cronParser cron.Parser
}

// EngineOption configures a provisioning Engine.
type EngineOption func(*Engine)

// WithAuthorizer sets the approval authorizer. Without one, approvals are
// rejected outright (fail closed).
func WithAuthorizer(a Authorizer) EngineOption { return func(e *Engine) { e.authorizer = a } }

// WithConditionEvaluator sets the evaluator used by CONDITION rules.
func WithConditionEvaluator(ev ConditionEvaluator) EngineOption {
	return func(e *Engine) { e.evaluator = ev }
}

// WithExecutor registers the executor for an action type.
func WithExecutor(t ActionType, ex Executor) EngineOption {
	return func(e *Engine) { e.executors[t] = ex }
}

// WithObserver registers an observer of committed status changes.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithClock sets the engine clock.
func WithClock(c clockwork.Clock) EngineOption { return func(e *Engine) { e.clock = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption { return func(e *Engine) { e.logger = l } }

// NewEngine creates a provisioning engine over the given store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		executors:  make(map[ActionType]Executor),
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default(),
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateRule checks a rule definition: a known trigger, the trigger's
// payload present and well formed, and at least one action entry.
func (e *Engine) ValidateRule(r *Rule) error {
	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: rule requires at least one action", ErrInvalidRule)
	}
	switch r.Trigger {
	case TriggerEvent:
		if r.Event == "" {
			return fmt.Errorf("%w: EVENT rule requires an event type", ErrInvalidRule)
		}
	case TriggerSchedule:
		if _, err := e.cronParser.Parse(r.Schedule); err != nil {
			return fmt.Errorf("%w: bad schedule %q: %v", ErrInvalidRule, r.Schedule, err)
		}
	case TriggerCondition:
		if r.Condition == nil {
			return fmt.Errorf("%w: CONDITION rule requires an expression", ErrInvalidRule)
		}
		if err := r.Condition.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	default:
		return fmt.Errorf("%w: unknown trigger %q", ErrInvalidRule, r.Trigger)
	}
	return nil
}

// CreateRule validates and persists a rule.
func (e *Engine) CreateRule(ctx context.Context, r *Rule) error {
	if err := e.ValidateRule(r); err != nil {
		return err
	}
	if r.ID.IsNil() {
		r.ID = id.NewRuleID()
	}
	if r.Status == "" {
		r.Status = RuleActive
	}
	now := e.clock.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	return e.store.CreateRule(ctx, r)
}

// FireEvent spawns the actions of every active EVENT rule subscribed to
// the event's type within the event's organization, preserving each
// rule's configured action order. It returns the spawned actions.
func (e *Engine) FireEvent(ctx context.Context, ev Event) ([]*Action, error) {
	rules, err := e.store.ListRules(ctx, &RuleFilter{
		OrgID:   ev.OrgID,
		Trigger: TriggerEvent,
		Status:  RuleActive,
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning: list event rules: %w", err)
	}

	var spawned []*Action
	for _, r := range rules {
		if r.Event != ev.Type {
			continue
		}
		actions, err := e.spawnActions(ctx, r, ev.UserID)
		if err != nil {
			return spawned, err
		}
		spawned = append(spawned, actions...)
	}
	return spawned, nil
}

// RunDueSchedules fires every active SCHEDULE rule whose next run time
// (after its last run) is not after now. targetUserID names the subject
// the spawned actions apply to.
func (e *Engine) RunDueSchedules(ctx context.Context, orgID, targetUserID string, now time.Time) ([]*Action, error) {
	rules, err := e.store.ListRules(ctx, &RuleFilter{
		OrgID:   orgID,
		Trigger: TriggerSchedule,
		Status:  RuleActive,
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning: list schedule rules: %w", err)
	}

	var spawned []*Action
	for _, r := range rules {
		sched, err := e.cronParser.Parse(r.Schedule)
		if err != nil {
			e.logger.Error("provisioning: unparseable schedule on stored rule",
				"rule_id", r.ID, "schedule", r.Schedule, "error", err)
			continue
		}
		last := r.CreatedAt
		if r.LastRunAt != nil {
			last = *r.LastRunAt
		}
		if sched.Next(last).After(now) {
			continue
		}
		actions, err := e.spawnActions(ctx, r, targetUserID)
		if err != nil {
			return spawned, err
		}
		if err := e.store.SetRuleLastRun(ctx, r.ID, now); err != nil {
			return spawned, fmt.Errorf("provisioning: record rule run: %w", err)
		}
		spawned = append(spawned, actions...)
	}
	return spawned, nil
}

// EvaluateConditionRules fires every active CONDITION rule whose
// expression holds for the given evaluation context. Evaluation failures
// on one rule are logged and skip that rule (fail closed) rather than
// aborting the sweep.
func (e *Engine) EvaluateConditionRules(ctx context.Context, ec conditional.EvalContext) ([]*Action, error) {
	if e.evaluator == nil {
		return nil, fmt.Errorf("%w: no condition evaluator configured", ErrInvalidRule)
	}
	rules, err := e.store.ListRules(ctx, &RuleFilter{
		OrgID:   ec.OrgID,
		Trigger: TriggerCondition,
		Status:  RuleActive,
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning: list condition rules: %w", err)
	}

	var spawned []*Action
	for _, r := range rules {
		ok, err := e.evaluator.Evaluate(ctx, r.Condition, ec)
		if err != nil {
			e.logger.Warn("provisioning: condition evaluation failed, rule skipped",
				"rule_id", r.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		actions, err := e.spawnActions(ctx, r, ec.UserID)
		if err != nil {
			return spawned, err
		}
		spawned = append(spawned, actions...)
	}
	return spawned, nil
}

func (e *Engine) spawnActions(ctx context.Context, r *Rule, userID string) ([]*Action, error) {
	now := e.clock.Now().UTC()
	actions := make([]*Action, 0, len(r.Actions))
	for i, spec := range r.Actions {
		status := StatusPending
		if spec.RequiresApproval {
			status = StatusRequiresApproval
		}
		rid := r.ID
		a := &Action{
			ID:         id.NewActionID(),
			RuleID:     &rid,
			OrgID:      r.OrgID,
			UserID:     userID,
			Type:       spec.Type,
			Parameters: spec.Parameters,
			Status:     status,
			Sequence:   i,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := e.store.CreateAction(ctx, a); err != nil {
			return actions, fmt.Errorf("provisioning: create action for rule %s: %w", r.ID, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// Enqueue creates an ad hoc action outside any rule.
func (e *Engine) Enqueue(ctx context.Context, a *Action) error {
	if a.ID.IsNil() {
		a.ID = id.NewActionID()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.Status != StatusPending && a.Status != StatusRequiresApproval {
		return fmt.Errorf("%w: new action must start PENDING or REQUIRES_APPROVAL", ErrInvalidTransition)
	}
	now := e.clock.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	return e.store.CreateAction(ctx, a)
}

// Execute runs a PENDING or APPROVED action: IN_PROGRESS, then the
// registered executor, then COMPLETED or FAILED.
func (e *Engine) Execute(ctx context.Context, actionID id.ActionID) (*Action, error) {
	a, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if err := e.transition(ctx, a, StatusInProgress); err != nil {
		return nil, err
	}

	ex, ok := e.executors[a.Type]
	if !ok {
		a.Error = fmt.Sprintf("no executor for action type %s", a.Type)
		if terr := e.transition(ctx, a, StatusFailed); terr != nil {
			return nil, terr
		}
		return a, fmt.Errorf("%w: %s", ErrNoExecutor, a.Type)
	}

	if execErr := ex.Execute(ctx, a); execErr != nil {
		a.Error = execErr.Error()
		if terr := e.transition(ctx, a, StatusFailed); terr != nil {
			return nil, terr
		}
		e.logger.Warn("provisioning: action failed",
			"action_id", a.ID, "type", a.Type, "error", execErr)
		return a, nil
	}

	if err := e.transition(ctx, a, StatusCompleted); err != nil {
		return nil, err
	}
	return a, nil
}

// ExecutePending executes every PENDING action in the organization in
// creation/sequence order. Individual failures are recorded on the action
// and do not stop the sweep.
func (e *Engine) ExecutePending(ctx context.Context, orgID string) error {
	pending, err := e.store.ListActions(ctx, &ActionFilter{OrgID: orgID, Status: StatusPending})
	if err != nil {
		return fmt.Errorf("provisioning: list pending actions: %w", err)
	}
	for _, a := range pending {
		if _, err := e.Execute(ctx, a.ID); err != nil && !errors.Is(err, ErrNoExecutor) {
			return err
		}
	}
	return nil
}

// Approve authorizes and approves a REQUIRES_APPROVAL action, then
// executes it immediately.
func (e *Engine) Approve(ctx context.Context, actionID id.ActionID, approverID string) (*Action, error) {
	a, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if err := e.authorizeApprover(ctx, a, approverID); err != nil {
		return nil, err
	}
	a.ApprovedBy = approverID
	if err := e.transition(ctx, a, StatusApproved); err != nil {
		return nil, err
	}
	return e.Execute(ctx, actionID)
}

// Reject authorizes and rejects a REQUIRES_APPROVAL action. REJECTED is
// terminal; the reason is recorded on the action.
func (e *Engine) Reject(ctx context.Context, actionID id.ActionID, approverID, reason string) (*Action, error) {
	a, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if err := e.authorizeApprover(ctx, a, approverID); err != nil {
		return nil, err
	}
	a.ApprovedBy = approverID
	a.RejectionReason = reason
	if err := e.transition(ctx, a, StatusRejected); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel cancels an action from any non-terminal status.
func (e *Engine) Cancel(ctx context.Context, actionID id.ActionID) (*Action, error) {
	a, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if err := e.transition(ctx, a, StatusCancelled); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Engine) authorizeApprover(ctx context.Context, a *Action, approverID string) error {
	if e.authorizer == nil {
		return fmt.Errorf("%w: no authorizer configured", ErrNotAuthorized)
	}
	ok, err := e.authorizer.Authorize(ctx, approverID, a.OrgID, "approve", "provisioning_action", a.ID.String())
	if err != nil {
		return fmt.Errorf("provisioning: authorize approver: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotAuthorized, approverID)
	}
	return nil
}

func (e *Engine) transition(ctx context.Context, a *Action, to Status) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	now := e.clock.Now().UTC()
	a.UpdatedAt = now
	if to.Terminal() {
		a.CompletedAt = &now
	}
	if err := e.store.UpdateAction(ctx, a); err != nil {
		return fmt.Errorf("provisioning: update action %s: %w", a.ID, err)
	}
	for _, o := range e.observers {
		o(ctx, a)
	}
	return nil
}
