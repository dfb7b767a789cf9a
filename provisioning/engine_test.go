package provisioning

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gatewise/gatewise/conditional"
	"github.com/gatewise/gatewise/id"
)

// memStore is a minimal in-memory Store for engine tests.
type memStore struct {
	mu      sync.Mutex
	rules   map[id.RuleID]*Rule
	actions map[id.ActionID]*Action
}

func newMemStore() *memStore {
	return &memStore{
		rules:   make(map[id.RuleID]*Rule),
		actions: make(map[id.ActionID]*Action),
	}
}

func (s *memStore) CreateRule(_ context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *memStore) GetRule(_ context.Context, ruleID id.RuleID) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok {
		return nil, errors.New("rule not found")
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) UpdateRule(_ context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *memStore) DeleteRule(_ context.Context, ruleID id.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, ruleID)
	return nil
}

func (s *memStore) ListRules(_ context.Context, filter *RuleFilter) ([]*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Rule
	for _, r := range s.rules {
		if filter != nil {
			if filter.OrgID != "" && r.OrgID != filter.OrgID {
				continue
			}
			if filter.Trigger != "" && r.Trigger != filter.Trigger {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) SetRuleLastRun(_ context.Context, ruleID id.RuleID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok {
		return errors.New("rule not found")
	}
	r.LastRunAt = &at
	return nil
}

func (s *memStore) CreateAction(_ context.Context, a *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *memStore) GetAction(_ context.Context, actionID id.ActionID) (*Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[actionID]
	if !ok {
		return nil, errors.New("action not found")
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) UpdateAction(_ context.Context, a *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *memStore) ListActions(_ context.Context, filter *ActionFilter) ([]*Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Action
	for _, a := range s.actions {
		if filter != nil {
			if filter.OrgID != "" && a.OrgID != filter.OrgID {
				continue
			}
			if filter.UserID != "" && a.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && a.Status != filter.Status {
				continue
			}
			if filter.RuleID != nil && (a.RuleID == nil || *a.RuleID != *filter.RuleID) {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

type allowAll struct{}

func (allowAll) Authorize(context.Context, string, string, string, string, string) (bool, error) {
	return true, nil
}

type denyAll struct{}

func (denyAll) Authorize(context.Context, string, string, string, string, string) (bool, error) {
	return false, nil
}

func noopExecutor() (Executor, *[]id.ActionID) {
	var ran []id.ActionID
	return ExecutorFunc(func(_ context.Context, a *Action) error {
		ran = append(ran, a.ID)
		return nil
	}), &ran
}

func TestFireEventSpawnsOrderedActions(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)

	rule := &Rule{
		OrgID:   "org_1",
		Name:    "onboard",
		Trigger: TriggerEvent,
		Event:   EventUserRegistered,
		Actions: []ActionSpec{
			{Type: ActionAssignRole, Parameters: map[string]any{"role": "member"}},
			{Type: ActionAddToWorkspace, Parameters: map[string]any{"workspace": "default"}},
			{Type: ActionSendNotification},
		},
	}
	if err := e.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	spawned, err := e.FireEvent(context.Background(), Event{
		Type:   EventUserRegistered,
		OrgID:  "org_1",
		UserID: "user_1",
	})
	if err != nil {
		t.Fatalf("FireEvent: %v", err)
	}
	if len(spawned) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(spawned))
	}
	want := []ActionType{ActionAssignRole, ActionAddToWorkspace, ActionSendNotification}
	for i, a := range spawned {
		if a.Type != want[i] {
			t.Errorf("action %d: type = %s, want %s", i, a.Type, want[i])
		}
		if a.Sequence != i {
			t.Errorf("action %d: sequence = %d, want %d", i, a.Sequence, i)
		}
		if a.Status != StatusPending {
			t.Errorf("action %d: status = %s, want PENDING", i, a.Status)
		}
		if a.UserID != "user_1" {
			t.Errorf("action %d: user = %s, want user_1", i, a.UserID)
		}
	}
}

func TestFireEventIgnoresOtherEventsAndDisabledRules(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)

	other := &Rule{
		OrgID:   "org_1",
		Trigger: TriggerEvent,
		Event:   EventUserSuspended,
		Actions: []ActionSpec{{Type: ActionRevokeRole}},
	}
	if err := e.CreateRule(context.Background(), other); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	disabled := &Rule{
		OrgID:   "org_1",
		Trigger: TriggerEvent,
		Event:   EventUserRegistered,
		Status:  RuleDisabled,
		Actions: []ActionSpec{{Type: ActionAssignRole}},
	}
	if err := e.CreateRule(context.Background(), disabled); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	spawned, err := e.FireEvent(context.Background(), Event{
		Type:   EventUserRegistered,
		OrgID:  "org_1",
		UserID: "user_1",
	})
	if err != nil {
		t.Fatalf("FireEvent: %v", err)
	}
	if len(spawned) != 0 {
		t.Fatalf("expected no actions, got %d", len(spawned))
	}
}

func TestApprovalGate(t *testing.T) {
	store := newMemStore()
	exec, ran := noopExecutor()
	e := NewEngine(store,
		WithAuthorizer(allowAll{}),
		WithExecutor(ActionAssignRole, exec),
	)

	rule := &Rule{
		OrgID:   "org_1",
		Trigger: TriggerEvent,
		Event:   EventMemberAdded,
		Actions: []ActionSpec{{Type: ActionAssignRole, RequiresApproval: true}},
	}
	if err := e.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	spawned, err := e.FireEvent(context.Background(), Event{
		Type: EventMemberAdded, OrgID: "org_1", UserID: "user_1",
	})
	if err != nil {
		t.Fatalf("FireEvent: %v", err)
	}
	if spawned[0].Status != StatusRequiresApproval {
		t.Fatalf("status = %s, want REQUIRES_APPROVAL", spawned[0].Status)
	}

	// Gated actions must not run before approval.
	if _, err := e.Execute(context.Background(), spawned[0].ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Execute before approval: err = %v, want ErrInvalidTransition", err)
	}
	if len(*ran) != 0 {
		t.Fatal("executor ran before approval")
	}

	got, err := e.Approve(context.Background(), spawned[0].ID, "admin_1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if got.ApprovedBy != "admin_1" {
		t.Errorf("approved_by = %q, want admin_1", got.ApprovedBy)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if len(*ran) != 1 {
		t.Fatalf("executor runs = %d, want 1", len(*ran))
	}
}

func TestApproveDeniedByAuthorizer(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithAuthorizer(denyAll{}))

	a := &Action{OrgID: "org_1", UserID: "user_1", Type: ActionAssignRole, Status: StatusRequiresApproval}
	if err := e.Enqueue(context.Background(), a); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := e.Approve(context.Background(), a.ID, "intruder"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
	got, err := store.GetAction(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetAction: %v", err)
	}
	if got.Status != StatusRequiresApproval {
		t.Errorf("status = %s, want REQUIRES_APPROVAL (unchanged)", got.Status)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithAuthorizer(allowAll{}))

	a := &Action{OrgID: "org_1", UserID: "user_1", Type: ActionRevokeRole, Status: StatusRequiresApproval}
	if err := e.Enqueue(context.Background(), a); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := e.Reject(context.Background(), a.ID, "admin_1", "not needed")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != StatusRejected {
		t.Errorf("status = %s, want REJECTED", got.Status)
	}
	if got.RejectionReason != "not needed" {
		t.Errorf("rejection_reason = %q", got.RejectionReason)
	}

	if _, err := e.Cancel(context.Background(), a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Cancel after reject: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := e.Approve(context.Background(), a.ID, "admin_1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Approve after reject: err = %v, want ErrInvalidTransition", err)
	}
}

func TestExecuteRecordsFailure(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store,
		WithExecutor(ActionSendNotification, ExecutorFunc(func(context.Context, *Action) error {
			return errors.New("smtp unreachable")
		})),
	)

	a := &Action{OrgID: "org_1", UserID: "user_1", Type: ActionSendNotification}
	if err := e.Enqueue(context.Background(), a); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := e.Execute(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.Error != "smtp unreachable" {
		t.Errorf("error = %q", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set on failure")
	}
}

func TestExecuteWithoutExecutorFails(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)

	a := &Action{OrgID: "org_1", UserID: "user_1", Type: ActionAddToOrg}
	if err := e.Enqueue(context.Background(), a); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := e.Execute(context.Background(), a.ID)
	if !errors.Is(err, ErrNoExecutor) {
		t.Fatalf("err = %v, want ErrNoExecutor", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
}

func TestCancelNonTerminal(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)

	a := &Action{OrgID: "org_1", UserID: "user_1", Type: ActionAssignRole}
	if err := e.Enqueue(context.Background(), a); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := e.Cancel(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
}

func TestRunDueSchedules(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	store := newMemStore()
	e := NewEngine(store, WithClock(clock))

	rule := &Rule{
		OrgID:    "org_1",
		Trigger:  TriggerSchedule,
		Schedule: "0 9 * * *", // daily at 09:00
		Actions:  []ActionSpec{{Type: ActionSendNotification}},
	}
	if err := e.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	// Before the first 09:00 after creation: nothing due.
	spawned, err := e.RunDueSchedules(context.Background(), "org_1", "user_1",
		time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunDueSchedules: %v", err)
	}
	if len(spawned) != 0 {
		t.Fatalf("expected nothing due at 08:00, got %d actions", len(spawned))
	}

	// Past 09:00: the rule fires once and records the run.
	spawned, err = e.RunDueSchedules(context.Background(), "org_1", "user_1",
		time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunDueSchedules: %v", err)
	}
	if len(spawned) != 1 {
		t.Fatalf("expected 1 action, got %d", len(spawned))
	}

	// Same sweep window again: last run recorded, nothing due.
	spawned, err = e.RunDueSchedules(context.Background(), "org_1", "user_1",
		time.Date(2024, 3, 1, 9, 45, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunDueSchedules: %v", err)
	}
	if len(spawned) != 0 {
		t.Fatalf("expected nothing due after recorded run, got %d actions", len(spawned))
	}
}

type stubEvaluator struct {
	result bool
	err    error
}

func (s stubEvaluator) Evaluate(context.Context, *conditional.Expression, conditional.EvalContext) (bool, error) {
	return s.result, s.err
}

func TestEvaluateConditionRules(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithConditionEvaluator(stubEvaluator{result: true}))

	rule := &Rule{
		OrgID:   "org_1",
		Trigger: TriggerCondition,
		Condition: conditional.Condition(
			conditional.OpEquals,
			conditional.Attr("user", "department"),
			conditional.Literal("engineering"),
		),
		Actions: []ActionSpec{{Type: ActionAddToWorkspace}},
	}
	if err := e.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	spawned, err := e.EvaluateConditionRules(context.Background(), conditional.EvalContext{
		UserID: "user_1", OrgID: "org_1",
	})
	if err != nil {
		t.Fatalf("EvaluateConditionRules: %v", err)
	}
	if len(spawned) != 1 {
		t.Fatalf("expected 1 action, got %d", len(spawned))
	}
}

func TestEvaluateConditionRulesSkipsFailedEvaluation(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithConditionEvaluator(stubEvaluator{err: errors.New("missing attribute provider")}))

	rule := &Rule{
		OrgID:   "org_1",
		Trigger: TriggerCondition,
		Condition: conditional.Condition(
			conditional.OpEquals,
			conditional.Attr("user", "department"),
			conditional.Literal("engineering"),
		),
		Actions: []ActionSpec{{Type: ActionAddToWorkspace}},
	}
	if err := e.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	spawned, err := e.EvaluateConditionRules(context.Background(), conditional.EvalContext{OrgID: "org_1"})
	if err != nil {
		t.Fatalf("EvaluateConditionRules: %v", err)
	}
	if len(spawned) != 0 {
		t.Fatalf("evaluation error must fail closed, got %d actions", len(spawned))
	}
}

func TestValidateRule(t *testing.T) {
	e := NewEngine(newMemStore())

	cases := []struct {
		name    string
		rule    *Rule
		wantErr bool
	}{
		{"event ok", &Rule{Trigger: TriggerEvent, Event: EventUserRegistered, Actions: []ActionSpec{{Type: ActionAssignRole}}}, false},
		{"event missing type", &Rule{Trigger: TriggerEvent, Actions: []ActionSpec{{Type: ActionAssignRole}}}, true},
		{"schedule ok", &Rule{Trigger: TriggerSchedule, Schedule: "*/5 * * * *", Actions: []ActionSpec{{Type: ActionAssignRole}}}, false},
		{"schedule bad cron", &Rule{Trigger: TriggerSchedule, Schedule: "not a cron", Actions: []ActionSpec{{Type: ActionAssignRole}}}, true},
		{"condition missing expression", &Rule{Trigger: TriggerCondition, Actions: []ActionSpec{{Type: ActionAssignRole}}}, true},
		{"no actions", &Rule{Trigger: TriggerEvent, Event: EventUserRegistered}, true},
		{"unknown trigger", &Rule{Trigger: "WEBHOOK", Actions: []ActionSpec{{Type: ActionAssignRole}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := e.ValidateRule(tc.rule)
			if tc.wantErr && !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("err = %v, want ErrInvalidRule", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
