// Package provisioning defines event-, schedule-, and condition-triggered
// rules that spawn ordered provisioning actions, each optionally gated by
// an approval workflow. Executing an individual action type (role
// assignment, membership change, notification) is delegated to external
// collaborators; this package owns sequencing, status tracking, and the
// approval gate.
package provisioning

import (
	"time"

	"github.com/gatewise/gatewise/conditional"
	"github.com/gatewise/gatewise/id"
)

// TriggerType identifies what fires a rule.
type TriggerType string

const (
	// TriggerEvent fires on a lifecycle or membership event.
	TriggerEvent TriggerType = "EVENT"

	// TriggerSchedule fires on a cron schedule.
	TriggerSchedule TriggerType = "SCHEDULE"

	// TriggerCondition fires when an attribute condition holds for a subject.
	TriggerCondition TriggerType = "CONDITION"
)

// EventType is the fixed enum of lifecycle/membership events rules can
// subscribe to.
type EventType string

const (
	EventUserInvited      EventType = "USER_INVITED"
	EventUserRegistered   EventType = "USER_REGISTERED"
	EventUserActivated    EventType = "USER_ACTIVATED"
	EventUserDeactivated  EventType = "USER_DEACTIVATED"
	EventUserSuspended    EventType = "USER_SUSPENDED"
	EventUserDeleted      EventType = "USER_DELETED"
	EventMemberAdded      EventType = "MEMBER_ADDED"
	EventMemberRemoved    EventType = "MEMBER_REMOVED"
	EventWorkspaceCreated EventType = "WORKSPACE_CREATED"
)

// RuleStatus is the administrative state of a rule.
type RuleStatus string

const (
	// RuleActive rules are eligible to fire.
	RuleActive RuleStatus = "ACTIVE"

	// RuleDisabled rules never fire.
	RuleDisabled RuleStatus = "DISABLED"
)

// ActionType identifies what an action does when executed.
type ActionType string

const (
	ActionAssignRole       ActionType = "ASSIGN_ROLE"
	ActionRevokeRole       ActionType = "REVOKE_ROLE"
	ActionAddToOrg         ActionType = "ADD_TO_ORGANIZATION"
	ActionRemoveFromOrg    ActionType = "REMOVE_FROM_ORGANIZATION"
	ActionAddToWorkspace   ActionType = "ADD_TO_WORKSPACE"
	ActionRemoveFromWspace ActionType = "REMOVE_FROM_WORKSPACE"
	ActionSendNotification ActionType = "SEND_NOTIFICATION"
)

// ActionSpec is one configured action entry on a rule. Entries execute in
// slice order; RequiresApproval routes the spawned action through the
// approval gate before execution.
type ActionSpec struct {
	Type             ActionType     `json:"type"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	RequiresApproval bool           `json:"requiresApproval,omitempty"`
}

// Rule is a provisioning rule. Exactly one trigger field is meaningful for
// its TriggerType: Event for EVENT, Schedule (cron expression) for
// SCHEDULE, Condition for CONDITION.
type Rule struct {
	ID          id.RuleID               `json:"id" db:"id"`
	OrgID       string                  `json:"org_id" db:"org_id"`
	Name        string                  `json:"name" db:"name"`
	Description string                  `json:"description,omitempty" db:"description"`
	Trigger     TriggerType             `json:"trigger" db:"trigger"`
	Event       EventType               `json:"event,omitempty" db:"event"`
	Schedule    string                  `json:"schedule,omitempty" db:"schedule"`
	Condition   *conditional.Expression `json:"condition,omitempty" db:"-"`
	Actions     []ActionSpec            `json:"actions" db:"-"`
	Status      RuleStatus              `json:"status" db:"status"`
	LastRunAt   *time.Time              `json:"last_run_at,omitempty" db:"last_run_at"`
	CreatedAt   time.Time               `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at" db:"updated_at"`
}

// Status is the lifecycle state of a spawned action.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusRequiresApproval Status = "REQUIRES_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
	StatusCancelled        Status = "CANCELLED"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// actionTransitions is the legal-edge table for action statuses.
// CANCELLED is additionally reachable from every non-terminal status.
var actionTransitions = map[Status][]Status{
	StatusPending:          {StatusInProgress},
	StatusRequiresApproval: {StatusApproved, StatusRejected},
	StatusApproved:         {StatusInProgress},
	StatusInProgress:       {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from→to is a legal status edge.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	for _, s := range actionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Action is one provisioning action instance, spawned from a rule entry or
// created ad hoc. Sequence preserves the rule's configured action order.
type Action struct {
	ID              id.ActionID    `json:"id" db:"id"`
	RuleID          *id.RuleID     `json:"rule_id,omitempty" db:"rule_id"`
	OrgID           string         `json:"org_id" db:"org_id"`
	UserID          string         `json:"user_id" db:"user_id"`
	Type            ActionType     `json:"type" db:"type"`
	Parameters      map[string]any `json:"parameters,omitempty" db:"metadata"`
	Status          Status         `json:"status" db:"status"`
	Sequence        int            `json:"sequence" db:"sequence"`
	ApprovedBy      string         `json:"approved_by,omitempty" db:"approved_by"`
	RejectionReason string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Error           string         `json:"error,omitempty" db:"error"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// RuleFilter contains filters for listing rules.
type RuleFilter struct {
	OrgID   string      `json:"org_id,omitempty"`
	Trigger TriggerType `json:"trigger,omitempty"`
	Status  RuleStatus  `json:"status,omitempty"`
	Limit   int         `json:"limit,omitempty"`
	Offset  int         `json:"offset,omitempty"`
}

// ActionFilter contains filters for listing actions.
type ActionFilter struct {
	RuleID *id.RuleID `json:"rule_id,omitempty"`
	OrgID  string     `json:"org_id,omitempty"`
	UserID string     `json:"user_id,omitempty"`
	Status Status     `json:"status,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}
