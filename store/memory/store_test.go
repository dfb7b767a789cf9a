package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatewise/gatewise"
	"github.com/gatewise/gatewise/grant"
	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/lifecycle"
	"github.com/gatewise/gatewise/permission"
	"github.com/gatewise/gatewise/provisioning"
	"github.com/gatewise/gatewise/role"
	"github.com/gatewise/gatewise/temporal"
)

func TestPermissionCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &permission.Permission{
		ID:       id.NewPermissionID(),
		OrgID:    "org_1",
		Name:     "chatflow:read",
		Resource: "chatflow",
		Action:   "read",
		Scope:    permission.ScopeResource,
	}
	if err := s.CreatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPermission(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "chatflow:read" {
		t.Errorf("name = %s", got.Name)
	}

	// Duplicate (org, name) rejected.
	dup := &permission.Permission{ID: id.NewPermissionID(), OrgID: "org_1", Name: "chatflow:read"}
	if err := s.CreatePermission(ctx, dup); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("duplicate create err = %v, want ErrValidation", err)
	}

	byName, err := s.GetPermissionByName(ctx, "org_1", "chatflow:read")
	if err != nil {
		t.Fatal(err)
	}
	if byName.ID != p.ID {
		t.Error("GetPermissionByName returned wrong permission")
	}

	if _, err := s.GetPermission(ctx, id.NewPermissionID()); !errors.Is(err, gatewise.ErrNotFound) {
		t.Errorf("missing get err = %v, want ErrNotFound", err)
	}
}

func TestRoleVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{
		ID:      id.NewRoleID(),
		OrgID:   "org_1",
		Name:    "Editor",
		Slug:    "editor",
		Type:    role.TypeCustom,
		Version: 1,
	}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	r.Version = 2
	r.Name = "Editor v2"
	if err := s.UpdateRole(ctx, r, 1); err != nil {
		t.Fatal(err)
	}

	// Stale writer still holds version 1.
	stale := *r
	stale.Name = "Stale"
	if err := s.UpdateRole(ctx, &stale, 1); !errors.Is(err, gatewise.ErrVersionConflict) {
		t.Errorf("stale update err = %v, want ErrVersionConflict", err)
	}
}

func TestRolePermissionAttachment(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{ID: id.NewRoleID(), OrgID: "org_1", Name: "Viewer", Slug: "viewer", Version: 1}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	p1 := id.NewPermissionID()
	p2 := id.NewPermissionID()
	if err := s.AttachPermission(ctx, r.ID, p1); err != nil {
		t.Fatal(err)
	}
	// Attaching the same pair twice is a no-op.
	if err := s.AttachPermission(ctx, r.ID, p1); err != nil {
		t.Fatal(err)
	}
	if err := s.AttachPermission(ctx, r.ID, p2); err != nil {
		t.Fatal(err)
	}

	perms, err := s.ListRolePermissions(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 2 {
		t.Fatalf("got %d permissions, want 2", len(perms))
	}

	if err := s.DetachPermission(ctx, r.ID, p1); err != nil {
		t.Fatal(err)
	}
	perms, _ = s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 1 || perms[0] != p2 {
		t.Errorf("after detach: %v", perms)
	}
}

func TestGrantTupleSemantics(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := &grant.Grant{
		ID:           id.NewGrantID(),
		UserID:       "user_1",
		ResourceType: "chatflow",
		ResourceID:   "flow_1",
		Permission:   "chatflow:read",
		CreatedAt:    time.Now(),
	}
	if err := s.CreateGrant(ctx, g); err != nil {
		t.Fatal(err)
	}

	found, err := s.FindGrant(ctx, "user_1", "chatflow", "flow_1", "chatflow:read")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != g.ID {
		t.Fatal("expected to find grant by tuple")
	}

	// Absent tuple returns nil, nil.
	missing, err := s.FindGrant(ctx, "user_1", "chatflow", "flow_2", "chatflow:read")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("expected nil for absent tuple")
	}

	removed, err := s.DeleteGrant(ctx, "user_1", "chatflow", "flow_1", "chatflow:read")
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("expected delete to report removal")
	}
	removed, _ = s.DeleteGrant(ctx, "user_1", "chatflow", "flow_1", "chatflow:read")
	if removed {
		t.Error("second delete should report no removal")
	}
}

func TestTemporalWildcardKey(t *testing.T) {
	ctx := context.Background()
	s := New()

	permID := id.NewPermissionID()
	wildcard := &temporal.Grant{
		ID:           id.NewTemporalID(),
		UserID:       "user_1",
		PermissionID: permID,
		ResourceType: "chatflow",
		Type:         temporal.TypeTemporary,
		IsActive:     true,
	}
	scoped := &temporal.Grant{
		ID:           id.NewTemporalID(),
		UserID:       "user_1",
		PermissionID: permID,
		ResourceType: "chatflow",
		ResourceID:   "flow_1",
		Type:         temporal.TypeTemporary,
		IsActive:     true,
	}
	inactive := &temporal.Grant{
		ID:           id.NewTemporalID(),
		UserID:       "user_1",
		PermissionID: permID,
		ResourceType: "chatflow",
		ResourceID:   "flow_1",
		Type:         temporal.TypeTemporary,
	}
	for _, g := range []*temporal.Grant{wildcard, scoped, inactive} {
		if err := s.CreateTemporal(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListActiveTemporalsForKey(ctx, "user_1", permID, "chatflow", "flow_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d grants, want wildcard + scoped", len(got))
	}

	// A different resource only matches the wildcard row.
	got, _ = s.ListActiveTemporalsForKey(ctx, "user_1", permID, "chatflow", "flow_2")
	if len(got) != 1 || got[0].ID != wildcard.ID {
		t.Errorf("wildcard-only lookup: %v", got)
	}
}

func TestLifecycleAppendOnlyLog(t *testing.T) {
	ctx := context.Background()
	s := New()

	cur, err := s.CurrentLifecycleState(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if cur != nil {
		t.Fatal("expected nil state for unknown user")
	}

	base := time.Now()
	for i, st := range []lifecycle.State{lifecycle.StateInvited, lifecycle.StateRegistered, lifecycle.StateActive} {
		e := &lifecycle.Entry{
			ID:        id.NewLifecycleID(),
			UserID:    "user_1",
			State:     st,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendLifecycleEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	cur, err = s.CurrentLifecycleState(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if cur.State != lifecycle.StateActive {
		t.Errorf("current state = %s, want ACTIVE", cur.State)
	}

	history, err := s.ListLifecycleHistory(ctx, &lifecycle.HistoryFilter{UserID: "user_1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].State != lifecycle.StateActive || history[2].State != lifecycle.StateInvited {
		t.Error("history should be newest first")
	}
}

func TestActionOrderPreserved(t *testing.T) {
	ctx := context.Background()
	s := New()

	ruleID := id.NewRuleID()
	now := time.Now()
	for i := 0; i < 3; i++ {
		a := &provisioning.Action{
			ID:        id.NewActionID(),
			RuleID:    &ruleID,
			OrgID:     "org_1",
			UserID:    "user_1",
			Type:      provisioning.ActionAssignRole,
			Status:    provisioning.StatusPending,
			Sequence:  i,
			CreatedAt: now, // identical timestamps; insertion order must win
		}
		if err := s.CreateAction(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	actions, err := s.ListActions(ctx, &provisioning.ActionFilter{RuleID: &ruleID})
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions", len(actions))
	}
	for i, a := range actions {
		if a.Sequence != i {
			t.Errorf("position %d has sequence %d", i, a.Sequence)
		}
	}
}

func TestRuleLastRun(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &provisioning.Rule{
		ID:       id.NewRuleID(),
		OrgID:    "org_1",
		Name:     "daily sync",
		Trigger:  provisioning.TriggerSchedule,
		Schedule: "0 9 * * *",
		Status:   provisioning.RuleActive,
	}
	if err := s.CreateRule(ctx, r); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	if err := s.SetRuleLastRun(ctx, r.ID, at); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(at) {
		t.Errorf("LastRunAt = %v", got.LastRunAt)
	}
}

func TestCopyOnRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{ID: id.NewRoleID(), OrgID: "org_1", Name: "Viewer", Slug: "viewer", Version: 1}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetRole(ctx, r.ID)
	got.Name = "mutated"

	again, _ := s.GetRole(ctx, r.ID)
	if again.Name != "Viewer" {
		t.Error("store returned a shared pointer; reads must copy")
	}
}
