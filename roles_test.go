package gatewise_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gatewise/gatewise"
	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/role"
)

func TestCreateRoleDefaults(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	r := &role.Role{OrgID: "org_1", Name: "Support Agent (EU)"}
	if err := e.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}
	if r.ID.IsNil() {
		t.Error("ID not assigned")
	}
	if r.Slug != "support-agent-eu" {
		t.Errorf("slug = %q", r.Slug)
	}
	if r.Type != role.TypeCustom {
		t.Errorf("type = %s", r.Type)
	}
	if r.Version != 1 {
		t.Errorf("version = %d, want 1", r.Version)
	}
}

func TestCreateRoleValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if err := e.CreateRole(ctx, &role.Role{OrgID: "org_1"}); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("nameless role: err = %v", err)
	}
	if err := e.CreateRole(ctx, &role.Role{Name: "Orphan"}); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("orgless custom role: err = %v", err)
	}
	// System roles are global and need no organization.
	if err := e.CreateRole(ctx, &role.Role{Name: "Platform Admin", Type: role.TypeSystem}); err != nil {
		t.Errorf("system role: %v", err)
	}
}

func TestUpdateRoleVersionConflict(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	r := seedRole(t, e, "Viewer")

	// Two readers hold version 1; the second write is stale.
	fresh, err := e.GetRole(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	stale, err := e.GetRole(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}

	fresh.Description = "first writer"
	if err := e.UpdateRole(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	if fresh.Version != 2 {
		t.Errorf("version = %d, want 2", fresh.Version)
	}

	stale.Description = "second writer"
	if err := e.UpdateRole(ctx, stale); !errors.Is(err, gatewise.ErrVersionConflict) {
		t.Errorf("err = %v, want ErrVersionConflict", err)
	}
	// Failed write leaves the caller's copy at the version it read.
	if stale.Version != 1 {
		t.Errorf("stale version = %d, want 1", stale.Version)
	}

	// Retry after re-read succeeds.
	again, err := e.GetRole(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	again.Description = "second writer, retried"
	if err := e.UpdateRole(ctx, again); err != nil {
		t.Fatal(err)
	}
}

func TestSystemRoleImmutable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	sys := &role.Role{Name: "Platform Admin", Type: role.TypeSystem}
	if err := e.CreateRole(ctx, sys); err != nil {
		t.Fatal(err)
	}
	permID := seedPermission(t, e, "org_1", "chatflow", "read")
	other := seedRole(t, e, "Viewer")

	if err := e.UpdateRole(ctx, sys); !errors.Is(err, gatewise.ErrSystemRoleImmutable) {
		t.Errorf("update: err = %v", err)
	}
	if err := e.DeleteRole(ctx, sys.ID); !errors.Is(err, gatewise.ErrSystemRoleImmutable) {
		t.Errorf("delete: err = %v", err)
	}
	if err := e.SetRoleParent(ctx, sys.ID, &other.ID); !errors.Is(err, gatewise.ErrSystemRoleImmutable) {
		t.Errorf("set parent: err = %v", err)
	}
	if err := e.AttachRolePermission(ctx, sys.ID, permID); !errors.Is(err, gatewise.ErrSystemRoleImmutable) {
		t.Errorf("attach: err = %v", err)
	}
	if err := e.DetachRolePermission(ctx, sys.ID, permID); !errors.Is(err, gatewise.ErrSystemRoleImmutable) {
		t.Errorf("detach: err = %v", err)
	}
}

func TestDeleteRoleWithChildrenRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	parent := seedRole(t, e, "Base")
	child := seedRole(t, e, "Derived")
	if err := e.SetRoleParent(ctx, child.ID, &parent.ID); err != nil {
		t.Fatal(err)
	}

	if err := e.DeleteRole(ctx, parent.ID); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}

	// Detach the child, then deletion goes through.
	if err := e.SetRoleParent(ctx, child.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteRole(ctx, parent.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetRole(ctx, parent.ID); !errors.Is(err, gatewise.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetRoleParentCycleRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	a := seedRole(t, e, "A")
	b := seedRole(t, e, "B")
	c := seedRole(t, e, "C")
	if err := e.SetRoleParent(ctx, b.ID, &a.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.SetRoleParent(ctx, c.ID, &b.ID); err != nil {
		t.Fatal(err)
	}

	if err := e.SetRoleParent(ctx, a.ID, &a.ID); !errors.Is(err, gatewise.ErrCyclicInheritance) {
		t.Errorf("self parent: err = %v", err)
	}
	// Closing the chain A→B→C back onto A.
	if err := e.SetRoleParent(ctx, a.ID, &c.ID); !errors.Is(err, gatewise.ErrCyclicInheritance) {
		t.Errorf("transitive cycle: err = %v", err)
	}
}

func TestCreateRoleFromTemplateSnapshot(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	read := seedPermission(t, e, "org_1", "chatflow", "read")
	write := seedPermission(t, e, "org_1", "chatflow", "write")

	tpl := &role.Role{OrgID: "org_1", Name: "Analyst Template", IsTemplate: true, Priority: 40}
	if err := e.CreateRole(ctx, tpl); err != nil {
		t.Fatal(err)
	}
	if err := e.AttachRolePermission(ctx, tpl.ID, read); err != nil {
		t.Fatal(err)
	}

	r, err := e.CreateRoleFromTemplate(ctx, tpl.ID, "org_2", "EU Analyst")
	if err != nil {
		t.Fatal(err)
	}
	if r.OrgID != "org_2" || r.Priority != 40 || r.IsTemplate {
		t.Errorf("instantiated role = %+v", r)
	}
	if r.TemplateID == nil || *r.TemplateID != tpl.ID {
		t.Error("template provenance not recorded")
	}

	// The copy is a snapshot: growing the template afterwards must not
	// reach the instantiated role.
	if err := e.AttachRolePermission(ctx, tpl.ID, write); err != nil {
		t.Fatal(err)
	}
	effective, err := e.ResolveRolePermissions(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(effective) != 1 || effective[0].Permission.Name != "chatflow:read" {
		t.Errorf("effective = %d entries", len(effective))
	}
}

func TestCreateRoleFromTemplateRejectsNonTemplate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	plain := seedRole(t, e, "Viewer")

	if _, err := e.CreateRoleFromTemplate(ctx, plain.ID, "org_1", "Copy"); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if _, err := e.CreateRoleFromTemplate(ctx, id.NewRoleID(), "org_1", "Copy"); !errors.Is(err, gatewise.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAttachPermissionIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	permID := seedPermission(t, e, "org_1", "chatflow", "read")
	r := seedRole(t, e, "Viewer", permID)

	// Second attach is a no-op, not an error or a duplicate.
	if err := e.AttachRolePermission(ctx, r.ID, permID); err != nil {
		t.Fatal(err)
	}
	effective, err := e.ResolveRolePermissions(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(effective) != 1 {
		t.Errorf("got %d entries, want 1", len(effective))
	}

	if err := e.DetachRolePermission(ctx, r.ID, permID); err != nil {
		t.Fatal(err)
	}
	effective, err = e.ResolveRolePermissions(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(effective) != 0 {
		t.Errorf("got %d entries after detach, want 0", len(effective))
	}
}

func TestAttachUnknownPermissionRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	r := seedRole(t, e, "Viewer")

	if err := e.AttachRolePermission(ctx, r.ID, id.NewPermissionID()); !errors.Is(err, gatewise.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
