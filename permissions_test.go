package gatewise_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatewise/gatewise"
	"github.com/gatewise/gatewise/permission"
	"github.com/gatewise/gatewise/temporal"
)

func TestCreatePermissionDefaults(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	p := &permission.Permission{OrgID: "org_1", Resource: "chatflow", Action: "read"}
	if err := e.CreatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}
	if p.ID.IsNil() {
		t.Error("ID not assigned")
	}
	if p.Name != "chatflow:read" {
		t.Errorf("name = %q, want canonical resource:action", p.Name)
	}
	if p.Scope != permission.ScopeResource {
		t.Errorf("scope = %s, want resource default", p.Scope)
	}

	// An explicit name is kept.
	named := &permission.Permission{OrgID: "org_1", Resource: "chatflow", Action: "export", Name: "flows.export"}
	if err := e.CreatePermission(ctx, named); err != nil {
		t.Fatal(err)
	}
	if named.Name != "flows.export" {
		t.Errorf("name = %q", named.Name)
	}
}

func TestCreatePermissionValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	tests := []struct {
		name string
		p    *permission.Permission
	}{
		{"missing resource", &permission.Permission{OrgID: "org_1", Action: "read"}},
		{"missing action", &permission.Permission{OrgID: "org_1", Resource: "chatflow"}},
		{"unknown scope", &permission.Permission{OrgID: "org_1", Resource: "chatflow", Action: "read", Scope: "galaxy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.CreatePermission(ctx, tt.p); !errors.Is(err, gatewise.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestDeletePermissionReferenceGuard(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	permID := seedPermission(t, e, "org_1", "chatflow", "read")

	// Referenced by a role attachment.
	r := seedRole(t, e, "Viewer", permID)
	if err := e.DeletePermission(ctx, permID); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("role-attached: err = %v, want ErrValidation", err)
	}
	if err := e.DetachRolePermission(ctx, r.ID, permID); err != nil {
		t.Fatal(err)
	}

	// Referenced by a direct grant carrying the canonical name.
	if _, err := e.AssignResourcePermission(ctx, "user_1", "chatflow", "flow-1", "chatflow:read", "admin_1"); err != nil {
		t.Fatal(err)
	}
	if err := e.DeletePermission(ctx, permID); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("directly granted: err = %v, want ErrValidation", err)
	}
	if _, err := e.RemoveResourcePermission(ctx, "user_1", "chatflow", "flow-1", "chatflow:read"); err != nil {
		t.Fatal(err)
	}

	// Referenced by a time-based grant.
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	tg := &temporal.Grant{
		UserID:       "user_1",
		PermissionID: permID,
		ResourceType: "chatflow",
		Type:         temporal.TypeTemporary,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		IsActive:     true,
	}
	if err := e.CreateTimeBasedPermission(ctx, tg); err != nil {
		t.Fatal(err)
	}
	if err := e.DeletePermission(ctx, permID); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("time-gated: err = %v, want ErrValidation", err)
	}
	if err := e.Store().DeleteTemporal(ctx, tg.ID); err != nil {
		t.Fatal(err)
	}

	// Unreferenced: deletion goes through.
	if err := e.DeletePermission(ctx, permID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetPermission(ctx, permID); !errors.Is(err, gatewise.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSystemPermissionReadOnly(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	p := &permission.Permission{OrgID: "org_1", Resource: "platform", Action: "manage", IsSystem: true}
	if err := e.CreatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := e.DeletePermission(ctx, p.ID); !errors.Is(err, gatewise.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}
