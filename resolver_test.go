package gatewise_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gatewise/gatewise"
	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/role"
)

func TestResolveDirectOnly(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	read := seedPermission(t, e, "org_1", "chatflow", "read")
	write := seedPermission(t, e, "org_1", "chatflow", "write")
	r := seedRole(t, e, "Editor", read, write)

	effective, err := e.ResolveRolePermissions(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(effective) != 2 {
		t.Fatalf("got %d permissions, want 2", len(effective))
	}
	for _, ep := range effective {
		if ep.Provenance != gatewise.ProvenanceDirect {
			t.Errorf("%s: provenance = %s, want direct", ep.Permission.Name, ep.Provenance)
		}
		if ep.RoleID != r.ID {
			t.Errorf("%s: contributed by %s, want %s", ep.Permission.Name, ep.RoleID, r.ID)
		}
	}
}

func TestResolveInheritedProvenance(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	read := seedPermission(t, e, "org_1", "chatflow", "read")
	write := seedPermission(t, e, "org_1", "chatflow", "write")
	parent := seedRole(t, e, "Viewer", read)
	child := seedRole(t, e, "Editor", write)
	if err := e.SetRoleParent(ctx, child.ID, &parent.ID); err != nil {
		t.Fatal(err)
	}

	effective, err := e.ResolveRolePermissions(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]*gatewise.EffectivePermission, len(effective))
	for _, ep := range effective {
		byName[ep.Permission.Name] = ep
	}

	if ep := byName["chatflow:write"]; ep == nil || ep.Provenance != gatewise.ProvenanceDirect {
		t.Errorf("chatflow:write = %+v, want direct", ep)
	}
	if ep := byName["chatflow:read"]; ep == nil || ep.Provenance != gatewise.ProvenanceInherited || ep.RoleID != parent.ID {
		t.Errorf("chatflow:read = %+v, want inherited from %s", ep, parent.ID)
	}
}

func TestResolveMonotonic(t *testing.T) {
	// Attaching a parent never shrinks the child's effective set.
	ctx := context.Background()
	e := newTestEngine(t)

	read := seedPermission(t, e, "org_1", "chatflow", "read")
	child := seedRole(t, e, "Editor", read)
	parent := seedRole(t, e, "Empty")

	before, err := e.ResolveRolePermissions(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetRoleParent(ctx, child.ID, &parent.ID); err != nil {
		t.Fatal(err)
	}
	after, err := e.ResolveRolePermissions(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) < len(before) {
		t.Errorf("effective set shrank: %d -> %d", len(before), len(after))
	}
}

func TestResolveDirectWinsOnOverlap(t *testing.T) {
	// A permission attached both directly and on an ancestor is reported
	// once, tagged direct.
	ctx := context.Background()
	e := newTestEngine(t)

	read := seedPermission(t, e, "org_1", "chatflow", "read")
	parent := seedRole(t, e, "Viewer", read)
	child := seedRole(t, e, "Editor", read)
	if err := e.SetRoleParent(ctx, child.ID, &parent.ID); err != nil {
		t.Fatal(err)
	}

	effective, err := e.ResolveRolePermissions(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(effective) != 1 {
		t.Fatalf("got %d entries, want 1", len(effective))
	}
	if effective[0].Provenance != gatewise.ProvenanceDirect {
		t.Errorf("provenance = %s, want direct", effective[0].Provenance)
	}
}

func TestResolveCycleErrsConfiguration(t *testing.T) {
	// Cycles cannot be created through the engine, so write the broken
	// rows straight into the store.
	ctx := context.Background()
	e := newTestEngine(t)

	a := &role.Role{ID: id.NewRoleID(), OrgID: "org_1", Name: "A", Slug: "a", Type: role.TypeCustom, Version: 1}
	b := &role.Role{ID: id.NewRoleID(), OrgID: "org_1", Name: "B", Slug: "b", Type: role.TypeCustom, Version: 1}
	a.ParentID = &b.ID
	b.ParentID = &a.ID
	for _, r := range []*role.Role{a, b} {
		if err := e.Store().CreateRole(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	_, err := e.ResolveRolePermissions(ctx, a.ID)
	if !errors.Is(err, gatewise.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestResolveDepthLimit(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, gatewise.WithConfig(gatewise.Config{MaxInheritanceDepth: 2}))

	r1 := seedRole(t, e, "L1")
	r2 := seedRole(t, e, "L2")
	r3 := seedRole(t, e, "L3")
	if err := e.SetRoleParent(ctx, r2.ID, &r1.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.SetRoleParent(ctx, r3.ID, &r2.ID); err != nil {
		t.Fatal(err)
	}
	// Chain of three fits within depth 2 (hops are counted, not nodes).
	if _, err := e.ResolveRolePermissions(ctx, r3.ID); err != nil {
		t.Fatal(err)
	}

	r4 := seedRole(t, e, "L4")
	if err := e.SetRoleParent(ctx, r4.ID, &r3.ID); !errors.Is(err, gatewise.ErrValidation) {
		t.Fatalf("attach beyond depth: err = %v, want ErrValidation", err)
	}

	// Force the long chain past the guard and resolve it.
	r4.ParentID = &r3.ID
	if err := e.Store().UpdateRole(ctx, r4, r4.Version); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ResolveRolePermissions(ctx, r4.ID); !errors.Is(err, gatewise.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestResolveMissingRole(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ResolveRolePermissions(context.Background(), id.NewRoleID())
	if !errors.Is(err, gatewise.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
