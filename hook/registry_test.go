package hook

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/gatewise/gatewise/grant"
	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/lifecycle"
	"github.com/gatewise/gatewise/role"
)

// testHook implements Hook + RoleCreated + AfterCheck + GrantAssigned.
type testHook struct {
	roleCreatedCalled   bool
	afterCheckCalled    bool
	grantAssignedCalled bool
}

func (t *testHook) Name() string { return "test-hook" }

func (t *testHook) OnRoleCreated(_ context.Context, _ *role.Role) error {
	t.roleCreatedCalled = true
	return nil
}

func (t *testHook) OnAfterCheck(_ context.Context, _, _ any) error {
	t.afterCheckCalled = true
	return nil
}

func (t *testHook) OnGrantAssigned(_ context.Context, _ *grant.Grant) error {
	t.grantAssignedCalled = true
	return nil
}

// minimalHook only implements Hook (no events).
type minimalHook struct{}

func (m *minimalHook) Name() string { return "minimal" }

// failingHook always errors; errors must be swallowed.
type failingHook struct{ called bool }

func (f *failingHook) Name() string { return "failing" }

func (f *failingHook) OnRoleCreated(_ context.Context, _ *role.Role) error {
	f.called = true
	return errors.New("boom")
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	th := &testHook{}
	reg.Register(th)
	reg.Register(&minimalHook{})

	if len(reg.Hooks()) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(reg.Hooks()))
	}

	// Should dispatch RoleCreated to testHook only.
	reg.EmitRoleCreated(ctx, &role.Role{ID: id.NewRoleID(), Name: "admin"})
	if !th.roleCreatedCalled {
		t.Fatal("OnRoleCreated was not called")
	}

	// Should dispatch AfterCheck.
	reg.EmitAfterCheck(ctx, nil, nil)
	if !th.afterCheckCalled {
		t.Fatal("OnAfterCheck was not called")
	}

	// Should dispatch GrantAssigned.
	reg.EmitGrantAssigned(ctx, &grant.Grant{ID: id.NewGrantID()})
	if !th.grantAssignedCalled {
		t.Fatal("OnGrantAssigned was not called")
	}

	// Should not panic on events with no listeners.
	reg.EmitBeforeCheck(ctx, nil)
	reg.EmitRoleDeleted(ctx, id.NewRoleID())
	reg.EmitLifecycleChanged(ctx, lifecycle.StateActive, &lifecycle.Entry{})
	reg.EmitShutdown(ctx)
}

func TestRegistrySwallowsHookErrors(t *testing.T) {
	reg := NewRegistry(slog.Default())
	fh := &failingHook{}
	reg.Register(fh)

	// Must not panic or propagate.
	reg.EmitRoleCreated(context.Background(), &role.Role{ID: id.NewRoleID()})
	if !fh.called {
		t.Fatal("failing hook was not called")
	}
}
