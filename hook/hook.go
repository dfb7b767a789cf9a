// Package hook defines the extension hook system for gatewise.
// Hooks are notified of engine events (check evaluated, grant assigned,
// lifecycle transition, provisioning action moved) and can react —
// logging, metrics, audit trails, cache busting.
//
// Each event is a separate interface so hooks opt in only to the events
// they care about.
package hook

import (
	"context"

	"github.com/gatewise/gatewise/grant"
	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/lifecycle"
	"github.com/gatewise/gatewise/provisioning"
	"github.com/gatewise/gatewise/role"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Check hooks
// ──────────────────────────────────────────────────

// BeforeCheck is called before a permission check is evaluated.
// The req parameter is *gatewise.CheckRequest (passed as any to avoid import cycle).
type BeforeCheck interface {
	OnBeforeCheck(ctx context.Context, req any) error
}

// AfterCheck is called after a permission check completes.
// The req parameter is *gatewise.CheckRequest; decision is *gatewise.Decision.
type AfterCheck interface {
	OnAfterCheck(ctx context.Context, req, decision any) error
}

// ──────────────────────────────────────────────────
// Role hooks
// ──────────────────────────────────────────────────

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// RoleUpdated is called after a role is updated.
type RoleUpdated interface {
	OnRoleUpdated(ctx context.Context, r *role.Role) error
}

// RoleDeleted is called after a role is deleted.
type RoleDeleted interface {
	OnRoleDeleted(ctx context.Context, roleID id.RoleID) error
}

// ──────────────────────────────────────────────────
// Grant hooks
// ──────────────────────────────────────────────────

// GrantAssigned is called after a direct resource grant is recorded.
type GrantAssigned interface {
	OnGrantAssigned(ctx context.Context, g *grant.Grant) error
}

// GrantRemoved is called after a direct resource grant is removed.
type GrantRemoved interface {
	OnGrantRemoved(ctx context.Context, g *grant.Grant) error
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// LifecycleChanged is called after a user lifecycle transition is committed.
type LifecycleChanged interface {
	OnLifecycleChanged(ctx context.Context, from lifecycle.State, e *lifecycle.Entry) error
}

// ──────────────────────────────────────────────────
// Provisioning hooks
// ──────────────────────────────────────────────────

// ActionTransitioned is called after a provisioning action changes status.
type ActionTransitioned interface {
	OnActionTransitioned(ctx context.Context, a *provisioning.Action) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
