package hook

import (
	"context"
	"log/slog"

	"github.com/gatewise/gatewise/grant"
	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/lifecycle"
	"github.com/gatewise/gatewise/provisioning"
	"github.com/gatewise/gatewise/role"
)

// Named entry types pair a hook with its name for logging.

type beforeCheckEntry struct {
	name string
	hook BeforeCheck
}
type afterCheckEntry struct {
	name string
	hook AfterCheck
}
type roleCreatedEntry struct {
	name string
	hook RoleCreated
}
type roleUpdatedEntry struct {
	name string
	hook RoleUpdated
}
type roleDeletedEntry struct {
	name string
	hook RoleDeleted
}
type grantAssignedEntry struct {
	name string
	hook GrantAssigned
}
type grantRemovedEntry struct {
	name string
	hook GrantRemoved
}
type lifecycleChangedEntry struct {
	name string
	hook LifecycleChanged
}
type actionTransitionedEntry struct {
	name string
	hook ActionTransitioned
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches engine events.
// It type-caches hooks at registration time so emit calls iterate only
// over hooks implementing the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	beforeCheck        []beforeCheckEntry
	afterCheck         []afterCheckEntry
	roleCreated        []roleCreatedEntry
	roleUpdated        []roleUpdatedEntry
	roleDeleted        []roleDeletedEntry
	grantAssigned      []grantAssignedEntry
	grantRemoved       []grantRemovedEntry
	lifecycleChanged   []lifecycleChangedEntry
	actionTransitioned []actionTransitionedEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if hk, ok := h.(BeforeCheck); ok {
		r.beforeCheck = append(r.beforeCheck, beforeCheckEntry{name, hk})
	}
	if hk, ok := h.(AfterCheck); ok {
		r.afterCheck = append(r.afterCheck, afterCheckEntry{name, hk})
	}
	if hk, ok := h.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, roleCreatedEntry{name, hk})
	}
	if hk, ok := h.(RoleUpdated); ok {
		r.roleUpdated = append(r.roleUpdated, roleUpdatedEntry{name, hk})
	}
	if hk, ok := h.(RoleDeleted); ok {
		r.roleDeleted = append(r.roleDeleted, roleDeletedEntry{name, hk})
	}
	if hk, ok := h.(GrantAssigned); ok {
		r.grantAssigned = append(r.grantAssigned, grantAssignedEntry{name, hk})
	}
	if hk, ok := h.(GrantRemoved); ok {
		r.grantRemoved = append(r.grantRemoved, grantRemovedEntry{name, hk})
	}
	if hk, ok := h.(LifecycleChanged); ok {
		r.lifecycleChanged = append(r.lifecycleChanged, lifecycleChangedEntry{name, hk})
	}
	if hk, ok := h.(ActionTransitioned); ok {
		r.actionTransitioned = append(r.actionTransitioned, actionTransitionedEntry{name, hk})
	}
	if hk, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, hk})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitBeforeCheck notifies all hooks that implement BeforeCheck.
func (r *Registry) EmitBeforeCheck(ctx context.Context, req any) {
	for _, e := range r.beforeCheck {
		if err := e.hook.OnBeforeCheck(ctx, req); err != nil {
			r.logHookError("OnBeforeCheck", e.name, err)
		}
	}
}

// EmitAfterCheck notifies all hooks that implement AfterCheck.
func (r *Registry) EmitAfterCheck(ctx context.Context, req, decision any) {
	for _, e := range r.afterCheck {
		if err := e.hook.OnAfterCheck(ctx, req, decision); err != nil {
			r.logHookError("OnAfterCheck", e.name, err)
		}
	}
}

// EmitRoleCreated notifies all hooks that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitRoleUpdated notifies all hooks that implement RoleUpdated.
func (r *Registry) EmitRoleUpdated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleUpdated {
		if err := e.hook.OnRoleUpdated(ctx, rl); err != nil {
			r.logHookError("OnRoleUpdated", e.name, err)
		}
	}
}

// EmitRoleDeleted notifies all hooks that implement RoleDeleted.
func (r *Registry) EmitRoleDeleted(ctx context.Context, roleID id.RoleID) {
	for _, e := range r.roleDeleted {
		if err := e.hook.OnRoleDeleted(ctx, roleID); err != nil {
			r.logHookError("OnRoleDeleted", e.name, err)
		}
	}
}

// EmitGrantAssigned notifies all hooks that implement GrantAssigned.
func (r *Registry) EmitGrantAssigned(ctx context.Context, g *grant.Grant) {
	for _, e := range r.grantAssigned {
		if err := e.hook.OnGrantAssigned(ctx, g); err != nil {
			r.logHookError("OnGrantAssigned", e.name, err)
		}
	}
}

// EmitGrantRemoved notifies all hooks that implement GrantRemoved.
func (r *Registry) EmitGrantRemoved(ctx context.Context, g *grant.Grant) {
	for _, e := range r.grantRemoved {
		if err := e.hook.OnGrantRemoved(ctx, g); err != nil {
			r.logHookError("OnGrantRemoved", e.name, err)
		}
	}
}

// EmitLifecycleChanged notifies all hooks that implement LifecycleChanged.
func (r *Registry) EmitLifecycleChanged(ctx context.Context, from lifecycle.State, en *lifecycle.Entry) {
	for _, e := range r.lifecycleChanged {
		if err := e.hook.OnLifecycleChanged(ctx, from, en); err != nil {
			r.logHookError("OnLifecycleChanged", e.name, err)
		}
	}
}

// EmitActionTransitioned notifies all hooks that implement ActionTransitioned.
func (r *Registry) EmitActionTransitioned(ctx context.Context, a *provisioning.Action) {
	for _, e := range r.actionTransitioned {
		if err := e.hook.OnActionTransitioned(ctx, a); err != nil {
			r.logHookError("OnActionTransitioned", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a hook returns an error. Hook errors
// are never propagated — they must not block the engine.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}
