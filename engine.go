package gatewise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/gatewise/gatewise/attribute"
	"github.com/gatewise/gatewise/hook"
	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/lifecycle"
	"github.com/gatewise/gatewise/permission"
	"github.com/gatewise/gatewise/provisioning"
	"github.com/gatewise/gatewise/store"
)

// Engine is the central authorization engine. It layers direct grants,
// role-derived permissions, conditional grants, and time-based grants
// into a single deterministic decision.
//
// CheckPermission performs no writes and holds no cross-request state, so
// it is safe under unbounded concurrent calls. The caller's context
// deadline propagates to every collaborator lookup.
type Engine struct {
	store      store.Store
	evaluator  *Evaluator
	cache      Cache
	hooks      *hook.Registry
	clock      clockwork.Clock
	logger     *slog.Logger
	config     Config
	attributes attribute.Store

	// pendingHooks collects WithHook registrations until NewEngine has the
	// final logger; the registry is built after all options run.
	pendingHooks []hook.Hook
}

// NewEngine creates a new gatewise engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("gatewise: store is required")
	}
	if e.evaluator == nil {
		e.evaluator = NewEvaluator(e.attributes)
	}
	if len(e.pendingHooks) > 0 {
		e.hooks = hook.NewRegistry(e.logger)
		for _, h := range e.pendingHooks {
			e.hooks.Register(h)
		}
		e.pendingHooks = nil
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Hooks returns the hook registry (may be nil).
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// Clock returns the engine clock.
func (e *Engine) Clock() clockwork.Clock { return e.clock }

// LifecycleMachine constructs a lifecycle machine over the engine's
// store, sharing the engine clock and logger. Committed transitions are
// published to the engine's hook registry. Options appended by the
// caller run last.
func (e *Engine) LifecycleMachine(opts ...lifecycle.MachineOption) *lifecycle.Machine {
	base := []lifecycle.MachineOption{
		lifecycle.WithMachineClock(e.clock),
		lifecycle.WithMachineLogger(e.logger),
	}
	if e.hooks != nil {
		hooks := e.hooks
		base = append(base, lifecycle.WithTransitionHook(
			func(ctx context.Context, from lifecycle.State, en *lifecycle.Entry) error {
				hooks.EmitLifecycleChanged(ctx, from, en)
				return nil
			}))
	}
	return lifecycle.NewMachine(e.store, append(base, opts...)...)
}

// Provisioner constructs a provisioning engine over the engine's store,
// with the engine as approval authorizer and condition evaluator. Action
// status changes are published to the engine's hook registry.
func (e *Engine) Provisioner(opts ...provisioning.EngineOption) *provisioning.Engine {
	base := []provisioning.EngineOption{
		provisioning.WithClock(e.clock),
		provisioning.WithLogger(e.logger),
		provisioning.WithAuthorizer(e),
		provisioning.WithConditionEvaluator(e.evaluator),
	}
	if e.hooks != nil {
		hooks := e.hooks
		base = append(base, provisioning.WithObserver(
			func(ctx context.Context, a *provisioning.Action) {
				hooks.EmitActionTransitioned(ctx, a)
			}))
	}
	return provisioning.NewEngine(e.store, append(base, opts...)...)
}

// Close releases the engine: hooks receive a shutdown notification, then
// the store connection is closed.
func (e *Engine) Close(ctx context.Context) error {
	if e.hooks != nil {
		e.hooks.EmitShutdown(ctx)
	}
	return e.store.Close()
}

// CheckPermission answers "may this principal perform this action on this
// resource?". This is the hot path and the sole entry point request
// middleware needs.
//
// Sources are consulted in fixed precedence, first match wins: the
// unauthenticated short-circuit, the system-admin bypass, direct resource
// grants, role-derived permissions within the request's tenant scope,
// conditional grants, time-based grants. Coarse unconditional sources come
// first because they are cheapest; anything unmatched is denied.
func (e *Engine) CheckPermission(ctx context.Context, req *CheckRequest) (*Decision, error) {
	start := e.clock.Now()
	if req.Context == nil {
		req.Context = &RequestContext{
			OrganizationID: orgIDFromContext(ctx),
			WorkspaceID:    workspaceIDFromContext(ctx),
		}
	}

	if e.hooks != nil {
		e.hooks.EmitBeforeCheck(ctx, req)
	}

	d, err := e.decide(ctx, req)
	if err != nil {
		return nil, err
	}
	d.EvalTimeNs = e.clock.Since(start).Nanoseconds()

	if e.hooks != nil {
		e.hooks.EmitAfterCheck(ctx, req, d)
	}
	return d, nil
}

func (e *Engine) decide(ctx context.Context, req *CheckRequest) (*Decision, error) {
	// 401 territory, distinct from no_grant: deny before reading any source.
	if req.Principal == nil || req.Principal.UserID == "" {
		return &Decision{Reason: ReasonUnauthenticated}, nil
	}

	if req.Principal.IsSystemAdmin {
		return &Decision{Granted: true, Reason: ReasonSystemAdmin}, nil
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, req.Context.OrganizationID, req); ok {
			// Every caller gets its own copy; the cached struct is shared
			// across concurrent checks.
			return cached.clone(), nil
		}
	}

	required := req.PermissionName()
	userID := req.Principal.UserID

	// 1. Direct resource grant.
	if req.ResourceID != "" {
		g, err := e.store.FindGrant(ctx, userID, req.ResourceType, req.ResourceID, required)
		if err != nil {
			return nil, fmt.Errorf("gatewise: direct grant lookup: %w", err)
		}
		if g != nil {
			return e.cacheable(ctx, req, &Decision{
				Granted:   true,
				Reason:    ReasonDirectResourceGrant,
				MatchedBy: &MatchInfo{Source: "direct", GrantID: g.ID.String()},
			}), nil
		}
	}

	// 2. Role-derived permission within the request's tenant scope.
	for _, roleID := range req.Principal.tenantRoles(req.Context) {
		granted, provenance, err := e.roleGrants(ctx, roleID, required)
		if err != nil {
			// A broken inheritance chain is a server fault; the check that
			// hit it fails closed rather than granting or erroring out.
			if errors.Is(err, ErrConfiguration) {
				e.logger.Error("gatewise: role resolution failed, check denied",
					"role_id", roleID, "user_id", userID, "error", err)
				return &Decision{Reason: ReasonNoGrant}, nil
			}
			return nil, err
		}
		if granted {
			return e.cacheable(ctx, req, &Decision{
				Granted: true,
				Reason:  ReasonRoleGrant,
				MatchedBy: &MatchInfo{
					Source:     "role",
					GrantID:    roleID.String(),
					Provenance: provenance,
				},
			}), nil
		}
	}

	// Conditional and temporal grants reference the permission entity, so
	// both steps need its ID. No such permission defined means neither
	// source can match.
	perm, err := e.lookupPermission(ctx, req.Context.OrganizationID, required)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return &Decision{Reason: ReasonNoGrant}, nil
	}

	// 3. Conditional (attribute-based) grant.
	if e.config.conditionalEnabled() {
		g, err := e.EvaluateConditionalPermissions(ctx, userID, perm.ID, req.ResourceType, req.ResourceID, req.Context)
		if err != nil {
			return nil, err
		}
		if g != nil {
			return &Decision{
				Granted:   true,
				Reason:    ReasonConditionalGrant,
				MatchedBy: &MatchInfo{Source: "conditional", GrantID: g.ID.String()},
			}, nil
		}
	}

	// 4. Time-based grant.
	if e.config.temporalEnabled() {
		grants, err := e.store.ListActiveTemporalsForKey(ctx, userID, perm.ID, req.ResourceType, req.ResourceID)
		if err != nil {
			return nil, fmt.Errorf("gatewise: temporal grant lookup: %w", err)
		}
		now := e.clock.Now()
		for _, g := range grants {
			if IsTemporalActive(g, now) {
				return &Decision{
					Granted:   true,
					Reason:    ReasonTimeBasedGrant,
					MatchedBy: &MatchInfo{Source: "temporal", GrantID: g.ID.String()},
				}, nil
			}
		}
	}

	return &Decision{Reason: ReasonNoGrant}, nil
}

// cacheable stores a granted decision from a clock-independent source.
// A copy goes into the cache: the caller's decision is still written to
// (EvalTimeNs) after this returns.
func (e *Engine) cacheable(ctx context.Context, req *CheckRequest, d *Decision) *Decision {
	if e.cache != nil && d.Granted {
		e.cache.Set(ctx, req.Context.OrganizationID, req, d.clone())
	}
	return d
}

// lookupPermission fetches the permission entity for a canonical name,
// treating absence as nil rather than an error.
func (e *Engine) lookupPermission(ctx context.Context, orgID, name string) (*permission.Permission, error) {
	stored, err := e.store.GetPermissionByName(ctx, orgID, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("gatewise: permission lookup %q: %w", name, err)
	}
	return stored, nil
}

// tenantRoles returns the principal's role assignments effective for the
// request's tenant scope: roles assigned at the organization plus roles
// assigned at the workspace. Assignments at other tenants never apply.
func (p *Principal) tenantRoles(rc *RequestContext) []id.RoleID {
	var roles []id.RoleID
	if rc.OrganizationID != "" {
		roles = append(roles, p.OrganizationRoles[rc.OrganizationID]...)
	}
	if rc.WorkspaceID != "" {
		roles = append(roles, p.WorkspaceRoles[rc.WorkspaceID]...)
	}
	return roles
}

// Enforce returns ErrAccessDenied when the check is denied.
func (e *Engine) Enforce(ctx context.Context, req *CheckRequest) error {
	d, err := e.CheckPermission(ctx, req)
	if err != nil {
		return fmt.Errorf("gatewise check: %w", err)
	}
	if !d.Granted {
		return fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}
	return nil
}

// Can is a shorthand for a simple boolean check.
func (e *Engine) Can(ctx context.Context, p *Principal, action, resourceType, resourceID string) (bool, error) {
	d, err := e.CheckPermission(ctx, &CheckRequest{
		Principal:    p,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
	if err != nil {
		return false, err
	}
	return d.Granted, nil
}

// Authorize adapts the engine to the provisioning approval gate: it
// checks a principal identified by ID only, so the decision rests on the
// non-role sources (system-admin status is unknown here and role
// assignments live on the identity layer's Principal).
func (e *Engine) Authorize(ctx context.Context, userID, orgID, action, resourceType, resourceID string) (bool, error) {
	d, err := e.CheckPermission(ctx, &CheckRequest{
		Principal:    &Principal{UserID: userID},
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Context:      &RequestContext{OrganizationID: orgID},
	})
	if err != nil {
		return false, err
	}
	return d.Granted, nil
}
