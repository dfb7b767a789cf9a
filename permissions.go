package gatewise

import (
	"context"
	"fmt"

	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/permission"
)

// CreatePermission validates and persists a permission definition. The
// canonical name is derived from the (resource, action) pair.
func (e *Engine) CreatePermission(ctx context.Context, p *permission.Permission) error {
	if p.Resource == "" || p.Action == "" {
		return fmt.Errorf("%w: permission requires resource and action", ErrValidation)
	}
	if p.Scope != "" && !p.Scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrValidation, p.Scope)
	}
	if p.ID.IsNil() {
		p.ID = id.NewPermissionID()
	}
	if p.Name == "" {
		p.Name = permission.CanonicalName(p.Resource, p.Action)
	}
	if p.Scope == "" {
		p.Scope = permission.ScopeResource
	}
	now := e.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return e.store.CreatePermission(ctx, p)
}

// GetPermission retrieves a permission by ID.
func (e *Engine) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	return e.store.GetPermission(ctx, permID)
}

// DeletePermission removes a permission definition. A permission is
// immutable once referenced: deletion is rejected while any role
// attachment, direct grant, conditional grant, or time-based grant still
// points at it.
func (e *Engine) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	p, err := e.store.GetPermission(ctx, permID)
	if err != nil {
		return err
	}
	if p.IsSystem {
		return fmt.Errorf("%w: system permission is read-only", ErrValidation)
	}

	refs, err := e.store.CountPermissionReferences(ctx, permID)
	if err != nil {
		return err
	}
	grants, err := e.store.CountGrantsByPermissionName(ctx, p.Name)
	if err != nil {
		return err
	}
	conditionals, err := e.store.CountConditionalsByPermission(ctx, permID)
	if err != nil {
		return err
	}
	temporals, err := e.store.CountTemporalsByPermission(ctx, permID)
	if err != nil {
		return err
	}
	if total := refs + grants + conditionals + temporals; total > 0 {
		return fmt.Errorf("%w: permission %s is referenced by %d rows", ErrValidation, p.Name, total)
	}

	return e.store.DeletePermission(ctx, permID)
}

// ListPermissions returns permissions matching the filter.
func (e *Engine) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	return e.store.ListPermissions(ctx, filter)
}
