package gatewise

import (
	"context"
	"fmt"
	"strings"

	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/role"
)

// CreateRole validates and persists a custom role.
func (e *Engine) CreateRole(ctx context.Context, r *role.Role) error {
	if r.Name == "" {
		return fmt.Errorf("%w: role name is required", ErrValidation)
	}
	if r.OrgID == "" && r.Type != role.TypeSystem {
		return fmt.Errorf("%w: custom role requires an organization", ErrValidation)
	}
	if r.ID.IsNil() {
		r.ID = id.NewRoleID()
	}
	if r.Slug == "" {
		r.Slug = slugify(r.Name)
	}
	if r.Type == "" {
		r.Type = role.TypeCustom
	}
	if r.ParentID != nil {
		if err := e.validateParentChain(ctx, r.ID, *r.ParentID); err != nil {
			return err
		}
	}
	r.Version = 1
	now := e.clock.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := e.store.CreateRole(ctx, r); err != nil {
		return err
	}
	if e.hooks != nil {
		e.hooks.EmitRoleCreated(ctx, r)
	}
	return nil
}

// GetRole retrieves a role by ID.
func (e *Engine) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	return e.store.GetRole(ctx, roleID)
}

// UpdateRole persists changes to a role using optimistic concurrency: the
// write is conditioned on the version the caller read, and the version is
// bumped on success. A concurrent writer makes the store reject with
// ErrVersionConflict; re-read and retry.
func (e *Engine) UpdateRole(ctx context.Context, r *role.Role) error {
	stored, err := e.store.GetRole(ctx, r.ID)
	if err != nil {
		return err
	}
	if stored.IsSystem() {
		return ErrSystemRoleImmutable
	}

	expected := r.Version
	r.Version = expected + 1
	r.UpdatedAt = e.clock.Now().UTC()
	if err := e.store.UpdateRole(ctx, r, expected); err != nil {
		r.Version = expected
		return err
	}
	if e.cache != nil {
		e.cache.InvalidateTenant(ctx, r.OrgID)
	}
	if e.hooks != nil {
		e.hooks.EmitRoleUpdated(ctx, r)
	}
	return nil
}

// DeleteRole removes a role and its permission attachments.
func (e *Engine) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if r.IsSystem() {
		return ErrSystemRoleImmutable
	}
	children, err := e.store.ListChildRoles(ctx, roleID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("%w: role %s has %d child roles", ErrValidation, roleID, len(children))
	}

	if err := e.store.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.InvalidateTenant(ctx, r.OrgID)
	}
	if e.hooks != nil {
		e.hooks.EmitRoleDeleted(ctx, roleID)
	}
	return nil
}

// SetRoleParent changes a role's parent, validating before persistence
// that the new chain is acyclic. A nil parentID detaches the role.
func (e *Engine) SetRoleParent(ctx context.Context, roleID id.RoleID, parentID *id.RoleID) error {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if r.IsSystem() {
		return ErrSystemRoleImmutable
	}
	if parentID != nil {
		if err := e.validateParentChain(ctx, roleID, *parentID); err != nil {
			return err
		}
	}

	expected := r.Version
	r.ParentID = parentID
	r.Version = expected + 1
	r.UpdatedAt = e.clock.Now().UTC()
	if err := e.store.UpdateRole(ctx, r, expected); err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.InvalidateTenant(ctx, r.OrgID)
	}
	if e.hooks != nil {
		e.hooks.EmitRoleUpdated(ctx, r)
	}
	return nil
}

// validateParentChain walks from the proposed parent to the root with a
// visited set and rejects the change when roleID appears anywhere on the
// chain (the write would create a cycle) or the chain exceeds the
// configured depth.
func (e *Engine) validateParentChain(ctx context.Context, roleID, parentID id.RoleID) error {
	if parentID == roleID {
		return fmt.Errorf("%w: role %s cannot be its own parent", ErrCyclicInheritance, roleID)
	}

	visited := map[string]struct{}{roleID.String(): {}}
	current := &parentID
	// Depth starts at 1: the role→parent edge is the first hop, so the
	// guard counts the same hops the resolver will walk.
	for depth := 1; current != nil; depth++ {
		if depth > e.config.MaxInheritanceDepth {
			return fmt.Errorf("%w: parent chain exceeds depth %d", ErrValidation, e.config.MaxInheritanceDepth)
		}
		key := current.String()
		if _, ok := visited[key]; ok {
			return fmt.Errorf("%w: chain revisits role %s", ErrCyclicInheritance, key)
		}
		visited[key] = struct{}{}

		p, err := e.store.GetRole(ctx, *current)
		if err != nil {
			return fmt.Errorf("gatewise: walk parent chain at %s: %w", key, err)
		}
		current = p.ParentID
	}
	return nil
}

// CreateRoleFromTemplate instantiates a concrete role from a template.
// The template's current permission rows are copied, not linked: later
// changes to the template never reach the instantiated role. TemplateID
// records provenance only.
func (e *Engine) CreateRoleFromTemplate(ctx context.Context, templateID id.RoleID, orgID, name string) (*role.Role, error) {
	tpl, err := e.store.GetRole(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.IsTemplate {
		return nil, fmt.Errorf("%w: role %s is not a template", ErrValidation, templateID)
	}

	tid := tpl.ID
	r := &role.Role{
		ID:          id.NewRoleID(),
		OrgID:       orgID,
		Name:        name,
		Description: tpl.Description,
		Slug:        slugify(name),
		Type:        role.TypeCustom,
		Priority:    tpl.Priority,
		TemplateID:  &tid,
	}
	if err := e.CreateRole(ctx, r); err != nil {
		return nil, err
	}

	permIDs, err := e.store.ListRolePermissions(ctx, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("gatewise: copy template permissions: %w", err)
	}
	if len(permIDs) > 0 {
		if err := e.store.SetRolePermissions(ctx, r.ID, permIDs); err != nil {
			return nil, fmt.Errorf("gatewise: copy template permissions: %w", err)
		}
	}
	return r, nil
}

// AttachRolePermission links a permission to a role. Attaching an already
// attached permission is a no-op.
func (e *Engine) AttachRolePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if r.IsSystem() {
		return ErrSystemRoleImmutable
	}
	if _, err := e.store.GetPermission(ctx, permID); err != nil {
		return err
	}
	if err := e.store.AttachPermission(ctx, roleID, permID); err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.InvalidateTenant(ctx, r.OrgID)
	}
	return nil
}

// DetachRolePermission removes a permission from a role.
func (e *Engine) DetachRolePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if r.IsSystem() {
		return ErrSystemRoleImmutable
	}
	if err := e.store.DetachPermission(ctx, roleID, permID); err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.InvalidateTenant(ctx, r.OrgID)
	}
	return nil
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, s)
	return strings.Trim(s, "-")
}
