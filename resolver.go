package gatewise

import (
	"context"
	"fmt"

	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/permission"
)

// EffectivePermission is one permission in a role's effective set, tagged
// with the role that contributed it and whether it was attached directly
// or inherited from an ancestor.
type EffectivePermission struct {
	Permission *permission.Permission `json:"permission"`
	RoleID     id.RoleID              `json:"role_id"`
	Provenance Provenance             `json:"provenance"`
}

// ResolveRolePermissions resolves a role to its effective permission set:
// its own attached permissions tagged direct, unioned with everything its
// ancestors grant, tagged inherited. Inheritance never removes — a role
// always holds at least what it directly grants.
//
// The parent chain is walked iteratively with a visited set. A revisited
// role ID means the stored tree is cyclic; the walk stops with
// ErrConfiguration rather than looping. The same error covers chains
// longer than Config.MaxInheritanceDepth.
func (e *Engine) ResolveRolePermissions(ctx context.Context, roleID id.RoleID) ([]*EffectivePermission, error) {
	var (
		effective []*EffectivePermission
		seen      = make(map[string]struct{})
		visited   = make(map[string]struct{})
	)

	provenance := ProvenanceDirect
	current := &roleID

	for depth := 0; current != nil; depth++ {
		if depth > e.config.MaxInheritanceDepth {
			return nil, fmt.Errorf("%w: role %s inheritance chain exceeds depth %d",
				ErrConfiguration, roleID, e.config.MaxInheritanceDepth)
		}
		key := current.String()
		if _, ok := visited[key]; ok {
			return nil, fmt.Errorf("%w: role inheritance cycle at %s", ErrConfiguration, key)
		}
		visited[key] = struct{}{}

		r, err := e.store.GetRole(ctx, *current)
		if err != nil {
			return nil, fmt.Errorf("gatewise: resolve role %s: %w", current, err)
		}

		permIDs, err := e.store.ListRolePermissions(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("gatewise: list permissions for role %s: %w", r.ID, err)
		}
		for _, permID := range permIDs {
			pk := permID.String()
			if _, ok := seen[pk]; ok {
				continue
			}
			seen[pk] = struct{}{}

			p, err := e.store.GetPermission(ctx, permID)
			if err != nil {
				return nil, fmt.Errorf("gatewise: load permission %s: %w", permID, err)
			}
			effective = append(effective, &EffectivePermission{
				Permission: p,
				RoleID:     r.ID,
				Provenance: provenance,
			})
		}

		current = r.ParentID
		provenance = ProvenanceInherited
	}

	return effective, nil
}

// roleGrants reports whether the role's effective set satisfies the
// required permission name, and with what provenance.
func (e *Engine) roleGrants(ctx context.Context, roleID id.RoleID, required string) (bool, Provenance, error) {
	effective, err := e.ResolveRolePermissions(ctx, roleID)
	if err != nil {
		return false, "", err
	}
	for _, ep := range effective {
		if matchPermission(ep.Permission.Name, required) {
			return true, ep.Provenance, nil
		}
	}
	return false, "", nil
}
