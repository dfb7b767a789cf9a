// Package memory provides an in-memory implementation of the gatewise
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gatewise/gatewise"
	"github.com/gatewise/gatewise/conditional"
	"github.com/gatewise/gatewise/grant"
	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/lifecycle"
	"github.com/gatewise/gatewise/permission"
	"github.com/gatewise/gatewise/provisioning"
	"github.com/gatewise/gatewise/role"
	"github.com/gatewise/gatewise/store"
	"github.com/gatewise/gatewise/temporal"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a thread-safe in-memory store for all gatewise entities.
type Store struct {
	mu sync.RWMutex

	permissions     map[string]*permission.Permission
	roles           map[string]*role.Role
	rolePermissions map[string]map[string]struct{} // roleID -> set of permIDs
	grants          map[string]*grant.Grant
	conditionals    map[string]*conditional.Grant
	temporals       map[string]*temporal.Grant
	lifecycles      map[string][]*lifecycle.Entry // userID -> append-only log
	rules           map[string]*provisioning.Rule
	actions         map[string]*provisioning.Action
	actionSeq       int64 // insertion counter, orders equal timestamps
	actionOrder     map[string]int64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		permissions:     make(map[string]*permission.Permission),
		roles:           make(map[string]*role.Role),
		rolePermissions: make(map[string]map[string]struct{}),
		grants:          make(map[string]*grant.Grant),
		conditionals:    make(map[string]*conditional.Grant),
		temporals:       make(map[string]*temporal.Grant),
		lifecycles:      make(map[string][]*lifecycle.Entry),
		rules:           make(map[string]*provisioning.Rule),
		actions:         make(map[string]*provisioning.Action),
		actionOrder:     make(map[string]int64),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.OrgID == p.OrgID && existing.Name == p.Name {
			return fmt.Errorf("permission %q exists in org %s: %w", p.Name, p.OrgID, gatewise.ErrValidation)
		}
	}
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) GetPermission(_ context.Context, permID id.PermissionID) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permID.String()]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", permID, gatewise.ErrNotFound)
	}
	return copyPermission(p), nil
}

func (s *Store) GetPermissionByName(_ context.Context, orgID, name string) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Name == name && (p.OrgID == orgID || p.OrgID == "") {
			return copyPermission(p), nil
		}
	}
	return nil, fmt.Errorf("permission %q: %w", name, gatewise.ErrNotFound)
}

func (s *Store) UpdatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", p.ID, gatewise.ErrNotFound)
	}
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) DeletePermission(_ context.Context, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.permissions, permID.String())
	pk := permID.String()
	for _, perms := range s.rolePermissions {
		delete(perms, pk)
	}
	return nil
}

func (s *Store) ListPermissions(_ context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if filter != nil {
			if filter.OrgID != "" && p.OrgID != filter.OrgID {
				continue
			}
			if filter.Resource != "" && p.Resource != filter.Resource {
				continue
			}
			if filter.Action != "" && p.Action != filter.Action {
				continue
			}
			if filter.Scope != "" && p.Scope != filter.Scope {
				continue
			}
			if filter.IsSystem != nil && p.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyPermission(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return paginate(result, filterPage(filter)), nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	list, err := s.ListPermissions(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) CountPermissionReferences(_ context.Context, permID id.PermissionID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk := permID.String()
	var count int64
	for _, perms := range s.rolePermissions {
		if _, ok := perms[pk]; ok {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.OrgID == r.OrgID && existing.Slug == r.Slug {
			return fmt.Errorf("role slug %q exists in org %s: %w", r.Slug, r.OrgID, gatewise.ErrValidation)
		}
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, gatewise.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleBySlug(_ context.Context, orgID, slug string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.OrgID == orgID && r.Slug == slug {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role slug %q: %w", slug, gatewise.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.roles[r.ID.String()]
	if !ok {
		return fmt.Errorf("role %s: %w", r.ID, gatewise.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("role %s: stored version %d, expected %d: %w",
			r.ID, stored.Version, expectedVersion, gatewise.ErrVersionConflict)
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, roleID.String())
	delete(s.rolePermissions, roleID.String())
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.OrgID != "" && r.OrgID != filter.OrgID {
				continue
			}
			if filter.Type != "" && r.Type != filter.Type {
				continue
			}
			if filter.IsTemplate != nil && r.IsTemplate != *filter.IsTemplate {
				continue
			}
			if filter.ParentID != nil && (r.ParentID == nil || *r.ParentID != *filter.ParentID) {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return paginate(result, filterPage(filter)), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	list, err := s.ListRoles(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ListRolePermissions(_ context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perms, ok := s.rolePermissions[roleID.String()]
	if !ok {
		return nil, nil
	}
	result := make([]id.PermissionID, 0, len(perms))
	for pid := range perms {
		parsed, err := id.ParsePermissionID(pid)
		if err == nil {
			result = append(result, parsed)
		}
	}
	return result, nil
}

func (s *Store) AttachPermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := roleID.String()
	if s.rolePermissions[rk] == nil {
		s.rolePermissions[rk] = make(map[string]struct{})
	}
	s.rolePermissions[rk][permID.String()] = struct{}{}
	return nil
}

func (s *Store) DetachPermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if perms, ok := s.rolePermissions[roleID.String()]; ok {
		delete(perms, permID.String())
	}
	return nil
}

func (s *Store) SetRolePermissions(_ context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms := make(map[string]struct{}, len(permIDs))
	for _, pid := range permIDs {
		perms[pid.String()] = struct{}{}
	}
	s.rolePermissions[roleID.String()] = perms
	return nil
}

func (s *Store) ListChildRoles(_ context.Context, parentID id.RoleID) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*role.Role
	for _, r := range s.roles {
		if r.ParentID != nil && *r.ParentID == parentID {
			result = append(result, copyRole(r))
		}
	}
	return result, nil
}

func (s *Store) DeleteRolesByOrg(_ context.Context, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.roles {
		if r.OrgID == orgID {
			delete(s.roles, k)
			delete(s.rolePermissions, k)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Grant Store
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.grants {
		if existing.UserID == g.UserID && existing.ResourceType == g.ResourceType &&
			existing.ResourceID == g.ResourceID && existing.Permission == g.Permission {
			return fmt.Errorf("grant tuple exists: %w", gatewise.ErrValidation)
		}
	}
	s.grants[g.ID.String()] = copyGrant(g)
	return nil
}

func (s *Store) FindGrant(_ context.Context, userID, resourceType, resourceID, perm string) (*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.UserID == userID && g.ResourceType == resourceType &&
			g.ResourceID == resourceID && g.Permission == perm {
			return copyGrant(g), nil
		}
	}
	return nil, nil
}

func (s *Store) DeleteGrant(_ context.Context, userID, resourceType, resourceID, perm string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.grants {
		if g.UserID == userID && g.ResourceType == resourceType &&
			g.ResourceID == resourceID && g.Permission == perm {
			delete(s.grants, k)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteGrantByID(_ context.Context, grantID id.GrantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantID.String())
	return nil
}

func (s *Store) ListGrants(_ context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		if filter != nil {
			if filter.UserID != "" && g.UserID != filter.UserID {
				continue
			}
			if filter.ResourceType != "" && g.ResourceType != filter.ResourceType {
				continue
			}
			if filter.ResourceID != "" && g.ResourceID != filter.ResourceID {
				continue
			}
			if filter.Permission != "" && g.Permission != filter.Permission {
				continue
			}
		}
		result = append(result, copyGrant(g))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return paginate(result, filterPage(filter)), nil
}

func (s *Store) ListGrantsForResource(ctx context.Context, resourceType, resourceID string) ([]*grant.Grant, error) {
	return s.ListGrants(ctx, &grant.ListFilter{ResourceType: resourceType, ResourceID: resourceID})
}

func (s *Store) ListResourceIDsWithPermission(_ context.Context, userID, resourceType, perm string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var result []string
	for _, g := range s.grants {
		if g.UserID == userID && g.ResourceType == resourceType && g.Permission == perm {
			if _, dup := seen[g.ResourceID]; !dup {
				seen[g.ResourceID] = struct{}{}
				result = append(result, g.ResourceID)
			}
		}
	}
	sort.Strings(result)
	return result, nil
}

func (s *Store) ListUserIDsWithPermission(_ context.Context, resourceType, resourceID, perm string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var result []string
	for _, g := range s.grants {
		if g.ResourceType == resourceType && g.ResourceID == resourceID && g.Permission == perm {
			if _, dup := seen[g.UserID]; !dup {
				seen[g.UserID] = struct{}{}
				result = append(result, g.UserID)
			}
		}
	}
	sort.Strings(result)
	return result, nil
}

func (s *Store) DeleteGrantsByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.grants {
		if g.UserID == userID {
			delete(s.grants, k)
		}
	}
	return nil
}

func (s *Store) CountGrantsByPermissionName(_ context.Context, perm string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, g := range s.grants {
		if g.Permission == perm {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Conditional Store
// ──────────────────────────────────────────────────

func (s *Store) CreateConditional(_ context.Context, g *conditional.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conditionals[g.ID.String()] = copyConditional(g)
	return nil
}

func (s *Store) GetConditional(_ context.Context, grantID id.ConditionalID) (*conditional.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.conditionals[grantID.String()]
	if !ok {
		return nil, fmt.Errorf("conditional grant %s: %w", grantID, gatewise.ErrNotFound)
	}
	return copyConditional(g), nil
}

func (s *Store) UpdateConditional(_ context.Context, g *conditional.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conditionals[g.ID.String()]; !ok {
		return fmt.Errorf("conditional grant %s: %w", g.ID, gatewise.ErrNotFound)
	}
	s.conditionals[g.ID.String()] = copyConditional(g)
	return nil
}

func (s *Store) DeleteConditional(_ context.Context, grantID id.ConditionalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conditionals, grantID.String())
	return nil
}

func (s *Store) ListConditionals(_ context.Context, filter *conditional.ListFilter) ([]*conditional.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*conditional.Grant, 0, len(s.conditionals))
	for _, g := range s.conditionals {
		if filter != nil {
			if filter.UserID != "" && g.UserID != filter.UserID {
				continue
			}
			if filter.PermissionID != nil && g.PermissionID != *filter.PermissionID {
				continue
			}
			if filter.ResourceType != "" && g.ResourceType != filter.ResourceType {
				continue
			}
			if filter.IsActive != nil && g.IsActive != *filter.IsActive {
				continue
			}
		}
		result = append(result, copyConditional(g))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return paginate(result, filterPage(filter)), nil
}

func (s *Store) ListActiveConditionalsForKey(_ context.Context, userID string, permID id.PermissionID, resourceType, resourceID string) ([]*conditional.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*conditional.Grant
	for _, g := range s.conditionals {
		if !g.IsActive || g.UserID != userID || g.PermissionID != permID || g.ResourceType != resourceType {
			continue
		}
		// Empty stored ResourceID is a wildcard over the type.
		if g.ResourceID != "" && g.ResourceID != resourceID {
			continue
		}
		result = append(result, copyConditional(g))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CountConditionalsByPermission(_ context.Context, permID id.PermissionID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, g := range s.conditionals {
		if g.PermissionID == permID {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Temporal Store
// ──────────────────────────────────────────────────

func (s *Store) CreateTemporal(_ context.Context, g *temporal.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temporals[g.ID.String()] = copyTemporal(g)
	return nil
}

func (s *Store) GetTemporal(_ context.Context, grantID id.TemporalID) (*temporal.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.temporals[grantID.String()]
	if !ok {
		return nil, fmt.Errorf("temporal grant %s: %w", grantID, gatewise.ErrNotFound)
	}
	return copyTemporal(g), nil
}

func (s *Store) UpdateTemporal(_ context.Context, g *temporal.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.temporals[g.ID.String()]; !ok {
		return fmt.Errorf("temporal grant %s: %w", g.ID, gatewise.ErrNotFound)
	}
	s.temporals[g.ID.String()] = copyTemporal(g)
	return nil
}

func (s *Store) DeleteTemporal(_ context.Context, grantID id.TemporalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.temporals, grantID.String())
	return nil
}

func (s *Store) ListTemporals(_ context.Context, filter *temporal.ListFilter) ([]*temporal.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*temporal.Grant, 0, len(s.temporals))
	for _, g := range s.temporals {
		if filter != nil {
			if filter.UserID != "" && g.UserID != filter.UserID {
				continue
			}
			if filter.PermissionID != nil && g.PermissionID != *filter.PermissionID {
				continue
			}
			if filter.ResourceType != "" && g.ResourceType != filter.ResourceType {
				continue
			}
			if filter.Type != "" && g.Type != filter.Type {
				continue
			}
			if filter.IsActive != nil && g.IsActive != *filter.IsActive {
				continue
			}
		}
		result = append(result, copyTemporal(g))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return paginate(result, filterPage(filter)), nil
}

func (s *Store) ListActiveTemporalsForKey(_ context.Context, userID string, permID id.PermissionID, resourceType, resourceID string) ([]*temporal.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*temporal.Grant
	for _, g := range s.temporals {
		if !g.IsActive || g.UserID != userID || g.PermissionID != permID || g.ResourceType != resourceType {
			continue
		}
		if g.ResourceID != "" && g.ResourceID != resourceID {
			continue
		}
		result = append(result, copyTemporal(g))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CountTemporalsByPermission(_ context.Context, permID id.PermissionID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, g := range s.temporals {
		if g.PermissionID == permID {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Lifecycle Store
// ──────────────────────────────────────────────────

func (s *Store) AppendLifecycleEntry(_ context.Context, e *lifecycle.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifecycles[e.UserID] = append(s.lifecycles[e.UserID], copyLifecycleEntry(e))
	return nil
}

func (s *Store) CurrentLifecycleState(_ context.Context, userID string) (*lifecycle.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.lifecycles[userID]
	if len(log) == 0 {
		return nil, nil
	}
	return copyLifecycleEntry(log[len(log)-1]), nil
}

func (s *Store) ListLifecycleHistory(_ context.Context, filter *lifecycle.HistoryFilter) ([]*lifecycle.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*lifecycle.Entry
	collect := func(log []*lifecycle.Entry) {
		// Newest first.
		for i := len(log) - 1; i >= 0; i-- {
			e := log[i]
			if filter != nil && filter.State != "" && e.State != filter.State {
				continue
			}
			result = append(result, copyLifecycleEntry(e))
		}
	}
	if filter != nil && filter.UserID != "" {
		collect(s.lifecycles[filter.UserID])
	} else {
		for _, log := range s.lifecycles {
			collect(log)
		}
		sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	}
	return paginate(result, filterPage(filter)), nil
}

// ──────────────────────────────────────────────────
// Provisioning Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRule(_ context.Context, r *provisioning.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID.String()] = copyRule(r)
	return nil
}

func (s *Store) GetRule(_ context.Context, ruleID id.RuleID) (*provisioning.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[ruleID.String()]
	if !ok {
		return nil, fmt.Errorf("provisioning rule %s: %w", ruleID, gatewise.ErrNotFound)
	}
	return copyRule(r), nil
}

func (s *Store) UpdateRule(_ context.Context, r *provisioning.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID.String()]; !ok {
		return fmt.Errorf("provisioning rule %s: %w", r.ID, gatewise.ErrNotFound)
	}
	s.rules[r.ID.String()] = copyRule(r)
	return nil
}

func (s *Store) DeleteRule(_ context.Context, ruleID id.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, ruleID.String())
	return nil
}

func (s *Store) ListRules(_ context.Context, filter *provisioning.RuleFilter) ([]*provisioning.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*provisioning.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if filter != nil {
			if filter.OrgID != "" && r.OrgID != filter.OrgID {
				continue
			}
			if filter.Trigger != "" && r.Trigger != filter.Trigger {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}
		}
		result = append(result, copyRule(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return paginate(result, filterPage(filter)), nil
}

func (s *Store) SetRuleLastRun(_ context.Context, ruleID id.RuleID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID.String()]
	if !ok {
		return fmt.Errorf("provisioning rule %s: %w", ruleID, gatewise.ErrNotFound)
	}
	r.LastRunAt = &at
	return nil
}

func (s *Store) CreateAction(_ context.Context, a *provisioning.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionSeq++
	s.actionOrder[a.ID.String()] = s.actionSeq
	s.actions[a.ID.String()] = copyAction(a)
	return nil
}

func (s *Store) GetAction(_ context.Context, actionID id.ActionID) (*provisioning.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[actionID.String()]
	if !ok {
		return nil, fmt.Errorf("provisioning action %s: %w", actionID, gatewise.ErrNotFound)
	}
	return copyAction(a), nil
}

func (s *Store) UpdateAction(_ context.Context, a *provisioning.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[a.ID.String()]; !ok {
		return fmt.Errorf("provisioning action %s: %w", a.ID, gatewise.ErrNotFound)
	}
	s.actions[a.ID.String()] = copyAction(a)
	return nil
}

func (s *Store) ListActions(_ context.Context, filter *provisioning.ActionFilter) ([]*provisioning.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*provisioning.Action, 0, len(s.actions))
	for _, a := range s.actions {
		if filter != nil {
			if filter.RuleID != nil && (a.RuleID == nil || *a.RuleID != *filter.RuleID) {
				continue
			}
			if filter.OrgID != "" && a.OrgID != filter.OrgID {
				continue
			}
			if filter.UserID != "" && a.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && a.Status != filter.Status {
				continue
			}
		}
		result = append(result, copyAction(a))
	}
	sort.Slice(result, func(i, j int) bool {
		return s.actionOrder[result[i].ID.String()] < s.actionOrder[result[j].ID.String()]
	})
	return paginate(result, filterPage(filter)), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyPermission(p *permission.Permission) *permission.Permission {
	c := *p
	return &c
}

func copyRole(r *role.Role) *role.Role {
	c := *r
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func copyGrant(g *grant.Grant) *grant.Grant {
	c := *g
	return &c
}

func copyConditional(g *conditional.Grant) *conditional.Grant {
	c := *g
	return &c
}

func copyTemporal(g *temporal.Grant) *temporal.Grant {
	c := *g
	if g.Schedule != nil {
		sc := *g.Schedule
		c.Schedule = &sc
	}
	return &c
}

func copyLifecycleEntry(e *lifecycle.Entry) *lifecycle.Entry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func copyRule(r *provisioning.Rule) *provisioning.Rule {
	c := *r
	if r.Actions != nil {
		c.Actions = make([]provisioning.ActionSpec, len(r.Actions))
		copy(c.Actions, r.Actions)
	}
	return &c
}

func copyAction(a *provisioning.Action) *provisioning.Action {
	c := *a
	if a.Parameters != nil {
		c.Parameters = make(map[string]any, len(a.Parameters))
		for k, v := range a.Parameters {
			c.Parameters[k] = v
		}
	}
	return &c
}

type page struct{ limit, offset int }

// filterPage extracts pagination from any filter struct exposing Limit and
// Offset fields.
func filterPage(f any) page {
	switch v := f.(type) {
	case *permission.ListFilter:
		if v != nil {
			return page{v.Limit, v.Offset}
		}
	case *role.ListFilter:
		if v != nil {
			return page{v.Limit, v.Offset}
		}
	case *grant.ListFilter:
		if v != nil {
			return page{v.Limit, v.Offset}
		}
	case *conditional.ListFilter:
		if v != nil {
			return page{v.Limit, v.Offset}
		}
	case *temporal.ListFilter:
		if v != nil {
			return page{v.Limit, v.Offset}
		}
	case *lifecycle.HistoryFilter:
		if v != nil {
			return page{v.Limit, v.Offset}
		}
	case *provisioning.RuleFilter:
		if v != nil {
			return page{v.Limit, v.Offset}
		}
	case *provisioning.ActionFilter:
		if v != nil {
			return page{v.Limit, v.Offset}
		}
	}
	return page{}
}

func paginate[T any](items []*T, p page) []*T {
	if p.offset > 0 {
		if p.offset >= len(items) {
			return nil
		}
		items = items[p.offset:]
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}
