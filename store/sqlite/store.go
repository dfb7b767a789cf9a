// Package sqlite provides a SQLite implementation of the gatewise
// composite store using the modernc.org/sqlite pure-Go driver. It is a
// single-writer embedded backend suited to tests, CLIs, and small
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

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

// Store is a SQLite implementation of the composite gatewise store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at path. Use
// ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("gatewise: open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`pragma foreign_keys = on`); err != nil {
		return nil, fmt.Errorf("gatewise: enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the schema when absent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("gatewise: migrate: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`create table if not exists gw_permissions (
		id text primary key,
		org_id text not null default '',
		name text not null,
		description text not null default '',
		resource text not null,
		action text not null,
		scope text not null,
		is_system integer not null default 0,
		created_at timestamp not null,
		updated_at timestamp not null,
		unique (org_id, name)
	)`,
	`create table if not exists gw_roles (
		id text primary key,
		org_id text not null default '',
		name text not null,
		description text not null default '',
		slug text not null,
		type text not null,
		priority integer not null default 0,
		version integer not null default 1,
		parent_id text,
		is_template integer not null default 0,
		template_id text,
		metadata text,
		created_at timestamp not null,
		updated_at timestamp not null,
		unique (org_id, slug)
	)`,
	`create table if not exists gw_role_permissions (
		role_id text not null references gw_roles(id) on delete cascade,
		permission_id text not null,
		primary key (role_id, permission_id)
	)`,
	`create table if not exists gw_grants (
		id text primary key,
		user_id text not null,
		resource_type text not null,
		resource_id text not null,
		permission text not null,
		granted_by text not null default '',
		created_at timestamp not null,
		unique (user_id, resource_type, resource_id, permission)
	)`,
	`create table if not exists gw_conditional_grants (
		id text primary key,
		user_id text not null,
		permission_id text not null,
		resource_type text not null,
		resource_id text not null default '',
		expression text not null,
		is_active integer not null default 1,
		created_at timestamp not null,
		updated_at timestamp not null
	)`,
	`create index if not exists gw_conditional_grants_key
		on gw_conditional_grants (user_id, permission_id, resource_type)`,
	`create table if not exists gw_temporal_grants (
		id text primary key,
		user_id text not null,
		permission_id text not null,
		resource_type text not null,
		resource_id text not null default '',
		type text not null,
		start_time timestamp,
		end_time timestamp,
		schedule text,
		is_active integer not null default 1,
		reason text not null default '',
		created_at timestamp not null,
		updated_at timestamp not null
	)`,
	`create index if not exists gw_temporal_grants_key
		on gw_temporal_grants (user_id, permission_id, resource_type)`,
	`create table if not exists gw_lifecycle_log (
		id text primary key,
		user_id text not null,
		state text not null,
		metadata text,
		changed_by text not null default '',
		created_at timestamp not null
	)`,
	`create index if not exists gw_lifecycle_log_user
		on gw_lifecycle_log (user_id, created_at desc)`,
	`create table if not exists gw_provisioning_rules (
		id text primary key,
		org_id text not null,
		name text not null,
		description text not null default '',
		trigger_type text not null,
		event text not null default '',
		schedule text not null default '',
		condition text,
		actions text not null,
		status text not null,
		last_run_at timestamp,
		created_at timestamp not null,
		updated_at timestamp not null
	)`,
	`create table if not exists gw_provisioning_actions (
		seq integer primary key autoincrement,
		id text not null unique,
		rule_id text,
		org_id text not null,
		user_id text not null,
		type text not null,
		parameters text,
		status text not null,
		sequence integer not null default 0,
		approved_by text not null default '',
		rejection_reason text not null default '',
		error text not null default '',
		created_at timestamp not null,
		updated_at timestamp not null,
		completed_at timestamp
	)`,
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// modernc surfaces SQLITE_CONSTRAINT_UNIQUE in the error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	_, err := s.db.ExecContext(ctx, `
		insert into gw_permissions (id, org_id, name, description, resource, action, scope, is_system, created_at, updated_at)
		values (?,?,?,?,?,?,?,?,?,?)
	`, p.ID.String(), p.OrgID, p.Name, p.Description, p.Resource, p.Action, string(p.Scope), p.IsSystem, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("permission %q exists in org %s: %w", p.Name, p.OrgID, gatewise.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("gatewise: create permission: %w", err)
	}
	return nil
}

const permissionCols = `id, org_id, name, description, resource, action, scope, is_system, created_at, updated_at`

func scanPermission(row interface{ Scan(...any) error }) (*permission.Permission, error) {
	var p permission.Permission
	var rawID, scope string
	if err := row.Scan(&rawID, &p.OrgID, &p.Name, &p.Description, &p.Resource, &p.Action, &scope, &p.IsSystem, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParsePermissionID(rawID)
	if err != nil {
		return nil, err
	}
	p.ID = parsed
	p.Scope = permission.Scope(scope)
	return &p, nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	row := s.db.QueryRowContext(ctx, `select `+permissionCols+` from gw_permissions where id = ?`, permID.String())
	p, err := scanPermission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("permission %s: %w", permID, gatewise.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: get permission: %w", err)
	}
	return p, nil
}

func (s *Store) GetPermissionByName(ctx context.Context, orgID, name string) (*permission.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+permissionCols+` from gw_permissions
		where name = ? and (org_id = ? or org_id = '')
		order by org_id desc limit 1
	`, name, orgID)
	p, err := scanPermission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("permission %q: %w", name, gatewise.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: get permission by name: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	res, err := s.db.ExecContext(ctx, `
		update gw_permissions set description = ?, scope = ?, updated_at = ? where id = ?
	`, p.Description, string(p.Scope), p.UpdatedAt, p.ID.String())
	if err != nil {
		return fmt.Errorf("gatewise: update permission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("permission %s: %w", p.ID, gatewise.ErrNotFound)
	}
	return nil
}

func (s *Store) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `delete from gw_role_permissions where permission_id = ?`, permID.String()); err != nil {
		return fmt.Errorf("gatewise: delete permission attachments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `delete from gw_permissions where id = ?`, permID.String()); err != nil {
		return fmt.Errorf("gatewise: delete permission: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	q := newQuery(`select ` + permissionCols + ` from gw_permissions`)
	if filter != nil {
		if filter.OrgID != "" {
			q.where("org_id = ?", filter.OrgID)
		}
		if filter.Resource != "" {
			q.where("resource = ?", filter.Resource)
		}
		if filter.Action != "" {
			q.where("action = ?", filter.Action)
		}
		if filter.Scope != "" {
			q.where("scope = ?", string(filter.Scope))
		}
		if filter.IsSystem != nil {
			q.where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q.where("name like ?", "%"+filter.Search+"%")
		}
		q.page(filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q.sql("order by name"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list permissions: %w", err)
	}
	defer rows.Close()

	var result []*permission.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	q := newQuery(`select count(*) from gw_permissions`)
	if filter != nil {
		if filter.OrgID != "" {
			q.where("org_id = ?", filter.OrgID)
		}
		if filter.Resource != "" {
			q.where("resource = ?", filter.Resource)
		}
		if filter.Action != "" {
			q.where("action = ?", filter.Action)
		}
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q.sql(""), q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("gatewise: count permissions: %w", err)
	}
	return n, nil
}

func (s *Store) CountPermissionReferences(ctx context.Context, permID id.PermissionID) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`select count(*) from gw_role_permissions where permission_id = ?`,
		permID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("gatewise: count permission references: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

const roleCols = `id, org_id, name, description, slug, type, priority, version, parent_id, is_template, template_id, metadata, created_at, updated_at`

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	meta, err := marshalJSON(r.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into gw_roles (`+roleCols+`)
		values (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, r.ID.String(), r.OrgID, r.Name, r.Description, r.Slug, string(r.Type), r.Priority, r.Version,
		nullableID(r.ParentID), r.IsTemplate, nullableID(r.TemplateID), meta, r.CreatedAt, r.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("role slug %q exists in org %s: %w", r.Slug, r.OrgID, gatewise.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("gatewise: create role: %w", err)
	}
	return nil
}

func scanRole(row interface{ Scan(...any) error }) (*role.Role, error) {
	var r role.Role
	var rawID, roleType string
	var parentID, templateID sql.NullString
	var meta []byte
	err := row.Scan(&rawID, &r.OrgID, &r.Name, &r.Description, &r.Slug, &roleType, &r.Priority,
		&r.Version, &parentID, &r.IsTemplate, &templateID, &meta, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseRoleID(rawID)
	if err != nil {
		return nil, err
	}
	r.ID = parsed
	r.Type = role.Type(roleType)
	if r.ParentID, err = parseNullableRoleID(parentID); err != nil {
		return nil, err
	}
	if r.TemplateID, err = parseNullableRoleID(templateID); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("gatewise: decode role metadata: %w", err)
		}
	}
	return &r, nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleCols+` from gw_roles where id = ?`, roleID.String())
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role %s: %w", roleID, gatewise.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: get role: %w", err)
	}
	return r, nil
}

func (s *Store) GetRoleBySlug(ctx context.Context, orgID, slug string) (*role.Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+roleCols+` from gw_roles where org_id = ? and slug = ?`, orgID, slug)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role slug %q: %w", slug, gatewise.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: get role by slug: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role, expectedVersion int) error {
	meta, err := marshalJSON(r.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update gw_roles
		set name = ?, description = ?, slug = ?, priority = ?, version = ?,
		    parent_id = ?, metadata = ?, updated_at = ?
		where id = ? and version = ?
	`, r.Name, r.Description, r.Slug, r.Priority, r.Version,
		nullableID(r.ParentID), meta, r.UpdatedAt, r.ID.String(), expectedVersion)
	if err != nil {
		return fmt.Errorf("gatewise: update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var stored int
		err := s.db.QueryRowContext(ctx, `select version from gw_roles where id = ?`, r.ID.String()).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("role %s: %w", r.ID, gatewise.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("gatewise: update role: %w", err)
		}
		return fmt.Errorf("role %s: stored version %d, expected %d: %w",
			r.ID, stored, expectedVersion, gatewise.ErrVersionConflict)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	_, err := s.db.ExecContext(ctx, `delete from gw_roles where id = ?`, roleID.String())
	if err != nil {
		return fmt.Errorf("gatewise: delete role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	q := newQuery(`select ` + roleCols + ` from gw_roles`)
	if filter != nil {
		if filter.OrgID != "" {
			q.where("org_id = ?", filter.OrgID)
		}
		if filter.Type != "" {
			q.where("type = ?", string(filter.Type))
		}
		if filter.IsTemplate != nil {
			q.where("is_template = ?", *filter.IsTemplate)
		}
		if filter.ParentID != nil {
			q.where("parent_id = ?", filter.ParentID.String())
		}
		if filter.Search != "" {
			q.where("name like ?", "%"+filter.Search+"%")
		}
		q.page(filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q.sql("order by name"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list roles: %w", err)
	}
	defer rows.Close()

	var result []*role.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := newQuery(`select count(*) from gw_roles`)
	if filter != nil {
		if filter.OrgID != "" {
			q.where("org_id = ?", filter.OrgID)
		}
		if filter.Type != "" {
			q.where("type = ?", string(filter.Type))
		}
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q.sql(""), q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("gatewise: count roles: %w", err)
	}
	return n, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	rows, err := s.db.QueryContext(ctx,
		`select permission_id from gw_role_permissions where role_id = ?`, roleID.String())
	if err != nil {
		return nil, fmt.Errorf("gatewise: list role permissions: %w", err)
	}
	defer rows.Close()

	var result []id.PermissionID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		parsed, err := id.ParsePermissionID(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, parsed)
	}
	return result, rows.Err()
}

func (s *Store) AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	_, err := s.db.ExecContext(ctx, `
		insert or ignore into gw_role_permissions (role_id, permission_id) values (?, ?)
	`, roleID.String(), permID.String())
	if err != nil {
		return fmt.Errorf("gatewise: attach permission: %w", err)
	}
	return nil
}

func (s *Store) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	_, err := s.db.ExecContext(ctx,
		`delete from gw_role_permissions where role_id = ? and permission_id = ?`,
		roleID.String(), permID.String())
	if err != nil {
		return fmt.Errorf("gatewise: detach permission: %w", err)
	}
	return nil
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `delete from gw_role_permissions where role_id = ?`, roleID.String()); err != nil {
		return fmt.Errorf("gatewise: set role permissions: %w", err)
	}
	for _, pid := range permIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into gw_role_permissions (role_id, permission_id) values (?, ?)
		`, roleID.String(), pid.String()); err != nil {
			return fmt.Errorf("gatewise: set role permissions: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListChildRoles(ctx context.Context, parentID id.RoleID) ([]*role.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+roleCols+` from gw_roles where parent_id = ?`, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("gatewise: list child roles: %w", err)
	}
	defer rows.Close()

	var result []*role.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) DeleteRolesByOrg(ctx context.Context, orgID string) error {
	_, err := s.db.ExecContext(ctx, `delete from gw_roles where org_id = ?`, orgID)
	if err != nil {
		return fmt.Errorf("gatewise: delete roles by org: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

const grantCols = `id, user_id, resource_type, resource_id, permission, granted_by, created_at`

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into gw_grants (`+grantCols+`) values (?,?,?,?,?,?,?)
	`, g.ID.String(), g.UserID, g.ResourceType, g.ResourceID, g.Permission, g.GrantedBy, g.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("grant tuple exists: %w", gatewise.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("gatewise: create grant: %w", err)
	}
	return nil
}

func scanGrant(row interface{ Scan(...any) error }) (*grant.Grant, error) {
	var g grant.Grant
	var rawID string
	if err := row.Scan(&rawID, &g.UserID, &g.ResourceType, &g.ResourceID, &g.Permission, &g.GrantedBy, &g.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseGrantID(rawID)
	if err != nil {
		return nil, err
	}
	g.ID = parsed
	return &g, nil
}

func (s *Store) FindGrant(ctx context.Context, userID, resourceType, resourceID, perm string) (*grant.Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+grantCols+` from gw_grants
		where user_id = ? and resource_type = ? and resource_id = ? and permission = ?
	`, userID, resourceType, resourceID, perm)
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: find grant: %w", err)
	}
	return g, nil
}

func (s *Store) DeleteGrant(ctx context.Context, userID, resourceType, resourceID, perm string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from gw_grants
		where user_id = ? and resource_type = ? and resource_id = ? and permission = ?
	`, userID, resourceType, resourceID, perm)
	if err != nil {
		return false, fmt.Errorf("gatewise: delete grant: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) DeleteGrantByID(ctx context.Context, grantID id.GrantID) error {
	_, err := s.db.ExecContext(ctx, `delete from gw_grants where id = ?`, grantID.String())
	if err != nil {
		return fmt.Errorf("gatewise: delete grant by id: %w", err)
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	q := newQuery(`select ` + grantCols + ` from gw_grants`)
	if filter != nil {
		if filter.UserID != "" {
			q.where("user_id = ?", filter.UserID)
		}
		if filter.ResourceType != "" {
			q.where("resource_type = ?", filter.ResourceType)
		}
		if filter.ResourceID != "" {
			q.where("resource_id = ?", filter.ResourceID)
		}
		if filter.Permission != "" {
			q.where("permission = ?", filter.Permission)
		}
		q.page(filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q.sql("order by created_at"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list grants: %w", err)
	}
	defer rows.Close()

	var result []*grant.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) ListGrantsForResource(ctx context.Context, resourceType, resourceID string) ([]*grant.Grant, error) {
	return s.ListGrants(ctx, &grant.ListFilter{ResourceType: resourceType, ResourceID: resourceID})
}

func (s *Store) ListResourceIDsWithPermission(ctx context.Context, userID, resourceType, perm string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct resource_id from gw_grants
		where user_id = ? and resource_type = ? and permission = ?
		order by resource_id
	`, userID, resourceType, perm)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list resource ids: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *Store) ListUserIDsWithPermission(ctx context.Context, resourceType, resourceID, perm string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct user_id from gw_grants
		where resource_type = ? and resource_id = ? and permission = ?
		order by user_id
	`, resourceType, resourceID, perm)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list user ids: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *Store) DeleteGrantsByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from gw_grants where user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("gatewise: delete grants by user: %w", err)
	}
	return nil
}

func (s *Store) CountGrantsByPermissionName(ctx context.Context, perm string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`select count(*) from gw_grants where permission = ?`, perm).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("gatewise: count grants: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Conditional grant operations
// ──────────────────────────────────────────────────

const conditionalCols = `id, user_id, permission_id, resource_type, resource_id, expression, is_active, created_at, updated_at`

func (s *Store) CreateConditional(ctx context.Context, g *conditional.Grant) error {
	expr, err := marshalJSON(g.Expression)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into gw_conditional_grants (`+conditionalCols+`) values (?,?,?,?,?,?,?,?,?)
	`, g.ID.String(), g.UserID, g.PermissionID.String(), g.ResourceType, g.ResourceID, expr, g.IsActive, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("gatewise: create conditional grant: %w", err)
	}
	return nil
}

func scanConditional(row interface{ Scan(...any) error }) (*conditional.Grant, error) {
	var g conditional.Grant
	var rawID, rawPermID string
	var expr []byte
	if err := row.Scan(&rawID, &g.UserID, &rawPermID, &g.ResourceType, &g.ResourceID, &expr, &g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseConditionalID(rawID)
	if err != nil {
		return nil, err
	}
	g.ID = parsed
	if g.PermissionID, err = id.ParsePermissionID(rawPermID); err != nil {
		return nil, err
	}
	if len(expr) > 0 {
		if err := json.Unmarshal(expr, &g.Expression); err != nil {
			return nil, fmt.Errorf("gatewise: decode expression: %w", err)
		}
	}
	return &g, nil
}

func (s *Store) GetConditional(ctx context.Context, grantID id.ConditionalID) (*conditional.Grant, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+conditionalCols+` from gw_conditional_grants where id = ?`, grantID.String())
	g, err := scanConditional(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conditional grant %s: %w", grantID, gatewise.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: get conditional grant: %w", err)
	}
	return g, nil
}

func (s *Store) UpdateConditional(ctx context.Context, g *conditional.Grant) error {
	expr, err := marshalJSON(g.Expression)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update gw_conditional_grants set expression = ?, is_active = ?, updated_at = ? where id = ?
	`, expr, g.IsActive, g.UpdatedAt, g.ID.String())
	if err != nil {
		return fmt.Errorf("gatewise: update conditional grant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conditional grant %s: %w", g.ID, gatewise.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteConditional(ctx context.Context, grantID id.ConditionalID) error {
	_, err := s.db.ExecContext(ctx,
		`delete from gw_conditional_grants where id = ?`, grantID.String())
	if err != nil {
		return fmt.Errorf("gatewise: delete conditional grant: %w", err)
	}
	return nil
}

func (s *Store) ListConditionals(ctx context.Context, filter *conditional.ListFilter) ([]*conditional.Grant, error) {
	q := newQuery(`select ` + conditionalCols + ` from gw_conditional_grants`)
	if filter != nil {
		if filter.UserID != "" {
			q.where("user_id = ?", filter.UserID)
		}
		if filter.PermissionID != nil {
			q.where("permission_id = ?", filter.PermissionID.String())
		}
		if filter.ResourceType != "" {
			q.where("resource_type = ?", filter.ResourceType)
		}
		if filter.IsActive != nil {
			q.where("is_active = ?", *filter.IsActive)
		}
		q.page(filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q.sql("order by created_at"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list conditional grants: %w", err)
	}
	defer rows.Close()

	var result []*conditional.Grant
	for rows.Next() {
		g, err := scanConditional(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) ListActiveConditionalsForKey(ctx context.Context, userID string, permID id.PermissionID, resourceType, resourceID string) ([]*conditional.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+conditionalCols+` from gw_conditional_grants
		where user_id = ? and permission_id = ? and resource_type = ?
		  and (resource_id = ? or resource_id = '')
		  and is_active
		order by created_at
	`, userID, permID.String(), resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list active conditional grants: %w", err)
	}
	defer rows.Close()

	var result []*conditional.Grant
	for rows.Next() {
		g, err := scanConditional(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) CountConditionalsByPermission(ctx context.Context, permID id.PermissionID) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`select count(*) from gw_conditional_grants where permission_id = ?`,
		permID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("gatewise: count conditional grants: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Temporal grant operations
// ──────────────────────────────────────────────────

const temporalCols = `id, user_id, permission_id, resource_type, resource_id, type, start_time, end_time, schedule, is_active, reason, created_at, updated_at`

func (s *Store) CreateTemporal(ctx context.Context, g *temporal.Grant) error {
	sched, err := marshalJSON(g.Schedule)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into gw_temporal_grants (`+temporalCols+`) values (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, g.ID.String(), g.UserID, g.PermissionID.String(), g.ResourceType, g.ResourceID, string(g.Type),
		nullableTime(g.StartTime), nullableTime(g.EndTime), sched, g.IsActive, g.Reason, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("gatewise: create temporal grant: %w", err)
	}
	return nil
}

func scanTemporal(row interface{ Scan(...any) error }) (*temporal.Grant, error) {
	var g temporal.Grant
	var rawID, rawPermID, grantType string
	var start, end sql.NullTime
	var sched []byte
	err := row.Scan(&rawID, &g.UserID, &rawPermID, &g.ResourceType, &g.ResourceID, &grantType,
		&start, &end, &sched, &g.IsActive, &g.Reason, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseTemporalID(rawID)
	if err != nil {
		return nil, err
	}
	g.ID = parsed
	if g.PermissionID, err = id.ParsePermissionID(rawPermID); err != nil {
		return nil, err
	}
	g.Type = temporal.Type(grantType)
	if start.Valid {
		g.StartTime = start.Time
	}
	if end.Valid {
		g.EndTime = end.Time
	}
	if len(sched) > 0 {
		if err := json.Unmarshal(sched, &g.Schedule); err != nil {
			return nil, fmt.Errorf("gatewise: decode schedule: %w", err)
		}
	}
	return &g, nil
}

func (s *Store) GetTemporal(ctx context.Context, grantID id.TemporalID) (*temporal.Grant, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+temporalCols+` from gw_temporal_grants where id = ?`, grantID.String())
	g, err := scanTemporal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("temporal grant %s: %w", grantID, gatewise.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: get temporal grant: %w", err)
	}
	return g, nil
}

func (s *Store) UpdateTemporal(ctx context.Context, g *temporal.Grant) error {
	sched, err := marshalJSON(g.Schedule)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update gw_temporal_grants
		set start_time = ?, end_time = ?, schedule = ?, is_active = ?, reason = ?, updated_at = ?
		where id = ?
	`, nullableTime(g.StartTime), nullableTime(g.EndTime), sched, g.IsActive, g.Reason, g.UpdatedAt, g.ID.String())
	if err != nil {
		return fmt.Errorf("gatewise: update temporal grant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("temporal grant %s: %w", g.ID, gatewise.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTemporal(ctx context.Context, grantID id.TemporalID) error {
	_, err := s.db.ExecContext(ctx,
		`delete from gw_temporal_grants where id = ?`, grantID.String())
	if err != nil {
		return fmt.Errorf("gatewise: delete temporal grant: %w", err)
	}
	return nil
}

func (s *Store) ListTemporals(ctx context.Context, filter *temporal.ListFilter) ([]*temporal.Grant, error) {
	q := newQuery(`select ` + temporalCols + ` from gw_temporal_grants`)
	if filter != nil {
		if filter.UserID != "" {
			q.where("user_id = ?", filter.UserID)
		}
		if filter.PermissionID != nil {
			q.where("permission_id = ?", filter.PermissionID.String())
		}
		if filter.ResourceType != "" {
			q.where("resource_type = ?", filter.ResourceType)
		}
		if filter.Type != "" {
			q.where("type = ?", string(filter.Type))
		}
		if filter.IsActive != nil {
			q.where("is_active = ?", *filter.IsActive)
		}
		q.page(filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q.sql("order by created_at"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list temporal grants: %w", err)
	}
	defer rows.Close()

	var result []*temporal.Grant
	for rows.Next() {
		g, err := scanTemporal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) ListActiveTemporalsForKey(ctx context.Context, userID string, permID id.PermissionID, resourceType, resourceID string) ([]*temporal.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+temporalCols+` from gw_temporal_grants
		where user_id = ? and permission_id = ? and resource_type = ?
		  and (resource_id = ? or resource_id = '')
		  and is_active
		order by created_at
	`, userID, permID.String(), resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list active temporal grants: %w", err)
	}
	defer rows.Close()

	var result []*temporal.Grant
	for rows.Next() {
		g, err := scanTemporal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) CountTemporalsByPermission(ctx context.Context, permID id.PermissionID) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`select count(*) from gw_temporal_grants where permission_id = ?`,
		permID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("gatewise: count temporal grants: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Lifecycle operations
// ──────────────────────────────────────────────────

const lifecycleCols = `id, user_id, state, metadata, changed_by, created_at`

func (s *Store) AppendLifecycleEntry(ctx context.Context, e *lifecycle.Entry) error {
	meta, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into gw_lifecycle_log (`+lifecycleCols+`) values (?,?,?,?,?,?)
	`, e.ID.String(), e.UserID, string(e.State), meta, e.ChangedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("gatewise: append lifecycle entry: %w", err)
	}
	return nil
}

func scanLifecycleEntry(row interface{ Scan(...any) error }) (*lifecycle.Entry, error) {
	var e lifecycle.Entry
	var rawID, state string
	var meta []byte
	if err := row.Scan(&rawID, &e.UserID, &state, &meta, &e.ChangedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseLifecycleID(rawID)
	if err != nil {
		return nil, err
	}
	e.ID = parsed
	e.State = lifecycle.State(state)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("gatewise: decode lifecycle metadata: %w", err)
		}
	}
	return &e, nil
}

func (s *Store) CurrentLifecycleState(ctx context.Context, userID string) (*lifecycle.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+lifecycleCols+` from gw_lifecycle_log
		where user_id = ? order by created_at desc limit 1
	`, userID)
	e, err := scanLifecycleEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: current lifecycle state: %w", err)
	}
	return e, nil
}

func (s *Store) ListLifecycleHistory(ctx context.Context, filter *lifecycle.HistoryFilter) ([]*lifecycle.Entry, error) {
	q := newQuery(`select ` + lifecycleCols + ` from gw_lifecycle_log`)
	if filter != nil {
		if filter.UserID != "" {
			q.where("user_id = ?", filter.UserID)
		}
		if filter.State != "" {
			q.where("state = ?", string(filter.State))
		}
		q.page(filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q.sql("order by created_at desc"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list lifecycle history: %w", err)
	}
	defer rows.Close()

	var result []*lifecycle.Entry
	for rows.Next() {
		e, err := scanLifecycleEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// ──────────────────────────────────────────────────
// Provisioning operations
// ──────────────────────────────────────────────────

const ruleCols = `id, org_id, name, description, trigger_type, event, schedule, condition, actions, status, last_run_at, created_at, updated_at`

func (s *Store) CreateRule(ctx context.Context, r *provisioning.Rule) error {
	cond, err := marshalJSON(r.Condition)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("gatewise: encode rule actions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into gw_provisioning_rules (`+ruleCols+`) values (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, r.ID.String(), r.OrgID, r.Name, r.Description, string(r.Trigger), string(r.Event), r.Schedule,
		cond, actions, string(r.Status), r.LastRunAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("gatewise: create rule: %w", err)
	}
	return nil
}

func scanRule(row interface{ Scan(...any) error }) (*provisioning.Rule, error) {
	var r provisioning.Rule
	var rawID, trigger, event, status string
	var cond, actions []byte
	var lastRun sql.NullTime
	err := row.Scan(&rawID, &r.OrgID, &r.Name, &r.Description, &trigger, &event, &r.Schedule,
		&cond, &actions, &status, &lastRun, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseRuleID(rawID)
	if err != nil {
		return nil, err
	}
	r.ID = parsed
	r.Trigger = provisioning.TriggerType(trigger)
	r.Event = provisioning.EventType(event)
	r.Status = provisioning.RuleStatus(status)
	if lastRun.Valid {
		r.LastRunAt = &lastRun.Time
	}
	if len(cond) > 0 {
		if err := json.Unmarshal(cond, &r.Condition); err != nil {
			return nil, fmt.Errorf("gatewise: decode rule condition: %w", err)
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &r.Actions); err != nil {
			return nil, fmt.Errorf("gatewise: decode rule actions: %w", err)
		}
	}
	return &r, nil
}

func (s *Store) GetRule(ctx context.Context, ruleID id.RuleID) (*provisioning.Rule, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+ruleCols+` from gw_provisioning_rules where id = ?`, ruleID.String())
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("provisioning rule %s: %w", ruleID, gatewise.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: get rule: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateRule(ctx context.Context, r *provisioning.Rule) error {
	cond, err := marshalJSON(r.Condition)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("gatewise: encode rule actions: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		update gw_provisioning_rules
		set name = ?, description = ?, trigger_type = ?, event = ?, schedule = ?,
		    condition = ?, actions = ?, status = ?, updated_at = ?
		where id = ?
	`, r.Name, r.Description, string(r.Trigger), string(r.Event), r.Schedule,
		cond, actions, string(r.Status), r.UpdatedAt, r.ID.String())
	if err != nil {
		return fmt.Errorf("gatewise: update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("provisioning rule %s: %w", r.ID, gatewise.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, ruleID id.RuleID) error {
	_, err := s.db.ExecContext(ctx,
		`delete from gw_provisioning_rules where id = ?`, ruleID.String())
	if err != nil {
		return fmt.Errorf("gatewise: delete rule: %w", err)
	}
	return nil
}

func (s *Store) ListRules(ctx context.Context, filter *provisioning.RuleFilter) ([]*provisioning.Rule, error) {
	q := newQuery(`select ` + ruleCols + ` from gw_provisioning_rules`)
	if filter != nil {
		if filter.OrgID != "" {
			q.where("org_id = ?", filter.OrgID)
		}
		if filter.Trigger != "" {
			q.where("trigger_type = ?", string(filter.Trigger))
		}
		if filter.Status != "" {
			q.where("status = ?", string(filter.Status))
		}
		q.page(filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q.sql("order by created_at"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list rules: %w", err)
	}
	defer rows.Close()

	var result []*provisioning.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) SetRuleLastRun(ctx context.Context, ruleID id.RuleID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update gw_provisioning_rules set last_run_at = ? where id = ?`, at, ruleID.String())
	if err != nil {
		return fmt.Errorf("gatewise: set rule last run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("provisioning rule %s: %w", ruleID, gatewise.ErrNotFound)
	}
	return nil
}

const actionCols = `id, rule_id, org_id, user_id, type, parameters, status, sequence, approved_by, rejection_reason, error, created_at, updated_at, completed_at`

func (s *Store) CreateAction(ctx context.Context, a *provisioning.Action) error {
	params, err := marshalJSON(a.Parameters)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into gw_provisioning_actions (`+actionCols+`) values (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, a.ID.String(), nullableRuleID(a.RuleID), a.OrgID, a.UserID, string(a.Type), params,
		string(a.Status), a.Sequence, a.ApprovedBy, a.RejectionReason, a.Error,
		a.CreatedAt, a.UpdatedAt, a.CompletedAt)
	if err != nil {
		return fmt.Errorf("gatewise: create action: %w", err)
	}
	return nil
}

func scanAction(row interface{ Scan(...any) error }) (*provisioning.Action, error) {
	var a provisioning.Action
	var rawID, actionType, status string
	var ruleID sql.NullString
	var params []byte
	var completed sql.NullTime
	err := row.Scan(&rawID, &ruleID, &a.OrgID, &a.UserID, &actionType, &params, &status,
		&a.Sequence, &a.ApprovedBy, &a.RejectionReason, &a.Error, &a.CreatedAt, &a.UpdatedAt, &completed)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseActionID(rawID)
	if err != nil {
		return nil, err
	}
	a.ID = parsed
	a.Type = provisioning.ActionType(actionType)
	a.Status = provisioning.Status(status)
	if ruleID.Valid {
		rid, err := id.ParseRuleID(ruleID.String)
		if err != nil {
			return nil, err
		}
		a.RuleID = &rid
	}
	if completed.Valid {
		a.CompletedAt = &completed.Time
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &a.Parameters); err != nil {
			return nil, fmt.Errorf("gatewise: decode action parameters: %w", err)
		}
	}
	return &a, nil
}

func (s *Store) GetAction(ctx context.Context, actionID id.ActionID) (*provisioning.Action, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+actionCols+` from gw_provisioning_actions where id = ?`, actionID.String())
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("provisioning action %s: %w", actionID, gatewise.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gatewise: get action: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAction(ctx context.Context, a *provisioning.Action) error {
	params, err := marshalJSON(a.Parameters)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update gw_provisioning_actions
		set parameters = ?, status = ?, approved_by = ?, rejection_reason = ?,
		    error = ?, updated_at = ?, completed_at = ?
		where id = ?
	`, params, string(a.Status), a.ApprovedBy, a.RejectionReason,
		a.Error, a.UpdatedAt, a.CompletedAt, a.ID.String())
	if err != nil {
		return fmt.Errorf("gatewise: update action: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("provisioning action %s: %w", a.ID, gatewise.ErrNotFound)
	}
	return nil
}

func (s *Store) ListActions(ctx context.Context, filter *provisioning.ActionFilter) ([]*provisioning.Action, error) {
	q := newQuery(`select ` + actionCols + ` from gw_provisioning_actions`)
	if filter != nil {
		if filter.RuleID != nil {
			q.where("rule_id = ?", filter.RuleID.String())
		}
		if filter.OrgID != "" {
			q.where("org_id = ?", filter.OrgID)
		}
		if filter.UserID != "" {
			q.where("user_id = ?", filter.UserID)
		}
		if filter.Status != "" {
			q.where("status = ?", string(filter.Status))
		}
		q.page(filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q.sql("order by created_at, sequence"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("gatewise: list actions: %w", err)
	}
	defer rows.Close()

	var result []*provisioning.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// query accumulates ?-placeholder conditions; SQLite takes them verbatim.
type query struct {
	base   string
	conds  []string
	args   []any
	limit  int
	offset int
}

func newQuery(base string) *query { return &query{base: base} }

func (q *query) where(cond string, arg any) {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, arg)
}

func (q *query) page(limit, offset int) {
	q.limit = limit
	q.offset = offset
}

func (q *query) sql(suffix string) string {
	var b strings.Builder
	b.WriteString(q.base)
	if len(q.conds) > 0 {
		b.WriteString(" where ")
		b.WriteString(strings.Join(q.conds, " and "))
	}
	if suffix != "" {
		b.WriteString(" ")
		b.WriteString(suffix)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.limit)
	}
	if q.offset > 0 {
		fmt.Fprintf(&b, " offset %d", q.offset)
	}
	return b.String()
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gatewise: encode json column: %w", err)
	}
	return b, nil
}

func nullableID(rid *id.RoleID) sql.NullString {
	if rid == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: rid.String(), Valid: true}
}

func nullableRuleID(rid *id.RuleID) sql.NullString {
	if rid == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: rid.String(), Valid: true}
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func parseNullableRoleID(ns sql.NullString) (*id.RoleID, error) {
	if !ns.Valid {
		return nil, nil
	}
	parsed, err := id.ParseRoleID(ns.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
