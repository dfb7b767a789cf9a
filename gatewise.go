// Package gatewise provides fine-grained, hybrid RBAC + ABAC authorization
// for Go.
//
// Gatewise answers "can principal P perform action A on resource R at time
// T?" by consulting layered permission sources with a fixed precedence:
// direct resource grants, role-derived permissions (with inheritance and
// templates), attribute-conditioned grants, and time-windowed or recurring
// grants. Denial is the default; every authorization-relevant failure
// fails closed.
//
//	eng, err := gatewise.NewEngine(
//	    gatewise.WithStore(memStore),
//	)
//	decision, err := eng.CheckPermission(ctx, &gatewise.CheckRequest{
//	    Principal:    &gatewise.Principal{UserID: "user_123"},
//	    Action:       "read",
//	    ResourceType: "chatflow",
//	    ResourceID:   "flow_456",
//	})
package gatewise

import "github.com/gatewise/gatewise/id"

// Principal is an authenticated actor. Gatewise trusts it as already
// verified — resolving a raw credential to a Principal is the identity
// layer's job. Role assignments are carried on the principal, keyed by the
// tenant boundary they were assigned at: a role listed under an
// organization is effective only for checks within that organization, and
// likewise for workspaces.
type Principal struct {
	UserID        string `json:"user_id"`
	IsSystemAdmin bool   `json:"is_system_admin,omitempty"`

	// OrganizationRoles maps organization ID to the roles assigned there.
	OrganizationRoles map[string][]id.RoleID `json:"organization_roles,omitempty"`

	// WorkspaceRoles maps workspace ID to the roles assigned there.
	WorkspaceRoles map[string][]id.RoleID `json:"workspace_roles,omitempty"`
}

// RequestContext carries the tenant scope and per-request context
// attributes of a permission check.
type RequestContext struct {
	OrganizationID string `json:"organization_id,omitempty"`
	WorkspaceID    string `json:"workspace_id,omitempty"`

	// Attributes are free-form request attributes resolvable by condition
	// expressions under the "context" namespace.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// CheckRequest is the input to a permission check.
type CheckRequest struct {
	// Principal is the authenticated actor. Nil means the request carries
	// no authentication context and is denied before any source is read.
	Principal *Principal `json:"principal"`

	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`

	// ResourceID may be empty for type-level checks ("may this user create
	// chatflows?").
	ResourceID string `json:"resource_id,omitempty"`

	Context *RequestContext `json:"context,omitempty"`
}

// PermissionName returns the canonical "resourceType:action" permission
// name the request asks for.
func (r *CheckRequest) PermissionName() string {
	return r.ResourceType + ":" + r.Action
}

// Reason classifies the outcome of a permission check.
type Reason string

const (
	// ReasonUnauthenticated means the request carried no principal. This is
	// a distinct, earlier failure than ReasonNoGrant — it is 401 territory,
	// not 403.
	ReasonUnauthenticated Reason = "unauthenticated"

	// ReasonSystemAdmin means the principal is a system administrator and
	// bypasses all grant sources.
	ReasonSystemAdmin Reason = "system_admin"

	// ReasonDirectResourceGrant means a direct user→resource grant matched.
	ReasonDirectResourceGrant Reason = "direct_resource_grant"

	// ReasonRoleGrant means a role assigned within the requested tenant
	// scope grants the permission, directly or by inheritance.
	ReasonRoleGrant Reason = "role_grant"

	// ReasonConditionalGrant means an attribute-conditioned grant's
	// expression evaluated true.
	ReasonConditionalGrant Reason = "conditional_grant"

	// ReasonTimeBasedGrant means a time-based grant is currently active.
	ReasonTimeBasedGrant Reason = "time_based_grant"

	// ReasonNoGrant means no source granted the permission (default deny).
	ReasonNoGrant Reason = "no_grant"
)

// Provenance tags how a role-derived permission was obtained.
type Provenance string

const (
	// ProvenanceDirect marks a permission attached to the role itself.
	ProvenanceDirect Provenance = "direct"

	// ProvenanceInherited marks a permission contributed by an ancestor.
	ProvenanceInherited Provenance = "inherited"
)

// MatchInfo describes the grant source that decided a check.
type MatchInfo struct {
	// Source is "direct", "role", "conditional", or "temporal".
	Source string `json:"source"`

	// GrantID identifies the matching grant or role.
	GrantID string `json:"grant_id,omitempty"`

	// Provenance is set for role grants.
	Provenance Provenance `json:"provenance,omitempty"`

	Detail string `json:"detail,omitempty"`
}

// Decision is the outcome of a permission check.
type Decision struct {
	Granted    bool       `json:"granted"`
	Reason     Reason     `json:"reason"`
	MatchedBy  *MatchInfo `json:"matched_by,omitempty"`
	EvalTimeNs int64      `json:"eval_time_ns"`
}

// clone returns an independent copy. The engine stamps EvalTimeNs on
// every decision it hands out, so a decision shared through the cache
// must never be the same struct two checks write to.
func (d *Decision) clone() *Decision {
	c := *d
	if d.MatchedBy != nil {
		mb := *d.MatchedBy
		c.MatchedBy = &mb
	}
	return &c
}
