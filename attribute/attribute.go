// Package attribute defines the attribute-store collaborator contract the
// condition evaluator reads from. Attribute values are opaque key/value
// pairs scoped to a resource, a user, or the environment; the store itself
// (how attributes are written and persisted) is outside the engine.
package attribute

import "context"

// Kind identifies which attribute namespace a reference resolves against.
type Kind string

const (
	// KindResource attributes belong to the resource being accessed.
	KindResource Kind = "resource"

	// KindUser attributes belong to the requesting user.
	KindUser Kind = "user"

	// KindEnvironment attributes are ambient (deployment, region, ...).
	KindEnvironment Kind = "environment"

	// KindContext attributes come from the per-request context map and are
	// resolved by the evaluator itself, never from the store.
	KindContext Kind = "context"
)

// Ref names a single attribute: which namespace and which key.
type Ref struct {
	Kind Kind   `json:"attributeType"`
	Key  string `json:"attributeKey"`
}

// Scope carries the identifiers a lookup is resolved against.
type Scope struct {
	ResourceType string
	ResourceID   string
	UserID       string
	OrgID        string
	WorkspaceID  string
}

// Store is the collaborator the evaluator queries for attribute bundles.
// A missing attribute key is not an error — it is simply absent from the
// returned map; only lookup failures (connectivity, bad scope) error.
type Store interface {
	GetAttributes(ctx context.Context, kind Kind, scope Scope) (map[string]any, error)
}
