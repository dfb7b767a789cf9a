package gatewise

import "context"

// Cache provides optional caching for permission decisions. The engine
// only caches granted decisions from clock- and attribute-independent
// sources (direct and role grants); conditional and time-based outcomes
// depend on attributes or the clock and are re-evaluated on every check.
type Cache interface {
	// Get returns a cached decision, if available.
	Get(ctx context.Context, tenantID string, req *CheckRequest) (*Decision, bool)

	// Set stores a decision in the cache.
	Set(ctx context.Context, tenantID string, req *CheckRequest, d *Decision)

	// InvalidateTenant removes all cached decisions for a tenant.
	InvalidateTenant(ctx context.Context, tenantID string)

	// InvalidateUser removes all cached decisions for a user in a tenant.
	InvalidateUser(ctx context.Context, tenantID, userID string)
}
