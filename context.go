package gatewise

import "context"

type contextKey int

const (
	ctxKeyOrgID contextKey = iota
	ctxKeyWorkspaceID
)

// WithTenant returns a context carrying the given organization and
// workspace IDs. CheckPermission falls back to these when the request
// carries no explicit RequestContext.
func WithTenant(ctx context.Context, orgID, workspaceID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyOrgID, orgID)
	ctx = context.WithValue(ctx, ctxKeyWorkspaceID, workspaceID)
	return ctx
}

func orgIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyOrgID).(string)
	if !ok {
		return ""
	}
	return v
}

func workspaceIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyWorkspaceID).(string)
	if !ok {
		return ""
	}
	return v
}
