package gatewise

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatewise/gatewise/conditional"
	"github.com/gatewise/gatewise/id"
)

// CreateConditionalPermission validates and persists an
// attribute-conditioned grant.
func (e *Engine) CreateConditionalPermission(ctx context.Context, g *conditional.Grant) error {
	if g.UserID == "" || g.PermissionID.IsNil() || g.ResourceType == "" {
		return fmt.Errorf("%w: conditional grant requires user, permission, and resource type", ErrValidation)
	}
	if err := g.Expression.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := e.store.GetPermission(ctx, g.PermissionID); err != nil {
		return err
	}
	if g.ID.IsNil() {
		g.ID = id.NewConditionalID()
	}
	now := e.clock.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	return e.store.CreateConditional(ctx, g)
}

// EvaluateConditionalPermissions reports whether any active conditional
// grant matching (user, permission, resourceType, resourceID-or-wildcard)
// has an expression that evaluates true against current attributes, and
// returns the first matching grant.
//
// Unevaluable expressions are logged and counted as false: a broken
// condition never grants. Attribute store failures propagate.
func (e *Engine) EvaluateConditionalPermissions(ctx context.Context, userID string, permID id.PermissionID, resourceType, resourceID string, reqCtx *RequestContext) (*conditional.Grant, error) {
	grants, err := e.store.ListActiveConditionalsForKey(ctx, userID, permID, resourceType, resourceID)
	if err != nil {
		return nil, err
	}

	ec := conditional.EvalContext{
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if reqCtx != nil {
		ec.OrgID = reqCtx.OrganizationID
		ec.WorkspaceID = reqCtx.WorkspaceID
		ec.Context = reqCtx.Attributes
	}

	for _, g := range grants {
		ok, err := e.evaluator.Evaluate(ctx, g.Expression, ec)
		if err != nil {
			if isEvaluationFault(err) {
				e.logger.Warn("gatewise: conditional grant unevaluable, treated as false",
					"grant_id", g.ID, "error", err)
				continue
			}
			return nil, err
		}
		if ok {
			return g, nil
		}
	}
	return nil, nil
}

// isEvaluationFault distinguishes a broken expression (fail closed, skip
// the grant) from a collaborator failure (propagate).
func isEvaluationFault(err error) bool {
	return errors.Is(err, ErrInvalidCondition) || errors.Is(err, conditional.ErrInvalidExpression)
}
