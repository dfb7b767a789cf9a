package gatewise

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gatewise/gatewise/attribute"
	"github.com/gatewise/gatewise/conditional"
)

// Evaluator evaluates condition expression trees against attribute
// bundles. It is stateless apart from its collaborators and safe for
// unbounded concurrent use.
//
// The overriding rule is fail closed: a missing attribute value, an
// uncoercible numeric operand, or a non-set operand to in/not_in makes the
// enclosing condition false — never true, never a panic. Only collaborator
// failures (attribute store errors) and unevaluable expressions (unknown
// operator) surface as errors.
type Evaluator struct {
	attributes attribute.Store
}

// NewEvaluator creates an evaluator reading from the given attribute
// store. A nil store resolves every non-context attribute as absent.
func NewEvaluator(attrs attribute.Store) *Evaluator {
	return &Evaluator{attributes: attrs}
}

// Evaluate evaluates the expression against the evaluation context.
// Composite and/or short-circuit left to right.
func (ev *Evaluator) Evaluate(ctx context.Context, expr *conditional.Expression, ec conditional.EvalContext) (bool, error) {
	if expr == nil {
		return false, fmt.Errorf("%w: nil expression", ErrInvalidCondition)
	}

	switch expr.Kind {
	case conditional.KindCondition:
		return ev.evaluateCondition(ctx, expr, ec)

	case conditional.KindComposite:
		switch expr.Operator {
		case conditional.OpAnd:
			for _, child := range expr.Expressions {
				ok, err := ev.Evaluate(ctx, child, ec)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			return len(expr.Expressions) > 0, nil

		case conditional.OpOr:
			for _, child := range expr.Expressions {
				ok, err := ev.Evaluate(ctx, child, ec)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil

		case conditional.OpNot:
			if len(expr.Expressions) != 1 {
				return false, fmt.Errorf("%w: not requires exactly one child", ErrInvalidCondition)
			}
			ok, err := ev.Evaluate(ctx, expr.Expressions[0], ec)
			if err != nil {
				return false, err
			}
			return !ok, nil

		default:
			return false, fmt.Errorf("%w: operator %q is not a logical operator", ErrInvalidCondition, expr.Operator)
		}

	default:
		return false, fmt.Errorf("%w: unknown node kind %q", ErrInvalidCondition, expr.Kind)
	}
}

func (ev *Evaluator) evaluateCondition(ctx context.Context, expr *conditional.Expression, ec conditional.EvalContext) (bool, error) {
	left, leftOK, err := ev.resolveOperand(ctx, expr.Left, ec)
	if err != nil {
		return false, err
	}
	right, rightOK, err := ev.resolveOperand(ctx, expr.Right, ec)
	if err != nil {
		return false, err
	}
	// Any comparison against an unresolved value is false.
	if !leftOK || !rightOK {
		return false, nil
	}
	return compare(expr.Operator, left, right)
}

// resolveOperand returns the operand's value and whether it resolved.
// A literal always resolves; an attribute reference resolves only when the
// key is present in its namespace.
func (ev *Evaluator) resolveOperand(ctx context.Context, o *conditional.Operand, ec conditional.EvalContext) (any, bool, error) {
	if o == nil {
		return nil, false, nil
	}
	if !o.IsAttribute() {
		return o.Value, true, nil
	}

	ref := o.Attribute
	if ref.Kind == attribute.KindContext {
		if ec.Context == nil {
			return nil, false, nil
		}
		v, ok := ec.Context[ref.Key]
		return v, ok, nil
	}

	if ev.attributes == nil {
		return nil, false, nil
	}
	attrs, err := ev.attributes.GetAttributes(ctx, ref.Kind, attribute.Scope{
		ResourceType: ec.ResourceType,
		ResourceID:   ec.ResourceID,
		UserID:       ec.UserID,
		OrgID:        ec.OrgID,
		WorkspaceID:  ec.WorkspaceID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("gatewise: resolve %s.%s: %w", ref.Kind, ref.Key, err)
	}
	v, ok := attrs[ref.Key]
	return v, ok, nil
}

func compare(op conditional.Operator, left, right any) (bool, error) {
	switch op {
	case conditional.OpEquals:
		return fmt.Sprint(left) == fmt.Sprint(right), nil
	case conditional.OpNotEquals:
		return fmt.Sprint(left) != fmt.Sprint(right), nil

	case conditional.OpGreaterThan, conditional.OpGTE, conditional.OpLessThan, conditional.OpLTE:
		lf, lok := toFloat64(left)
		rf, rok := toFloat64(right)
		if !lok || !rok {
			return false, nil
		}
		switch op {
		case conditional.OpGreaterThan:
			return lf > rf, nil
		case conditional.OpGTE:
			return lf >= rf, nil
		case conditional.OpLessThan:
			return lf < rf, nil
		default:
			return lf <= rf, nil
		}

	case conditional.OpIn:
		return inSet(left, right), nil
	case conditional.OpNotIn:
		set, ok := toSet(right)
		if !ok {
			return false, nil
		}
		return !containsValue(set, left), nil

	case conditional.OpContains:
		return strings.Contains(fmt.Sprint(left), fmt.Sprint(right)), nil
	case conditional.OpNotContains:
		return !strings.Contains(fmt.Sprint(left), fmt.Sprint(right)), nil
	case conditional.OpStartsWith:
		return strings.HasPrefix(fmt.Sprint(left), fmt.Sprint(right)), nil
	case conditional.OpEndsWith:
		return strings.HasSuffix(fmt.Sprint(left), fmt.Sprint(right)), nil

	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, op)
	}
}

func inSet(value, set any) bool {
	items, ok := toSet(set)
	if !ok {
		return false
	}
	return containsValue(items, value)
}

func toSet(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		items := make([]any, len(s))
		for i, item := range s {
			items[i] = item
		}
		return items, true
	case []int:
		items := make([]any, len(s))
		for i, item := range s {
			items[i] = item
		}
		return items, true
	case []float64:
		items := make([]any, len(s))
		for i, item := range s {
			items[i] = item
		}
		return items, true
	default:
		return nil, false
	}
}

func containsValue(items []any, value any) bool {
	s := fmt.Sprint(value)
	for _, item := range items {
		if fmt.Sprint(item) == s {
			return true
		}
	}
	return false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		// The whole string must parse: "12abc" is not a number, and an
		// uncoercible operand makes the comparison false.
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
