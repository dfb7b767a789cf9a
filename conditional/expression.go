package conditional

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gatewise/gatewise/attribute"
)

// ErrInvalidExpression is returned when an expression tree is malformed.
var ErrInvalidExpression = errors.New("conditional: invalid expression")

// Kind discriminates the two expression node types.
type Kind string

const (
	// KindCondition is a leaf comparison node.
	KindCondition Kind = "condition"

	// KindComposite is a logical combinator over child expressions.
	KindComposite Kind = "composite"
)

// Operator is a comparison or logical operator. Comparison operators
// appear on condition nodes; And/Or/Not appear on composite nodes.
type Operator string

const (
	// OpEquals checks for equality.
	OpEquals Operator = "eq"

	// OpNotEquals checks for inequality.
	OpNotEquals Operator = "neq"

	// OpGreaterThan checks if a value is numerically greater than another.
	OpGreaterThan Operator = "gt"

	// OpGTE checks if a value is numerically greater than or equal to another.
	OpGTE Operator = "gte"

	// OpLessThan checks if a value is numerically less than another.
	OpLessThan Operator = "lt"

	// OpLTE checks if a value is numerically less than or equal to another.
	OpLTE Operator = "lte"

	// OpIn checks if a value is in a set.
	OpIn Operator = "in"

	// OpNotIn checks if a value is not in a set.
	OpNotIn Operator = "not_in"

	// OpContains checks if a string contains a substring.
	OpContains Operator = "contains"

	// OpNotContains checks if a string does not contain a substring.
	OpNotContains Operator = "not_contains"

	// OpStartsWith checks if a string starts with a prefix.
	OpStartsWith Operator = "starts_with"

	// OpEndsWith checks if a string ends with a suffix.
	OpEndsWith Operator = "ends_with"

	// OpAnd requires all child expressions to hold.
	OpAnd Operator = "and"

	// OpOr requires at least one child expression to hold.
	OpOr Operator = "or"

	// OpNot negates its single child expression.
	OpNot Operator = "not"
)

// comparisonOperators is the set of operators legal on condition nodes.
var comparisonOperators = map[Operator]struct{}{
	OpEquals: {}, OpNotEquals: {},
	OpGreaterThan: {}, OpGTE: {}, OpLessThan: {}, OpLTE: {},
	OpIn: {}, OpNotIn: {},
	OpContains: {}, OpNotContains: {}, OpStartsWith: {}, OpEndsWith: {},
}

// IsComparison reports whether op is legal on a condition node.
func (op Operator) IsComparison() bool {
	_, ok := comparisonOperators[op]
	return ok
}

// IsLogical reports whether op is legal on a composite node.
func (op Operator) IsLogical() bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

// Expression is a node in a boolean expression tree — a tagged union of a
// leaf comparison (Kind=condition: Operator, Left, Right) and a logical
// combinator (Kind=composite: Operator ∈ {and,or,not}, Expressions).
type Expression struct {
	Kind        Kind          `json:"kind"`
	Operator    Operator      `json:"operator"`
	Left        *Operand      `json:"left,omitempty"`
	Right       *Operand      `json:"right,omitempty"`
	Expressions []*Expression `json:"expressions,omitempty"`
}

// Condition builds a leaf comparison node.
func Condition(op Operator, left, right *Operand) *Expression {
	return &Expression{Kind: KindCondition, Operator: op, Left: left, Right: right}
}

// And builds a composite node requiring all children.
func And(children ...*Expression) *Expression {
	return &Expression{Kind: KindComposite, Operator: OpAnd, Expressions: children}
}

// Or builds a composite node requiring at least one child.
func Or(children ...*Expression) *Expression {
	return &Expression{Kind: KindComposite, Operator: OpOr, Expressions: children}
}

// Not builds a composite node negating its single child.
func Not(child *Expression) *Expression {
	return &Expression{Kind: KindComposite, Operator: OpNot, Expressions: []*Expression{child}}
}

// Validate checks the structural invariants of the tree: known kinds,
// operator matching the node kind, both operands on conditions, at least
// one child on and/or, exactly one child on not.
func (e *Expression) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil expression", ErrInvalidExpression)
	}

	switch e.Kind {
	case KindCondition:
		if !e.Operator.IsComparison() {
			return fmt.Errorf("%w: operator %q is not valid on a condition node", ErrInvalidExpression, e.Operator)
		}
		if e.Left == nil || e.Right == nil {
			return fmt.Errorf("%w: condition requires both left and right operands", ErrInvalidExpression)
		}
		if len(e.Expressions) != 0 {
			return fmt.Errorf("%w: condition node must not have child expressions", ErrInvalidExpression)
		}
		return nil

	case KindComposite:
		if !e.Operator.IsLogical() {
			return fmt.Errorf("%w: operator %q is not valid on a composite node", ErrInvalidExpression, e.Operator)
		}
		if e.Operator == OpNot && len(e.Expressions) != 1 {
			return fmt.Errorf("%w: not requires exactly one child, got %d", ErrInvalidExpression, len(e.Expressions))
		}
		if e.Operator != OpNot && len(e.Expressions) == 0 {
			return fmt.Errorf("%w: %s requires at least one child", ErrInvalidExpression, e.Operator)
		}
		for _, child := range e.Expressions {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown node kind %q", ErrInvalidExpression, e.Kind)
	}
}

// Operand is one side of a comparison: either a literal value or a
// reference to an attribute resolved at evaluation time.
type Operand struct {
	// Attribute is non-nil for attribute references.
	Attribute *attribute.Ref

	// Value holds the literal for literal operands.
	Value any
}

// Literal builds a literal operand.
func Literal(v any) *Operand { return &Operand{Value: v} }

// Attr builds an attribute-reference operand.
func Attr(kind attribute.Kind, key string) *Operand {
	return &Operand{Attribute: &attribute.Ref{Kind: kind, Key: key}}
}

// IsAttribute reports whether the operand is an attribute reference.
func (o *Operand) IsAttribute() bool { return o != nil && o.Attribute != nil }

// attrJSON is the wire form of an attribute reference operand.
type attrJSON struct {
	Type          string         `json:"type"`
	AttributeType attribute.Kind `json:"attributeType"`
	AttributeKey  string         `json:"attributeKey"`
}

// MarshalJSON encodes attribute references as
// {"type":"attribute","attributeType":...,"attributeKey":...} and
// literals as their raw JSON value.
func (o Operand) MarshalJSON() ([]byte, error) {
	if o.Attribute != nil {
		return json.Marshal(attrJSON{
			Type:          "attribute",
			AttributeType: o.Attribute.Kind,
			AttributeKey:  o.Attribute.Key,
		})
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON decodes either wire form. An object with "type":"attribute"
// becomes a reference; anything else is kept as a literal.
func (o *Operand) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Type == "attribute" {
		var ref attrJSON
		if err := json.Unmarshal(data, &ref); err != nil {
			return fmt.Errorf("conditional: decode attribute operand: %w", err)
		}
		if ref.AttributeKey == "" {
			return fmt.Errorf("%w: attribute operand missing attributeKey", ErrInvalidExpression)
		}
		o.Attribute = &attribute.Ref{Kind: ref.AttributeType, Key: ref.AttributeKey}
		o.Value = nil
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("conditional: decode literal operand: %w", err)
	}
	o.Attribute = nil
	o.Value = v
	return nil
}
