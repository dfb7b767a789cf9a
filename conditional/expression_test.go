package conditional

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gatewise/gatewise/attribute"
)

func TestValidateConditionNode(t *testing.T) {
	tests := []struct {
		name    string
		expr    *Expression
		wantErr bool
	}{
		{
			name: "valid comparison",
			expr: Condition(OpEquals, Attr(attribute.KindUser, "department"), Literal("engineering")),
		},
		{
			name:    "logical operator on condition node",
			expr:    &Expression{Kind: KindCondition, Operator: OpAnd, Left: Literal(1), Right: Literal(2)},
			wantErr: true,
		},
		{
			name:    "missing right operand",
			expr:    &Expression{Kind: KindCondition, Operator: OpEquals, Left: Literal(1)},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			expr:    &Expression{Kind: "mystery", Operator: OpEquals},
			wantErr: true,
		},
		{
			name:    "nil expression",
			expr:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.expr.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidExpression) {
				t.Errorf("err = %v, want ErrInvalidExpression", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateCompositeNode(t *testing.T) {
	leaf := Condition(OpEquals, Attr(attribute.KindUser, "x"), Literal(1))

	if err := And(leaf, leaf).Validate(); err != nil {
		t.Errorf("and: %v", err)
	}
	if err := Or(leaf).Validate(); err != nil {
		t.Errorf("or: %v", err)
	}
	if err := Not(leaf).Validate(); err != nil {
		t.Errorf("not: %v", err)
	}

	// And/Or require at least one child.
	if err := And().Validate(); !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("empty and: %v", err)
	}
	// Not requires exactly one child.
	two := &Expression{Kind: KindComposite, Operator: OpNot, Expressions: []*Expression{leaf, leaf}}
	if err := two.Validate(); !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("not with two children: %v", err)
	}
	// Comparison operator on a composite node.
	bad := &Expression{Kind: KindComposite, Operator: OpEquals, Expressions: []*Expression{leaf}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("comparison on composite: %v", err)
	}
	// Invalid child fails the parent.
	broken := And(leaf, &Expression{Kind: KindCondition, Operator: OpEquals})
	if err := broken.Validate(); !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("broken child: %v", err)
	}
}

func TestOperandJSONRoundTrip(t *testing.T) {
	expr := And(
		Condition(OpEquals, Attr(attribute.KindUser, "department"), Literal("engineering")),
		Condition(OpIn, Attr(attribute.KindResource, "visibility"), Literal([]any{"internal", "public"})),
	)

	data, err := json.Marshal(expr)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Expression
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if err := decoded.Validate(); err != nil {
		t.Fatalf("decoded expression invalid: %v", err)
	}

	left := decoded.Expressions[0].Left
	if !left.IsAttribute() {
		t.Fatal("attribute operand decoded as literal")
	}
	if left.Attribute.Kind != attribute.KindUser || left.Attribute.Key != "department" {
		t.Errorf("ref = %+v", left.Attribute)
	}

	right := decoded.Expressions[0].Right
	if right.IsAttribute() {
		t.Fatal("literal operand decoded as attribute")
	}
	if right.Value != "engineering" {
		t.Errorf("literal = %v", right.Value)
	}
}

func TestAttributeOperandMissingKey(t *testing.T) {
	var o Operand
	err := json.Unmarshal([]byte(`{"type":"attribute","attributeType":"user"}`), &o)
	if !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("err = %v, want ErrInvalidExpression", err)
	}
}

func TestLiteralObjectStaysLiteral(t *testing.T) {
	// An object without "type":"attribute" is an opaque literal.
	var o Operand
	if err := json.Unmarshal([]byte(`{"region":"eu"}`), &o); err != nil {
		t.Fatal(err)
	}
	if o.IsAttribute() {
		t.Fatal("plain object misread as attribute reference")
	}
}
