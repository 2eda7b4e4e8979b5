package compiler

import (
	"reflect"
	"testing"
)

func cmp(l Expr, op ComparisonOperator, r Expr) *BinaryOp {
	return &BinaryOp{Left: l, Op: op, Right: r}
}

func id(name string) *Identifier { return &Identifier{Name: name} }
func lit(text string) *Literal    { return &Literal{Text: text} }

func TestParseCondition(t *testing.T) {
	const decls = "@@ a i 1\n@@ b i 2\n@@ c i 3\n@ s str \"no\"\n"

	tests := []struct {
		name     string
		cond     string
		expected Expr
	}{
		{
			name:     "Comparison",
			cond:     "a >= 2",
			expected: cmp(id("a"), OpGreaterEqual, lit("2")),
		},
		{
			name:     "Bare Operand",
			cond:     "a",
			expected: id("a"),
		},
		{
			name:     "Redundant Parens",
			cond:     "((a != b))",
			expected: cmp(id("a"), OpNotEqual, id("b")),
		},
		{
			name:     "String Operand Keeps Quotes",
			cond:     `s == "yes"`,
			expected: cmp(id("s"), OpEqual, lit(`"yes"`)),
		},
		{
			name:     "Float Operand",
			cond:     "a < 2.5",
			expected: cmp(id("a"), OpLess, lit("2.5")),
		},
		{
			name: "Or Then And Splits At Or",
			cond: "a > 1 || b < 2 && c == 3",
			expected: &LogicalOp{
				Left: cmp(id("a"), OpGreater, lit("1")),
				Op:   OpOr,
				Right: &LogicalOp{
					Left:  cmp(id("b"), OpLess, lit("2")),
					Op:    OpAnd,
					Right: cmp(id("c"), OpEqual, lit("3")),
				},
			},
		},
		{
			// No precedence: the first operator found splits.
			name: "And Then Or Splits At And",
			cond: "a > 1 && b < 2 || c == 3",
			expected: &LogicalOp{
				Left: cmp(id("a"), OpGreater, lit("1")),
				Op:   OpAnd,
				Right: &LogicalOp{
					Left:  cmp(id("b"), OpLess, lit("2")),
					Op:    OpOr,
					Right: cmp(id("c"), OpEqual, lit("3")),
				},
			},
		},
		{
			name: "Parens Group Logical",
			cond: "(a > 1 && b < 2) || c == 3",
			expected: &LogicalOp{
				Left: &LogicalOp{
					Left:  cmp(id("a"), OpGreater, lit("1")),
					Op:    OpAnd,
					Right: cmp(id("b"), OpLess, lit("2")),
				},
				Op:    OpOr,
				Right: cmp(id("c"), OpEqual, lit("3")),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := decls + "? (" + tt.cond + ") {\n}\n"
			prog := mustParse(t, src)
			if len(prog.Nodes) != 5 {
				t.Fatalf("expected 5 nodes, got %d: %v", len(prog.Nodes), prog.Nodes)
			}
			got, ok := prog.Nodes[4].(*If)
			if !ok {
				t.Fatalf("expected *If, got %T", prog.Nodes[4])
			}
			if !reflect.DeepEqual(got.Condition, tt.expected) {
				t.Errorf("condition %q\n got: %v\nwant: %v", tt.cond, got.Condition, tt.expected)
			}
		})
	}
}

func TestParseConditionFailures(t *testing.T) {
	tests := []struct {
		name    string
		cond    string
		details string
	}{
		{"Empty", "", "empty condition"},
		{"Missing Left Operand", "< 3", "missing operands for <"},
		{"Missing Right Operand", "3 ==", "missing operands for =="},
		{"Empty Logical Side", "1 == 1 &&", "invalid right side of AND: empty condition"},
		{"Empty Parens Operand", "() > 1", "invalid left operand of >: empty operand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, errs := parse(t, "? ("+tt.cond+") {\n}\n")
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %v", Join(errs))
			}
			ic, ok := errs[0].(*InvalidCondition)
			if !ok {
				t.Fatalf("expected *InvalidCondition, got %T: %v", errs[0], errs[0])
			}
			if ic.Details != tt.details {
				t.Errorf("details = %q, want %q", ic.Details, tt.details)
			}
		})
	}
}
