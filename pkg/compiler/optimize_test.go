package compiler

import (
	"reflect"
	"strings"
	"testing"
)

func TestOptimize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Node
	}{
		{
			name:     "Unused Declaration Removed",
			input:    "@ unused i 5\n>> hello",
			expected: []Node{&Print{Expr: &Literal{Text: "hello"}}},
		},
		{
			name:  "Placeholder Keeps Declaration",
			input: "@ x i 5\n* x + 3\n>> {x}",
			expected: []Node{
				&VarDeclaration{Name: "x", Type: IntType, Value: &Literal{Text: "5"}},
				&MathOp{Name: "x", Op: OpAdd, Operand: &Literal{Text: "3"}},
				&Print{Expr: &Literal{Text: "{x}"}},
			},
		},
		{
			name:  "Input Keeps Declaration",
			input: "@@ name str \"\"\n.. name",
			expected: []Node{
				&VarDeclaration{Mutable: true, Name: "name", Type: StringType, Value: &Literal{Text: ""}},
				&Input{Name: "name"},
			},
		},
		{
			name:     "Dead Chain Removed",
			input:    "@ a i 1\n@ b str \"{a}\"\n>> done",
			expected: []Node{&Print{Expr: &Literal{Text: "done"}}},
		},
		{
			name:     "Self Reference Is Not A Use",
			input:    "@ s str \"me {s}\"\n>> done",
			expected: []Node{&Print{Expr: &Literal{Text: "done"}}},
		},
		{
			name:     "Prints Fused",
			input:    ">> a\n>> \" b\"\n>> c",
			expected: []Node{&Print{Expr: &Literal{Text: "a bc"}}},
		},
		{
			name:     "Leading Space Stripped Once",
			input:    ">> \"  two\"\n>> x",
			expected: []Node{&Print{Expr: &Literal{Text: " twox"}}},
		},
		{
			name:  "Single Print Keeps Leading Space",
			input: ">> \" one\"",
			expected: []Node{
				&Print{Expr: &Literal{Text: " one"}},
			},
		},
		{
			name:  "Streams Not Fused Across",
			input: ">> a\n>>> b\n>> c\n>> d",
			expected: []Node{
				&Print{Expr: &Literal{Text: "a"}},
				&Print{ToStderr: true, Expr: &Literal{Text: "b"}},
				&Print{Expr: &Literal{Text: "cd"}},
			},
		},
		{
			name:  "Empty And Identifier Prints",
			input: "@ n i 4\n>>\n>> n\n>> !",
			expected: []Node{
				&VarDeclaration{Name: "n", Type: IntType, Value: &Literal{Text: "4"}},
				&Print{Expr: &Literal{Text: "{n}!"}},
			},
		},
		{
			name:  "Statement Breaks Run",
			input: "@@ x i 1\n>> a\n* x + 1\n>> {x}",
			expected: []Node{
				&VarDeclaration{Mutable: true, Name: "x", Type: IntType, Value: &Literal{Text: "1"}},
				&Print{Expr: &Literal{Text: "a"}},
				&MathOp{Name: "x", Op: OpAdd, Operand: &Literal{Text: "1"}},
				&Print{Expr: &Literal{Text: "{x}"}},
			},
		},
		{
			name:  "Nested Body Optimised",
			input: "? (1 == 1) {\n@ dead i 0\n>> a\n>> b\n}",
			expected: []Node{
				&If{
					Condition: &BinaryOp{Left: &Literal{Text: "1"}, Op: OpEqual, Right: &Literal{Text: "1"}},
					Body:      []Node{&Print{Expr: &Literal{Text: "ab"}}},
				},
			},
		},
		{
			name:  "Condition Keeps Declaration",
			input: "@ x i 3\n? (x > 1) {\n>> big\n}",
			expected: []Node{
				&VarDeclaration{Name: "x", Type: IntType, Value: &Literal{Text: "3"}},
				&If{
					Condition: &BinaryOp{Left: &Identifier{Name: "x"}, Op: OpGreater, Right: &Literal{Text: "1"}},
					Body:      []Node{&Print{Expr: &Literal{Text: "big"}}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustParse(t, tt.input)
			Optimize(prog)
			if !reflect.DeepEqual(prog.Nodes, tt.expected) {
				t.Errorf("Optimize(%q)\n got: %v\nwant: %v", tt.input, prog.Nodes, tt.expected)
			}
		})
	}
}

func TestOptimizeStats(t *testing.T) {
	prog := mustParse(t, "@ a i 1\n@ b i 2\n>> x\n>> y\n>> z\n")
	st := Optimize(prog)
	if st.Removed != 2 {
		t.Errorf("Removed = %d, want 2", st.Removed)
	}
	if st.Fused != 2 {
		t.Errorf("Fused = %d, want 2", st.Fused)
	}
}

func TestFusionConcatenatesRuns(t *testing.T) {
	// N consecutive prints become one whose text is their concatenation.
	for n := 2; n <= 6; n++ {
		var src strings.Builder
		var want strings.Builder
		for i := 0; i < n; i++ {
			word := strings.Repeat(string(rune('a'+i)), i+1)
			src.WriteString(">>> " + word + "\n")
			want.WriteString(word)
		}
		prog := mustParse(t, src.String())
		Optimize(prog)
		if len(prog.Nodes) != 1 {
			t.Fatalf("n=%d: expected 1 node, got %v", n, prog.Nodes)
		}
		p := prog.Nodes[0].(*Print)
		if !p.ToStderr || p.Template() != want.String() {
			t.Errorf("n=%d: got %v, want stderr %q", n, p, want.String())
		}
	}
}
