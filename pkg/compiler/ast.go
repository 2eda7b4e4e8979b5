package compiler

import (
	"fmt"
	"strings"
)

//  Types

// TypeKind is the base kind of a declared variable.
type TypeKind int

const (
	IntKind TypeKind = iota
	FloatKind
	StringKind
	CharKind
)

// VarType is the declared type of a variable. Size is only meaningful
// for CharKind, where it is the fixed buffer length.
//
//	@ c c[3] 'abc'
//	     ^^^^  VarType{Kind: CharKind, Size: 3}
type VarType struct {
	Kind TypeKind
	Size int
}

var (
	IntType    = VarType{Kind: IntKind}
	FloatType  = VarType{Kind: FloatKind}
	StringType = VarType{Kind: StringKind}
)

// CharType returns the fixed-size char buffer type c[size].
func CharType(size int) VarType { return VarType{Kind: CharKind, Size: size} }

// Numeric reports whether values of t take part in arithmetic.
func (t VarType) Numeric() bool { return t.Kind == IntKind || t.Kind == FloatKind }

func (t VarType) String() string {
	switch t.Kind {
	case IntKind:
		return "Int"
	case FloatKind:
		return "Float"
	case StringKind:
		return "String"
	case CharKind:
		return fmt.Sprintf("Char[%d]", t.Size)
	}
	return fmt.Sprintf("VarType(%d)", int(t.Kind))
}

//  Operators

// ComparisonOperator is one of == != < <= > >=.
type ComparisonOperator int

const (
	OpEqual ComparisonOperator = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

var comparisonText = [...]string{"==", "!=", "<", "<=", ">", ">="}

func (op ComparisonOperator) String() string { return comparisonText[op] }

// Negate returns the operator that is true exactly when op is false.
func (op ComparisonOperator) Negate() ComparisonOperator {
	switch op {
	case OpEqual:
		return OpNotEqual
	case OpNotEqual:
		return OpEqual
	case OpLess:
		return OpGreaterEqual
	case OpLessEqual:
		return OpGreater
	case OpGreater:
		return OpLessEqual
	}
	return OpLess
}

// LogicalOperator is && or ||.
type LogicalOperator int

const (
	OpAnd LogicalOperator = iota
	OpOr
)

func (op LogicalOperator) String() string {
	if op == OpAnd {
		return "&&"
	}
	return "||"
}

// MathOperator is the operator of a MathOp statement.
type MathOperator int

const (
	OpAdd MathOperator = iota
	OpSub
	OpMul
	OpDiv
)

var mathText = [...]string{"+", "-", "*", "/"}

func (op MathOperator) String() string { return mathText[op] }

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	exprNode()
	String() string
}

// Literal is raw source text: a number, a quoted string, or a print
// template that may contain {name} placeholders.
//
//	>> total: {x}
//	   ^^^^^^^^^^  Literal{Text: "total: {x}"}
type Literal struct {
	Text string
}

func (*Literal) exprNode()        {}
func (l *Literal) String() string { return fmt.Sprintf("%q", l.Text) }

// Identifier is a read of a named variable.
//
//	* x + y
//	      ^  Identifier{Name: "y"}
type Identifier struct {
	Name string
}

func (*Identifier) exprNode()        {}
func (i *Identifier) String() string { return i.Name }

// BinaryOp is a comparison: Left Op Right.
//
//	? (x > 5) { ... }
//	   ^ ^ ^
//	   | | Right
//	   | Op
//	   Left
type BinaryOp struct {
	Left  Expr
	Op    ComparisonOperator
	Right Expr
}

func (*BinaryOp) exprNode() {}
func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// LogicalOp joins two conditions with && or ||. It is separate from
// BinaryOp so code generators can short-circuit.
type LogicalOp struct {
	Left  Expr
	Op    LogicalOperator
	Right Expr
}

func (*LogicalOp) exprNode() {}
func (l *LogicalOp) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right)
}

//  Statement nodes

// Node is implemented by every statement.
type Node interface {
	node()
	String() string
}

// VarDeclaration represents  @ [@] name type [value]
type VarDeclaration struct {
	Mutable bool
	Name    string
	Type    VarType
	Value   Expr // nil when no initializer was given
}

func (*VarDeclaration) node() {}
func (d *VarDeclaration) String() string {
	mut := ""
	if d.Mutable {
		mut = "mut "
	}
	if d.Value == nil {
		return fmt.Sprintf("VarDeclaration(%s%s %s)", mut, d.Name, d.Type)
	}
	return fmt.Sprintf("VarDeclaration(%s%s %s = %s)", mut, d.Name, d.Type, d.Value)
}

// Input represents  .. name  or  > name
type Input struct {
	Name string
}

func (*Input) node()            {}
func (i *Input) String() string { return fmt.Sprintf("Input(%s)", i.Name) }

// Print represents  >> text  (stdout) or  >>> text  (stderr).
type Print struct {
	ToStderr bool
	Expr     Expr // nil for an empty print
}

func (*Print) node() {}
func (p *Print) String() string {
	stream := "stdout"
	if p.ToStderr {
		stream = "stderr"
	}
	if p.Expr == nil {
		return fmt.Sprintf("Print(%s)", stream)
	}
	return fmt.Sprintf("Print(%s, %s)", stream, p.Expr)
}

// MathOp represents  * name op operand
type MathOp struct {
	Name    string
	Op      MathOperator
	Operand Expr
}

func (*MathOp) node() {}
func (m *MathOp) String() string {
	return fmt.Sprintf("MathOp(%s %s= %s)", m.Name, m.Op, m.Operand)
}

// If represents  ? ( condition ) { body }
type If struct {
	Condition Expr
	Body      []Node
}

func (*If) node() {}
func (i *If) String() string {
	parts := make([]string, len(i.Body))
	for k, n := range i.Body {
		parts[k] = n.String()
	}
	return fmt.Sprintf("If(%s) { %s }", i.Condition, strings.Join(parts, "; "))
}

// Program is the whole source file: an ordered list of top-level nodes.
type Program struct {
	Nodes []Node
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, n := range p.Nodes {
		sb.WriteString(n.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Walk calls fn for every node in nodes in source order, descending into
// If bodies after visiting the If itself.
func Walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		if i, ok := n.(*If); ok {
			Walk(i.Body, fn)
		}
	}
}

// WalkExpr calls fn for e and every sub-expression of e.
func WalkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch x := e.(type) {
	case *BinaryOp:
		WalkExpr(x.Left, fn)
		WalkExpr(x.Right, fn)
	case *LogicalOp:
		WalkExpr(x.Left, fn)
		WalkExpr(x.Right, fn)
	}
}

// VarTypes returns the declared type of every variable that still has a
// declaration in the program, nested bodies included. A name declared
// more than once keeps its first type.
func (p *Program) VarTypes() map[string]VarType {
	types := make(map[string]VarType)
	Walk(p.Nodes, func(n Node) {
		if d, ok := n.(*VarDeclaration); ok {
			if _, seen := types[d.Name]; !seen {
				types[d.Name] = d.Type
			}
		}
	})
	return types
}

// Declarations returns every surviving declaration in source order,
// nested bodies included.
func (p *Program) Declarations() []*VarDeclaration {
	var decls []*VarDeclaration
	Walk(p.Nodes, func(n Node) {
		if d, ok := n.(*VarDeclaration); ok {
			decls = append(decls, d)
		}
	})
	return decls
}
