package compiler

// constant is the literal text an inlinable variable stands for.
type constant struct {
	text string
	typ  VarType
}

// inliner substitutes constants into expressions.
type inliner struct {
	consts map[string]constant
	count  int
}

// Inline runs pass 2 on prog: uses of immutable variables bound to a
// literal are replaced by the literal, then pass 1 runs again to drop
// the declarations that became dead. Running it twice changes nothing
// after the first run.
func Inline(prog *Program) Stats {
	in := &inliner{consts: constants(prog)}
	if len(in.consts) > 0 {
		in.nodes(prog.Nodes)
	}
	st := Optimize(prog)
	st.Inlined = in.count
	return st
}

// constants builds the inline map from top-level declarations that are
// immutable, declared exactly once, never an input or math target, and
// whose value resolves to text with no remaining placeholders. Entries
// are resolved in declaration order, so a constant may be defined in
// terms of earlier ones.
func constants(prog *Program) map[string]constant {
	declared := make(map[string]int)
	written := make(map[string]bool)
	Walk(prog.Nodes, func(n Node) {
		switch s := n.(type) {
		case *VarDeclaration:
			declared[s.Name]++
		case *Input:
			written[s.Name] = true
		case *MathOp:
			written[s.Name] = true
		}
	})

	consts := make(map[string]constant)
	for _, n := range prog.Nodes {
		d, ok := n.(*VarDeclaration)
		if !ok || d.Mutable || declared[d.Name] != 1 || written[d.Name] {
			continue
		}
		switch v := d.Value.(type) {
		case *Literal:
			text := ReplacePlaceholders(v.Text, func(name string) (string, bool) {
				c, ok := consts[name]
				return c.text, ok
			})
			if len(Placeholders(text)) > 0 {
				continue
			}
			consts[d.Name] = constant{text: text, typ: d.Type}
		case *Identifier:
			if c, ok := consts[v.Name]; ok && c.typ == d.Type {
				consts[d.Name] = constant{text: c.text, typ: d.Type}
			}
		}
	}
	return consts
}

func (in *inliner) nodes(nodes []Node) {
	for _, n := range nodes {
		switch s := n.(type) {
		case *VarDeclaration:
			s.Value = in.expr(s.Value, false)
		case *Print:
			s.Expr = in.expr(s.Expr, false)
		case *MathOp:
			s.Operand = in.expr(s.Operand, false)
		case *If:
			s.Condition = in.expr(s.Condition, true)
			in.nodes(s.Body)
		}
	}
}

// expr returns e with constants substituted. Inside conditions string
// and char constants keep their quotes so they still compare as text.
func (in *inliner) expr(e Expr, cond bool) Expr {
	switch x := e.(type) {
	case *Identifier:
		c, ok := in.consts[x.Name]
		if !ok {
			return e
		}
		in.count++
		if cond && !c.typ.Numeric() {
			return &Literal{Text: `"` + c.text + `"`}
		}
		return &Literal{Text: c.text}
	case *Literal:
		x.Text = ReplacePlaceholders(x.Text, func(name string) (string, bool) {
			c, ok := in.consts[name]
			if ok {
				in.count++
			}
			return c.text, ok
		})
	case *BinaryOp:
		x.Left = in.expr(x.Left, cond)
		x.Right = in.expr(x.Right, cond)
	case *LogicalOp:
		x.Left = in.expr(x.Left, cond)
		x.Right = in.expr(x.Right, cond)
	}
	return e
}
