package compiler

import "strings"

// Stats counts what a pass changed.
type Stats struct {
	Removed int // declarations dropped as dead
	Fused   int // print statements merged into a neighbour
	Inlined int // constants substituted (pass 2 only)
}

// Optimize runs pass 1 on prog in place: dead declarations are removed,
// then runs of prints to the same stream are fused.
func Optimize(prog *Program) Stats {
	var st Stats
	for {
		refs := referenced(prog.Nodes)
		var n int
		prog.Nodes, n = removeDead(prog.Nodes, refs)
		if n == 0 {
			break
		}
		st.Removed += n
	}
	prog.Nodes, st.Fused = fusePrints(prog.Nodes)
	return st
}

// exprRefs adds every variable e reads to refs, placeholders included.
// skip names a variable whose references are ignored.
func exprRefs(e Expr, refs map[string]bool, skip string) {
	WalkExpr(e, func(e Expr) {
		switch x := e.(type) {
		case *Identifier:
			if x.Name != skip {
				refs[x.Name] = true
			}
		case *Literal:
			for _, name := range PlaceholderNames(x.Text) {
				if name != skip {
					refs[name] = true
				}
			}
		}
	})
}

// referenced collects the names read or written anywhere in nodes.
// A declaration mentioning its own name does not count as a use.
func referenced(nodes []Node) map[string]bool {
	refs := make(map[string]bool)
	Walk(nodes, func(n Node) {
		switch s := n.(type) {
		case *Input:
			refs[s.Name] = true
		case *Print:
			exprRefs(s.Expr, refs, "")
		case *MathOp:
			refs[s.Name] = true
			exprRefs(s.Operand, refs, "")
		case *If:
			exprRefs(s.Condition, refs, "")
		case *VarDeclaration:
			exprRefs(s.Value, refs, s.Name)
		}
	})
	return refs
}

// removeDead drops declarations of unreferenced names at every level.
func removeDead(nodes []Node, refs map[string]bool) ([]Node, int) {
	removed := 0
	out := nodes[:0]
	for _, n := range nodes {
		switch s := n.(type) {
		case *VarDeclaration:
			if !refs[s.Name] {
				removed++
				continue
			}
		case *If:
			var k int
			s.Body, k = removeDead(s.Body, refs)
			removed += k
		}
		out = append(out, n)
	}
	return out, removed
}

// Template returns the print's text with an Identifier written as a
// {name} placeholder and a missing expression as "".
func (p *Print) Template() string {
	switch e := p.Expr.(type) {
	case *Literal:
		return e.Text
	case *Identifier:
		return "{" + e.Name + "}"
	}
	return ""
}

// fusePrints merges each run of two or more consecutive prints to the
// same stream into one, at every level. One leading space is stripped
// from a fused result.
func fusePrints(nodes []Node) ([]Node, int) {
	fused := 0
	out := make([]Node, 0, len(nodes))
	for i := 0; i < len(nodes); {
		if s, ok := nodes[i].(*If); ok {
			var k int
			s.Body, k = fusePrints(s.Body)
			fused += k
		}
		first, ok := nodes[i].(*Print)
		if !ok {
			out = append(out, nodes[i])
			i++
			continue
		}
		j := i + 1
		for j < len(nodes) {
			next, ok := nodes[j].(*Print)
			if !ok || next.ToStderr != first.ToStderr {
				break
			}
			j++
		}
		if j-i == 1 {
			out = append(out, first)
			i++
			continue
		}
		var sb strings.Builder
		for _, n := range nodes[i:j] {
			sb.WriteString(n.(*Print).Template())
		}
		text := strings.TrimPrefix(sb.String(), " ")
		out = append(out, &Print{ToStderr: first.ToStderr, Expr: &Literal{Text: text}})
		fused += j - i - 1
		i = j
	}
	return out, fused
}
