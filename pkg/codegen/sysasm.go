package codegen

import "vencc/pkg/compiler"

// sysGen is the walk of the syscall-level NASM targets (l64, l32 and the
// macOS and Windows flavours). Declarations copy their text verbatim,
// only string variables can be read, and strings are compared only when
// both sides are literals. stringVars controls whether a {string}
// placeholder in a print is written at run time or left as its name.
type sysGen struct {
	*asmCore
	stringVars bool
}

func (g sysGen) print(s string, fd int) {
	if g.equ {
		g.printEqu(s, fd)
		return
	}
	g.printLoop(s, fd)
}

func (g sysGen) nodes(nodes []compiler.Node) {
	for _, n := range nodes {
		switch s := n.(type) {
		case *compiler.VarDeclaration:
			if g.types[s.Name].Numeric() {
				g.declareNumeric(s.Name, s.Value)
				continue
			}
			switch v := s.Value.(type) {
			case *compiler.Identifier:
				g.copyVar(s.Name, v.Name)
			case *compiler.Literal:
				g.copyText(s.Name, degrade(v.Text))
			default:
				g.copyText(s.Name, "")
			}
		case *compiler.Print:
			g.printTemplate(s.Template(), streamFD(s), g.stringVars, g.print)
		case *compiler.Input:
			if g.types[s.Name].Numeric() {
				g.comment("input %s: numeric input unsupported on this target", s.Name)
				continue
			}
			g.readText(s.Name)
		case *compiler.MathOp:
			g.math(s)
		case *compiler.If:
			g.ifBlock(s, g.nodes)
		}
	}
}
