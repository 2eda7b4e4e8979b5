package codegen

import "vencc/pkg/compiler"

// LX8664 is NASM for x86-64 Linux with the full runtime: placeholders are
// formatted at run time in both prints and declarations, numeric input
// is parsed, and strings compare with ven_compare_str.
type LX8664 struct{}

func (LX8664) Target() string    { return "lx8664" }
func (LX8664) Extension() string { return ".asm" }

func (LX8664) Emit(prog *compiler.Program) string {
	c := newAsmCore(prog, linux64ABI, false)
	c.strcmp = true
	g := lx8664Gen{c}
	g.nodes(prog.Nodes)
	return c.assemble("lx8664")
}

type lx8664Gen struct {
	*asmCore
}

func (g lx8664Gen) nodes(nodes []compiler.Node) {
	for _, n := range nodes {
		switch s := n.(type) {
		case *compiler.VarDeclaration:
			g.declaration(s)
		case *compiler.Print:
			g.printTemplate(s.Template(), streamFD(s), true, g.printLoop)
		case *compiler.Input:
			g.input(s)
		case *compiler.MathOp:
			g.math(s)
		case *compiler.If:
			g.ifBlock(s, g.nodes)
		}
	}
}

func (g lx8664Gen) declaration(d *compiler.VarDeclaration) {
	if g.types[d.Name].Numeric() {
		g.declareNumeric(d.Name, d.Value)
		return
	}
	switch v := d.Value.(type) {
	case *compiler.Identifier:
		g.copyVar(d.Name, v.Name)
	case *compiler.Literal:
		g.format(d.Name, v.Text)
	default:
		g.copyText(d.Name, "")
	}
}

// format builds template into the buffer of name piece by piece.
func (g lx8664Gen) format(name, template string) {
	segs := compiler.Segments(template)
	if len(segs) == 1 && !segs[0].IsVar() {
		g.copyText(name, segs[0].Text)
		return
	}
	g.ins("mov byte %s, 0", g.mem(name))
	for _, seg := range segs {
		t, known := g.types[seg.Var]
		switch {
		case !seg.IsVar():
			g.ins("lea rsi, [%s]", g.str(seg.Text))
		case !known:
			g.ins("lea rsi, [%s]", g.str("{"+seg.Var+"}"))
		case t.Numeric():
			g.loadInt("rax", &compiler.Identifier{Name: seg.Var})
			g.ins("call ven_itoa")
			g.need["itoa"] = true
		default:
			g.ins("lea rsi, %s", g.mem(seg.Var))
		}
		g.appendFrom(name)
	}
}

func (g lx8664Gen) input(in *compiler.Input) {
	t := g.types[in.Name]
	if !t.Numeric() {
		g.readText(in.Name)
		return
	}
	g.ins("lea rsi, [ven_line]")
	g.ins("mov rdx, 255")
	g.ins("call ven_readline")
	g.ins("lea rsi, [ven_line]")
	g.ins("call ven_parse_int")
	g.need["readline"] = true
	g.need["parse_int"] = true
	if t.Kind == compiler.FloatKind {
		g.ins("cvtsi2sd xmm0, rax")
		g.ins("movsd qword %s, xmm0", g.mem(in.Name))
		return
	}
	g.ins("mov %s, rax", g.mem(in.Name))
}
