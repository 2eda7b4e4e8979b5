package codegen

import (
	"fmt"
	"strings"

	"vencc/pkg/compiler"
)

// C emits a single C translation unit with everything in main.
// String variables live in malloc'd 256-byte buffers; char variables in
// fixed arrays. Placeholders are formatted at run time with fprintf.
type C struct{}

func (C) Target() string    { return "c" }
func (C) Extension() string { return ".c" }

type cGen struct {
	out     buffer
	types   map[string]compiler.VarType
	defined map[string]bool
}

func (C) Emit(prog *compiler.Program) string {
	g := &cGen{types: prog.VarTypes(), defined: make(map[string]bool)}
	needsInput := hasInput(prog)

	g.out.raw("#include <stdio.h>")
	g.out.raw("#include <stdlib.h>")
	g.out.raw("#include <string.h>")
	g.out.raw("")
	if needsInput {
		g.out.raw("static void ven_readline(char *buf, size_t size) {")
		g.out.raw("    fflush(stdout);")
		g.out.raw("    if (fgets(buf, (int)size, stdin) == NULL) {")
		g.out.raw("        buf[0] = '\\0';")
		g.out.raw("    }")
		g.out.raw("    buf[strcspn(buf, \"\\r\\n\")] = '\\0';")
		g.out.raw("}")
		g.out.raw("")
	}
	g.out.raw("int main(void) {")
	g.out.indent = "    "
	if needsInput {
		g.out.line("char ven_buf[256];")
	}

	for _, name := range sortedNames(hoisted(prog)) {
		g.define(name, nil)
	}
	g.nodes(prog.Nodes)

	g.out.line("return 0;")
	g.out.raw("}")
	return g.out.String()
}

func (g *cGen) nodes(nodes []compiler.Node) {
	for _, n := range nodes {
		switch s := n.(type) {
		case *compiler.VarDeclaration:
			g.declaration(s)
		case *compiler.Print:
			g.print(s)
		case *compiler.Input:
			g.input(s)
		case *compiler.MathOp:
			g.math(s)
		case *compiler.If:
			g.out.line("if (%s) {", g.cond(s.Condition))
			saved := g.out.indent
			g.out.indent += "    "
			g.nodes(s.Body)
			g.out.indent = saved
			g.out.line("}")
		}
	}
}

// define emits the storage for name, initialised from value when given.
func (g *cGen) define(name string, value compiler.Expr) {
	g.defined[name] = true
	t := g.types[name]
	id := varName(name)
	switch t.Kind {
	case compiler.IntKind:
		g.out.line("int %s = %s;", id, g.scalar(value, t))
	case compiler.FloatKind:
		g.out.line("double %s = %s;", id, g.scalar(value, t))
	case compiler.StringKind:
		g.out.line("char *%s = malloc(%d);", id, bufSize(t))
		g.out.line("%s[0] = '\\0';", id)
		g.assignText(name, value)
	case compiler.CharKind:
		g.out.line("char %s[%d] = {0};", id, bufSize(t))
		g.assignText(name, value)
	}
}

func (g *cGen) declaration(d *compiler.VarDeclaration) {
	if !g.defined[d.Name] {
		g.define(d.Name, d.Value)
		return
	}
	t := g.types[d.Name]
	if t.Numeric() {
		g.out.line("%s = %s;", varName(d.Name), g.scalar(d.Value, t))
		return
	}
	if d.Value == nil {
		g.out.line("%s[0] = '\\0';", varName(d.Name))
		return
	}
	g.assignText(d.Name, d.Value)
}

// scalar renders a numeric initializer.
func (g *cGen) scalar(value compiler.Expr, t compiler.VarType) string {
	switch v := value.(type) {
	case *compiler.Identifier:
		return varName(v.Name)
	case *compiler.Literal:
		if num, ok := compiler.NumberText(v.Text); ok {
			return num
		}
		return v.Text
	}
	if t.Kind == compiler.FloatKind {
		return "0.0"
	}
	return "0"
}

// assignText writes a string value into the buffer of name.
func (g *cGen) assignText(name string, value compiler.Expr) {
	size := bufSize(g.types[name])
	id := varName(name)
	switch v := value.(type) {
	case *compiler.Identifier:
		format, args := g.format("{" + v.Name + "}")
		g.out.line("snprintf(%s, %d, %s);", id, size, strings.Join(append([]string{format}, args...), ", "))
	case *compiler.Literal:
		format, args := g.format(v.Text)
		g.out.line("snprintf(%s, %d, %s);", id, size, strings.Join(append([]string{format}, args...), ", "))
	}
}

// format builds a printf format string and its arguments from a
// template.
func (g *cGen) format(template string) (string, []string) {
	var sb strings.Builder
	var args []string
	for _, seg := range compiler.Segments(template) {
		if !seg.IsVar() {
			sb.WriteString(strings.ReplaceAll(seg.Text, "%", "%%"))
			continue
		}
		t, ok := g.types[seg.Var]
		if !ok {
			sb.WriteString("{" + seg.Var + "}")
			continue
		}
		switch t.Kind {
		case compiler.IntKind:
			sb.WriteString("%d")
		case compiler.FloatKind:
			sb.WriteString("%g")
		default:
			sb.WriteString("%s")
		}
		args = append(args, varName(seg.Var))
	}
	return cString(sb.String()), args
}

func (g *cGen) print(p *compiler.Print) {
	template := p.Template()
	if template == "" {
		return
	}
	stream := "stdout"
	if p.ToStderr {
		stream = "stderr"
	}
	format, args := g.format(template)
	g.out.line("fprintf(%s);", strings.Join(append([]string{stream, format}, args...), ", "))
}

func (g *cGen) input(in *compiler.Input) {
	t := g.types[in.Name]
	id := varName(in.Name)
	switch t.Kind {
	case compiler.IntKind:
		g.out.line("ven_readline(ven_buf, sizeof ven_buf);")
		g.out.line("%s = atoi(ven_buf);", id)
	case compiler.FloatKind:
		g.out.line("ven_readline(ven_buf, sizeof ven_buf);")
		g.out.line("%s = strtod(ven_buf, NULL);", id)
	default:
		g.out.line("ven_readline(%s, %d);", id, bufSize(t))
	}
}

func (g *cGen) math(m *compiler.MathOp) {
	t := g.types[m.Name]
	if t.Numeric() {
		id := varName(m.Name)
		g.out.line("%s = %s %s (%s);", id, id, m.Op, g.number(m.Operand, t.Kind == compiler.FloatKind))
		return
	}
	operand := g.operand(m.Operand)
	if ref, ok := m.Operand.(*compiler.Identifier); m.Op != compiler.OpAdd || ok && g.types[ref.Name].Numeric() {
		g.out.line("/* %s %s %s: unsupported on text */", m.Name, m.Op, m.Operand)
		return
	}
	size := bufSize(t)
	if lit, ok := m.Operand.(*compiler.Literal); ok {
		operand = cString(concatText(lit.Text))
	}
	id := varName(m.Name)
	g.out.line("strncat(%s, %s, %d - strlen(%s));", id, operand, size-1, id)
}

// number renders a math operand converted to the variable's type, so a
// Float operand on an Int truncates before the operation.
func (g *cGen) number(e compiler.Expr, float bool) string {
	switch v := e.(type) {
	case *compiler.Identifier:
		if !float && g.types[v.Name].Kind == compiler.FloatKind {
			return "(int)" + varName(v.Name)
		}
		return varName(v.Name)
	case *compiler.Literal:
		if float {
			return floatText(v.Text)
		}
		return intText(v.Text)
	}
	return "0"
}

// operand renders a text operand or comparison side as a C expression.
func (g *cGen) operand(e compiler.Expr) string {
	switch v := e.(type) {
	case *compiler.Identifier:
		return varName(v.Name)
	case *compiler.Literal:
		if quoted(v.Text) {
			return cString(unquote(v.Text))
		}
		if num, ok := compiler.NumberText(v.Text); ok {
			return num
		}
		return v.Text
	}
	return "0"
}

func (g *cGen) cond(e compiler.Expr) string {
	switch v := e.(type) {
	case *compiler.LogicalOp:
		return fmt.Sprintf("(%s) %s (%s)", g.cond(v.Left), v.Op, g.cond(v.Right))
	case *compiler.BinaryOp:
		l, r := g.operand(v.Left), g.operand(v.Right)
		if textual(g.types, v.Left) || textual(g.types, v.Right) {
			return fmt.Sprintf("strcmp(%s, %s) %s 0", l, r, v.Op)
		}
		return fmt.Sprintf("%s %s %s", l, v.Op, r)
	}
	if textual(g.types, e) {
		return g.operand(e) + "[0] != '\\0'"
	}
	return g.operand(e) + " != 0"
}

// cString quotes s as a C string literal.
func cString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&sb, `\%03o`, c)
				continue
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
