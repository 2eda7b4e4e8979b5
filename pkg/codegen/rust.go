package codegen

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"vencc/pkg/compiler"
)

// Rust emits a single main.rs. Stdout and stderr are locked once and
// written with write!; both String and char variables become String.
type Rust struct{}

func (Rust) Target() string    { return "rust" }
func (Rust) Extension() string { return ".rs" }

type rustGen struct {
	out     buffer
	types   map[string]compiler.VarType
	mutable map[string]bool
	defined map[string]bool
}

func (Rust) Emit(prog *compiler.Program) string {
	g := &rustGen{
		types:   prog.VarTypes(),
		mutable: written(prog),
		defined: make(map[string]bool),
	}
	seen := make(map[string]bool)
	for _, d := range prog.Declarations() {
		if d.Mutable || seen[d.Name] {
			g.mutable[d.Name] = true
		}
		seen[d.Name] = true
	}
	hoist := hoisted(prog)
	for name := range hoist {
		g.mutable[name] = true
	}
	needsInput := hasInput(prog)

	if needsInput {
		g.out.raw("use std::io::{self, BufRead, Write};")
	} else {
		g.out.raw("use std::io::{self, Write};")
	}
	g.out.raw("")
	if lo.ContainsBy(lo.Values(g.types), func(t compiler.VarType) bool { return t.Kind == compiler.FloatKind }) {
		for _, l := range rustFloatFormat {
			g.out.raw(l)
		}
		g.out.raw("")
	}
	g.out.raw("#[allow(unused_mut, unused_variables, unused_assignments)]")
	g.out.raw("fn main() {")
	g.out.indent = "    "
	g.out.line("let stdout = io::stdout();")
	g.out.line("let mut out = stdout.lock();")
	g.out.line("let stderr = io::stderr();")
	g.out.line("let mut err = stderr.lock();")
	if needsInput {
		g.out.line("let stdin = io::stdin();")
		g.out.line("let mut ven_line = String::new();")
	}

	for _, name := range sortedNames(hoist) {
		g.define(name, nil)
	}
	g.nodes(prog.Nodes)

	g.out.line("out.flush().unwrap();")
	g.out.raw("}")
	return g.out.String()
}

func (g *rustGen) nodes(nodes []compiler.Node) {
	for _, n := range nodes {
		switch s := n.(type) {
		case *compiler.VarDeclaration:
			if g.defined[s.Name] {
				g.out.line("%s = %s;", varName(s.Name), g.value(s.Name, s.Value))
			} else {
				g.define(s.Name, s.Value)
			}
		case *compiler.Print:
			g.print(s)
		case *compiler.Input:
			g.input(s)
		case *compiler.MathOp:
			g.math(s)
		case *compiler.If:
			g.out.line("if %s {", g.cond(s.Condition))
			saved := g.out.indent
			g.out.indent += "    "
			g.nodes(s.Body)
			g.out.indent = saved
			g.out.line("}")
		}
	}
}

func rustType(t compiler.VarType) string {
	switch t.Kind {
	case compiler.IntKind:
		return "i32"
	case compiler.FloatKind:
		return "f64"
	}
	return "String"
}

func (g *rustGen) define(name string, value compiler.Expr) {
	g.defined[name] = true
	let := "let"
	if g.mutable[name] {
		let = "let mut"
	}
	g.out.line("%s %s: %s = %s;", let, varName(name), rustType(g.types[name]), g.value(name, value))
}

// value renders the initializer of name; a nil value is the zero value
// of its type.
func (g *rustGen) value(name string, value compiler.Expr) string {
	t := g.types[name]
	switch v := value.(type) {
	case *compiler.Identifier:
		if t.Numeric() {
			return varName(v.Name)
		}
		return varName(v.Name) + ".clone()"
	case *compiler.Literal:
		if t.Numeric() {
			return g.number(v.Text, t.Kind == compiler.FloatKind)
		}
		return g.text(v.Text)
	}
	switch t.Kind {
	case compiler.IntKind:
		return "0"
	case compiler.FloatKind:
		return "0.0"
	}
	return "String::new()"
}

// number renders a numeric literal as an i32 or an f64 with a decimal
// point.
func (g *rustGen) number(text string, float bool) string {
	if _, ok := compiler.FoldConstant(text); !ok {
		return text
	}
	if float {
		return floatText(text)
	}
	return intText(text)
}

// text renders a template as a String expression.
func (g *rustGen) text(template string) string {
	format, args := g.format(template)
	if len(args) == 0 {
		return "String::from(" + rustString(compiler.Unescape(template)) + ")"
	}
	return "format!(" + strings.Join(append([]string{format}, args...), ", ") + ")"
}

// format builds a format! string literal and its arguments.
func (g *rustGen) format(template string) (string, []string) {
	var sb strings.Builder
	var args []string
	for _, seg := range compiler.Segments(template) {
		if !seg.IsVar() {
			sb.WriteString(braceEscape(seg.Text))
			continue
		}
		if _, ok := g.types[seg.Var]; !ok {
			sb.WriteString("{{" + seg.Var + "}}")
			continue
		}
		sb.WriteString("{}")
		if g.types[seg.Var].Kind == compiler.FloatKind {
			args = append(args, "ven_g("+varName(seg.Var)+")")
		} else {
			args = append(args, varName(seg.Var))
		}
	}
	return rustString(sb.String()), args
}

func braceEscape(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}

func (g *rustGen) print(p *compiler.Print) {
	template := p.Template()
	if template == "" {
		return
	}
	stream := "out"
	if p.ToStderr {
		stream = "err"
	}
	format, args := g.format(template)
	g.out.line("write!(%s).unwrap();", strings.Join(append([]string{stream, format}, args...), ", "))
}

func (g *rustGen) input(in *compiler.Input) {
	t := g.types[in.Name]
	id := varName(in.Name)
	g.out.line("ven_line.clear();")
	g.out.line("out.flush().unwrap();")
	g.out.line("stdin.lock().read_line(&mut ven_line).unwrap();")
	line := `ven_line.trim_end_matches(&['\r', '\n'][..])`
	switch t.Kind {
	case compiler.IntKind:
		g.out.line("%s = ven_line.trim().parse().unwrap_or(0);", id)
	case compiler.FloatKind:
		g.out.line("%s = ven_line.trim().parse().unwrap_or(0.0);", id)
	case compiler.CharKind:
		g.out.line("%s = %s.chars().take(%d).collect();", id, line, t.Size)
	default:
		g.out.line("%s = %s.to_string();", id, line)
	}
}

func (g *rustGen) math(m *compiler.MathOp) {
	t := g.types[m.Name]
	id := varName(m.Name)
	if t.Numeric() {
		g.out.line("%s = %s %s (%s);", id, id, m.Op, g.numeric(m.Operand, t.Kind == compiler.FloatKind))
		return
	}
	if ref, ok := m.Operand.(*compiler.Identifier); m.Op != compiler.OpAdd || ok && g.types[ref.Name].Numeric() {
		g.out.line("// %s %s %s: unsupported on text", m.Name, m.Op, m.Operand)
		return
	}
	switch v := m.Operand.(type) {
	case *compiler.Identifier:
		g.out.line("%s.push_str(&%s);", id, varName(v.Name))
	case *compiler.Literal:
		g.out.line("%s.push_str(%s);", id, rustString(concatText(v.Text)))
	}
}

// numeric renders e as an i32 or f64 expression, casting identifiers of
// the other numeric type.
func (g *rustGen) numeric(e compiler.Expr, float bool) string {
	switch v := e.(type) {
	case *compiler.Identifier:
		t := g.types[v.Name]
		id := varName(v.Name)
		if (t.Kind == compiler.FloatKind) != float {
			if float {
				return "(" + id + " as f64)"
			}
			return "(" + id + " as i32)"
		}
		return id
	case *compiler.Literal:
		return g.number(v.Text, float)
	}
	return "0"
}

func (g *rustGen) str(e compiler.Expr) string {
	switch v := e.(type) {
	case *compiler.Identifier:
		return varName(v.Name) + ".as_str()"
	case *compiler.Literal:
		return rustString(unquote(v.Text))
	}
	return `""`
}

func (g *rustGen) cond(e compiler.Expr) string {
	switch v := e.(type) {
	case *compiler.LogicalOp:
		return fmt.Sprintf("(%s) %s (%s)", g.cond(v.Left), v.Op, g.cond(v.Right))
	case *compiler.BinaryOp:
		if textual(g.types, v.Left) || textual(g.types, v.Right) {
			return fmt.Sprintf("%s %s %s", g.str(v.Left), v.Op, g.str(v.Right))
		}
		float := floating(g.types, v.Left) || floating(g.types, v.Right)
		return fmt.Sprintf("%s %s %s", g.numeric(v.Left, float), v.Op, g.numeric(v.Right, float))
	}
	if textual(g.types, e) {
		return "!" + g.str(e) + ".is_empty()"
	}
	if floating(g.types, e) {
		return g.numeric(e, true) + " != 0.0"
	}
	return g.numeric(e, false) + " != 0"
}

// rustFloatFormat defines ven_g, which renders an f64 the way C's %g
// does: six significant digits, trailing zeros dropped, exponent form
// below 1e-4 and from 1e6.
var rustFloatFormat = []string{
	"#[allow(dead_code)]",
	"fn ven_g(v: f64) -> String {",
	"    if !v.is_finite() {",
	"        return if v.is_nan() { \"nan\".to_string() } else if v > 0.0 { \"inf\".to_string() } else { \"-inf\".to_string() };",
	"    }",
	"    if v == 0.0 {",
	"        return if v.is_sign_negative() { \"-0\".to_string() } else { \"0\".to_string() };",
	"    }",
	"    let trim = |s: &str| -> String {",
	"        if s.contains('.') { s.trim_end_matches('0').trim_end_matches('.').to_string() } else { s.to_string() }",
	"    };",
	"    let sci = format!(\"{:.5e}\", v);",
	"    let (mant, exp) = sci.split_once('e').unwrap();",
	"    let exp: i32 = exp.parse().unwrap();",
	"    if exp < -4 || exp >= 6 {",
	"        format!(\"{}e{}{:02}\", trim(mant), if exp < 0 { '-' } else { '+' }, exp.abs())",
	"    } else {",
	"        trim(&format!(\"{:.*}\", (5 - exp) as usize, v))",
	"    }",
	"}",
}

// rustString quotes s as a Rust string literal.
func rustString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
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
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u{%x}`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
