package codegen

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/segmentio/fasthash/fnv1a"

	"vencc/pkg/compiler"
)

// LLVM emits a textual LLVM IR module with opaque pointers. Every
// variable gets an alloca in the entry block; string and char buffers
// are malloc'd there too. Output goes through printf and dprintf(2, ...).
type LLVM struct{}

func (LLVM) Target() string    { return "llvm" }
func (LLVM) Extension() string { return ".ll" }

type llvmGen struct {
	entry  buffer
	body   buffer
	types  map[string]compiler.VarType
	pool   map[string]string // text -> global name
	order  []string
	labels map[string]string // global name -> text
	temp   int
	block  int
}

func (LLVM) Emit(prog *compiler.Program) string {
	g := &llvmGen{
		types:  prog.VarTypes(),
		pool:   make(map[string]string),
		labels: make(map[string]string),
	}
	needsInput := hasInput(prog)
	g.entry.indent, g.body.indent = "  ", "  "

	names := lo.Keys(g.types)
	slices.Sort(names)
	for _, name := range names {
		t := g.types[name]
		switch t.Kind {
		case compiler.IntKind:
			g.entry.line("%s = alloca i32", llvmVar(name))
			g.entry.line("store i32 0, ptr %s", llvmVar(name))
		case compiler.FloatKind:
			g.entry.line("%s = alloca double", llvmVar(name))
			g.entry.line("store double 0.0, ptr %s", llvmVar(name))
		default:
			g.entry.line("%s = alloca ptr", llvmVar(name))
			buf := g.tmp()
			g.entry.line("%s = call ptr @malloc(i64 %d)", buf, bufSize(t))
			g.entry.line("store i8 0, ptr %s", buf)
			g.entry.line("store ptr %s, ptr %s", buf, llvmVar(name))
		}
	}
	if needsInput {
		g.entry.line("%%ven.buf = alloca [256 x i8]")
	}
	g.nodes(prog.Nodes)

	var out buffer
	out.raw("; ven program")
	out.raw("")
	for _, label := range g.order {
		text := g.labels[label]
		out.raw(fmt.Sprintf("%s = private unnamed_addr constant [%d x i8] c\"%s\\00\"", label, len(text)+1, llvmBytes(text)))
	}
	if len(g.order) > 0 {
		out.raw("")
	}
	for _, decl := range []string{
		"declare i32 @printf(ptr, ...)",
		"declare i32 @dprintf(i32, ptr, ...)",
		"declare i32 @snprintf(ptr, i64, ptr, ...)",
		"declare ptr @malloc(i64)",
		"declare i32 @strcmp(ptr, ptr)",
		"declare i64 @strlen(ptr)",
		"declare ptr @strncat(ptr, ptr, i64)",
	} {
		out.raw(decl)
	}
	if needsInput {
		out.raw("declare i64 @read(i32, ptr, i64)")
		out.raw("declare i64 @strcspn(ptr, ptr)")
		out.raw("declare i32 @fflush(ptr)")
		out.raw("declare i32 @atoi(ptr)")
		out.raw("declare double @atof(ptr)")
		out.raw("")
		out.raw(llvmReadline)
	}
	out.raw("")
	out.raw("define i32 @main() {")
	out.raw("entry:")
	out.WriteString(g.entry.String())
	out.WriteString(g.body.String())
	out.raw("  ret i32 0")
	out.raw("}")
	return out.String()
}

// llvmReadline reads one line from fd 0 into buf, flushing stdout first
// and cutting the line at the first CR or LF.
const llvmReadline = `@.crlf = private unnamed_addr constant [3 x i8] c"\0D\0A\00"

define internal void @ven.readline(ptr %buf, i64 %size) {
entry:
  %flushed = call i32 @fflush(ptr null)
  %cap = sub i64 %size, 1
  %n = call i64 @read(i32 0, ptr %buf, i64 %cap)
  %neg = icmp slt i64 %n, 0
  %len = select i1 %neg, i64 0, i64 %n
  %end = getelementptr i8, ptr %buf, i64 %len
  store i8 0, ptr %end
  %cut = call i64 @strcspn(ptr %buf, ptr @.crlf)
  %at = getelementptr i8, ptr %buf, i64 %cut
  store i8 0, ptr %at
  ret void
}`

// llvmVar is the alloca holding variable name.
func llvmVar(name string) string {
	for _, r := range name {
		if !(r == '_' || r == '.' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return `%"v.` + name + `"`
		}
	}
	return "%v." + name
}

// llvmBytes escapes s for a c"..." constant.
func llvmBytes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c >= 0x7f || c == '"' || c == '\\' {
			fmt.Fprintf(&sb, `\%02X`, c)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func llvmDouble(f float64) string {
	return fmt.Sprintf("0x%016X", math.Float64bits(f))
}

func (g *llvmGen) tmp() string {
	g.temp++
	return fmt.Sprintf("%%t.%d", g.temp)
}

// str interns text as a private global and returns its name.
func (g *llvmGen) str(text string) string {
	if label, ok := g.pool[text]; ok {
		return label
	}
	label := fmt.Sprintf("@.str.%016x", fnv1a.HashString64(text))
	for n := 1; g.labels[label] != ""; n++ {
		label = fmt.Sprintf("@.str.%016x.%d", fnv1a.HashString64(text), n)
	}
	g.pool[text] = label
	g.labels[label] = text
	g.order = append(g.order, label)
	return label
}

func (g *llvmGen) nodes(nodes []compiler.Node) {
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
			g.block++
			id := g.block
			c := g.cond(s.Condition)
			g.body.line("br i1 %s, label %%then.%d, label %%end.%d", c, id, id)
			g.body.raw(fmt.Sprintf("then.%d:", id))
			g.nodes(s.Body)
			g.body.line("br label %%end.%d", id)
			g.body.raw(fmt.Sprintf("end.%d:", id))
		}
	}
}

// load reads variable name and returns the LLVM type and value.
func (g *llvmGen) load(name string) (string, string) {
	ty := llvmType(g.types[name])
	v := g.tmp()
	g.body.line("%s = load %s, ptr %s", v, ty, llvmVar(name))
	return ty, v
}

func llvmType(t compiler.VarType) string {
	switch t.Kind {
	case compiler.IntKind:
		return "i32"
	case compiler.FloatKind:
		return "double"
	}
	return "ptr"
}

func floatConst(text string) string { return llvmDouble(constant(text).Float64()) }

// numeric returns e as a value of type want ("i32" or "double").
func (g *llvmGen) numeric(e compiler.Expr, want string) string {
	switch v := e.(type) {
	case *compiler.Identifier:
		ty, val := g.load(v.Name)
		if ty == want {
			return val
		}
		conv := g.tmp()
		if want == "double" {
			g.body.line("%s = sitofp i32 %s to double", conv, val)
		} else {
			g.body.line("%s = fptosi double %s to i32", conv, val)
		}
		return conv
	case *compiler.Literal:
		if want == "double" {
			return floatConst(v.Text)
		}
		return intText(v.Text)
	}
	if want == "double" {
		return llvmDouble(0)
	}
	return "0"
}

func (g *llvmGen) declaration(d *compiler.VarDeclaration) {
	t := g.types[d.Name]
	ty := llvmType(t)
	if t.Numeric() {
		g.body.line("store %s %s, ptr %s", ty, g.numeric(d.Value, ty), llvmVar(d.Name))
		return
	}
	_, buf := g.load(d.Name)
	switch v := d.Value.(type) {
	case *compiler.Identifier:
		g.snprintf(buf, bufSize(t), "{"+v.Name+"}")
	case *compiler.Literal:
		g.snprintf(buf, bufSize(t), v.Text)
	default:
		g.body.line("store i8 0, ptr %s", buf)
	}
}

// format interns the printf format of template and returns its global
// with the typed argument list.
func (g *llvmGen) format(template string) (string, []string) {
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
		ty, v := g.load(seg.Var)
		args = append(args, ty+" "+v)
	}
	return g.str(sb.String()), args
}

func (g *llvmGen) snprintf(buf string, size int, template string) {
	format, args := g.format(template)
	call := append([]string{"ptr " + buf, fmt.Sprintf("i64 %d", size), "ptr " + format}, args...)
	g.body.line("%s = call i32 (ptr, i64, ptr, ...) @snprintf(%s)", g.tmp(), strings.Join(call, ", "))
}

func (g *llvmGen) print(p *compiler.Print) {
	template := p.Template()
	if template == "" {
		return
	}
	format, args := g.format(template)
	if p.ToStderr {
		call := append([]string{"i32 2", "ptr " + format}, args...)
		g.body.line("%s = call i32 (i32, ptr, ...) @dprintf(%s)", g.tmp(), strings.Join(call, ", "))
		return
	}
	call := append([]string{"ptr " + format}, args...)
	g.body.line("%s = call i32 (ptr, ...) @printf(%s)", g.tmp(), strings.Join(call, ", "))
}

func (g *llvmGen) input(in *compiler.Input) {
	t := g.types[in.Name]
	switch t.Kind {
	case compiler.IntKind:
		g.body.line("call void @ven.readline(ptr %%ven.buf, i64 256)")
		v := g.tmp()
		g.body.line("%s = call i32 @atoi(ptr %%ven.buf)", v)
		g.body.line("store i32 %s, ptr %s", v, llvmVar(in.Name))
	case compiler.FloatKind:
		g.body.line("call void @ven.readline(ptr %%ven.buf, i64 256)")
		v := g.tmp()
		g.body.line("%s = call double @atof(ptr %%ven.buf)", v)
		g.body.line("store double %s, ptr %s", v, llvmVar(in.Name))
	default:
		_, buf := g.load(in.Name)
		g.body.line("call void @ven.readline(ptr %s, i64 %d)", buf, bufSize(t))
	}
}

var (
	intOps   = [...]string{"add", "sub", "mul", "sdiv"}
	floatOps = [...]string{"fadd", "fsub", "fmul", "fdiv"}
	icmpOps  = [...]string{"eq", "ne", "slt", "sle", "sgt", "sge"}
	fcmpOps  = [...]string{"oeq", "one", "olt", "ole", "ogt", "oge"}
)

func (g *llvmGen) math(m *compiler.MathOp) {
	t := g.types[m.Name]
	if t.Numeric() {
		ty, cur := g.load(m.Name)
		operand := g.numeric(m.Operand, ty)
		op := intOps[m.Op]
		if ty == "double" {
			op = floatOps[m.Op]
		}
		res := g.tmp()
		g.body.line("%s = %s %s %s, %s", res, op, ty, cur, operand)
		g.body.line("store %s %s, ptr %s", ty, res, llvmVar(m.Name))
		return
	}
	var src string
	switch v := m.Operand.(type) {
	case *compiler.Identifier:
		if g.types[v.Name].Numeric() {
			break
		}
		_, src = g.load(v.Name)
	case *compiler.Literal:
		src = g.str(concatText(v.Text))
	}
	if m.Op != compiler.OpAdd || src == "" {
		g.body.line("; %s %s %s: unsupported on text", m.Name, m.Op, m.Operand)
		return
	}
	_, dst := g.load(m.Name)
	n, room := g.tmp(), g.tmp()
	g.body.line("%s = call i64 @strlen(ptr %s)", n, dst)
	g.body.line("%s = sub i64 %d, %s", room, bufSize(t)-1, n)
	g.body.line("%s = call ptr @strncat(ptr %s, ptr %s, i64 %s)", g.tmp(), dst, src, room)
}

// text returns a pointer to the string value of e.
func (g *llvmGen) text(e compiler.Expr) string {
	switch v := e.(type) {
	case *compiler.Identifier:
		_, p := g.load(v.Name)
		return p
	case *compiler.Literal:
		return g.str(unquote(v.Text))
	}
	return g.str("")
}

// cond evaluates e to an i1. Both sides of && and || are evaluated.
func (g *llvmGen) cond(e compiler.Expr) string {
	switch v := e.(type) {
	case *compiler.LogicalOp:
		l, r := g.cond(v.Left), g.cond(v.Right)
		op := "and"
		if v.Op == compiler.OpOr {
			op = "or"
		}
		res := g.tmp()
		g.body.line("%s = %s i1 %s, %s", res, op, l, r)
		return res
	case *compiler.BinaryOp:
		res := g.tmp()
		switch {
		case textual(g.types, v.Left) || textual(g.types, v.Right):
			l, r := g.text(v.Left), g.text(v.Right)
			c := g.tmp()
			g.body.line("%s = call i32 @strcmp(ptr %s, ptr %s)", c, l, r)
			g.body.line("%s = icmp %s i32 %s, 0", res, icmpOps[v.Op], c)
		case floating(g.types, v.Left) || floating(g.types, v.Right):
			l, r := g.numeric(v.Left, "double"), g.numeric(v.Right, "double")
			g.body.line("%s = fcmp %s double %s, %s", res, fcmpOps[v.Op], l, r)
		default:
			l, r := g.numeric(v.Left, "i32"), g.numeric(v.Right, "i32")
			g.body.line("%s = icmp %s i32 %s, %s", res, icmpOps[v.Op], l, r)
		}
		return res
	}
	res := g.tmp()
	switch {
	case textual(g.types, e):
		p := g.text(e)
		c := g.tmp()
		g.body.line("%s = load i8, ptr %s", c, p)
		g.body.line("%s = icmp ne i8 %s, 0", res, c)
	case floating(g.types, e):
		g.body.line("%s = fcmp one double %s, %s", res, g.numeric(e, "double"), llvmDouble(0))
	default:
		g.body.line("%s = icmp ne i32 %s, 0", res, g.numeric(e, "i32"))
	}
	return res
}
