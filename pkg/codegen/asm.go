package codegen

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"

	"vencc/pkg/compiler"
)

// x86 building blocks shared by the NASM targets: register naming, data
// and bss layout, numeric code and conditional branches. Each target
// keeps its own walk over the program and its own OS interface.

type regs struct {
	bits                   int
	ax, bx, cx, dx, si, di string
	word                   string // operand size keyword of an Int slot
	res                    string // bss directive reserving one Int slot
}

var (
	regs64 = regs{64, "rax", "rbx", "rcx", "rdx", "rsi", "rdi", "qword", "resq"}
	regs32 = regs{32, "eax", "ebx", "ecx", "edx", "esi", "edi", "dword", "resd"}
)

func (r regs) expand(s string) string {
	return strings.NewReplacer(
		"{ax}", r.ax, "{bx}", r.bx, "{cx}", r.cx, "{dx}", r.dx,
		"{si}", r.si, "{di}", r.di, "{word}", r.word,
	).Replace(s)
}

// asmABI is how one target talks to its operating system. The write and
// read bodies implement the internal calling convention used by every
// runtime routine:
//
//	ven_write  {si} = bytes, {dx} = length, {bx} = 1 (stdout) or 2 (stderr)
//	ven_read   {si} = buffer, {dx} = capacity; returns the count in {ax}
type asmABI struct {
	regs     regs
	entry    string
	header   []string
	prologue []string
	exit     []string
	write    []string
	read     []string
	bss      []string
}

// asmBytes renders s as a db operand list, quoting printable runs.
func asmBytes(s string) string {
	var parts []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			parts = append(parts, "'"+run.String()+"'")
			run.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '\'' {
			run.WriteByte(c)
			continue
		}
		flush()
		parts = append(parts, fmt.Sprint(c))
	}
	flush()
	return strings.Join(parts, ", ")
}

// asmCore holds the sections of one assembly program under construction.
type asmCore struct {
	abi    asmABI
	r      regs
	types  map[string]compiler.VarType
	text   buffer
	data   buffer
	strs   map[string]string
	floats map[uint64]string
	need   map[string]bool
	equ    bool // define LABEL_len for every string constant
	nstr   int
	nflt   int
	nlabel int
	strcmp bool // ven_compare_str is available
}

func newAsmCore(prog *compiler.Program, abi asmABI, equ bool) *asmCore {
	c := &asmCore{
		abi:    abi,
		r:      abi.regs,
		types:  prog.VarTypes(),
		strs:   make(map[string]string),
		floats: make(map[uint64]string),
		need:   map[string]bool{"write": true},
		equ:    equ,
	}
	c.text.indent = "    "
	c.data.indent = "    "
	return c
}

// ins writes one instruction, expanding {reg} names after formatting.
func (c *asmCore) ins(format string, args ...any) {
	c.text.line("%s", c.r.expand(fmt.Sprintf(format, args...)))
}

func (c *asmCore) comment(format string, args ...any) {
	c.text.line("; "+format, args...)
}

func (c *asmCore) label() string {
	c.nlabel++
	return fmt.Sprintf("L%d", c.nlabel)
}

func (c *asmCore) mark(label string) { c.text.raw(label + ":") }

func (c *asmCore) mem(name string) string { return "[" + varName(name) + "]" }

// str interns s as a NUL-terminated string constant.
func (c *asmCore) str(s string) string {
	if l, ok := c.strs[s]; ok {
		return l
	}
	l := fmt.Sprintf("S%d", c.nstr)
	c.nstr++
	c.strs[s] = l
	if b := asmBytes(s); b != "" {
		c.data.line("%s db %s, 0", l, b)
	} else {
		c.data.line("%s db 0", l)
	}
	if c.equ {
		c.data.line("%s_len equ $ - %s - 1", l, l)
	}
	return l
}

func (c *asmCore) float(f float64) string {
	bits := math.Float64bits(f)
	if l, ok := c.floats[bits]; ok {
		return l
	}
	l := fmt.Sprintf("F%d", c.nflt)
	c.nflt++
	c.floats[bits] = l
	c.data.line("%s dq 0x%016X", l, bits)
	return l
}

// loadInt puts the integer value of e in reg; floats are truncated.
func (c *asmCore) loadInt(reg string, e compiler.Expr) {
	switch v := e.(type) {
	case *compiler.Identifier:
		switch c.types[v.Name].Kind {
		case compiler.IntKind:
			c.ins("mov %s, %s", reg, c.mem(v.Name))
			return
		case compiler.FloatKind:
			c.ins("cvttsd2si %s, qword %s", reg, c.mem(v.Name))
			return
		}
	case *compiler.Literal:
		c.ins("mov %s, %s", reg, intText(v.Text))
		return
	}
	c.ins("xor %s, %s", reg, reg)
}

// loadXmm puts the float value of e in xmm register x.
func (c *asmCore) loadXmm(x string, e compiler.Expr) {
	switch v := e.(type) {
	case *compiler.Identifier:
		switch c.types[v.Name].Kind {
		case compiler.FloatKind:
			c.ins("movsd %s, qword %s", x, c.mem(v.Name))
			return
		case compiler.IntKind:
			c.ins("cvtsi2sd %s, {word} %s", x, c.mem(v.Name))
			return
		}
	case *compiler.Literal:
		c.ins("movsd %s, qword [%s]", x, c.float(constant(v.Text).Float64()))
		return
	}
	c.ins("xorpd %s, %s", x, x)
}

// declareNumeric stores the initial value of an Int or Float variable.
func (c *asmCore) declareNumeric(name string, value compiler.Expr) {
	if c.types[name].Kind == compiler.FloatKind {
		c.loadXmm("xmm0", value)
		c.ins("movsd qword %s, xmm0", c.mem(name))
		return
	}
	if lit, ok := value.(*compiler.Literal); ok {
		c.ins("mov {word} %s, %s", c.mem(name), intText(lit.Text))
		return
	}
	c.loadInt("{ax}", value)
	c.ins("mov %s, {ax}", c.mem(name))
}

// copyText overwrites the buffer of name with s.
func (c *asmCore) copyText(name, s string) {
	if s == "" {
		c.ins("mov byte %s, 0", c.mem(name))
		return
	}
	c.ins("lea {si}, [%s]", c.str(s))
	c.ins("lea {di}, %s", c.mem(name))
	c.ins("mov {cx}, %d", bufSize(c.types[name])-1)
	c.ins("call ven_copy")
	c.need["copy"] = true
}

// copyVar overwrites the buffer of name with the text of src.
func (c *asmCore) copyVar(name, src string) {
	c.ins("lea {si}, %s", c.mem(src))
	c.ins("lea {di}, %s", c.mem(name))
	c.ins("mov {cx}, %d", bufSize(c.types[name])-1)
	c.ins("call ven_copy")
	c.need["copy"] = true
}

// appendFrom appends the NUL-terminated text at {si} to name.
func (c *asmCore) appendFrom(name string) {
	c.ins("lea {di}, %s", c.mem(name))
	c.ins("mov {cx}, %d", bufSize(c.types[name])-1)
	c.ins("call ven_append")
	c.need["append"] = true
}

var (
	intMath   = [...]string{"add", "sub", "imul", "idiv"}
	floatMath = [...]string{"addsd", "subsd", "mulsd", "divsd"}
)

func (c *asmCore) math(m *compiler.MathOp) {
	switch c.types[m.Name].Kind {
	case compiler.IntKind:
		c.ins("mov {ax}, %s", c.mem(m.Name))
		c.loadInt("{cx}", m.Operand)
		if m.Op == compiler.OpDiv {
			if c.r.bits == 64 {
				c.ins("cqo")
			} else {
				c.ins("cdq")
			}
			c.ins("idiv {cx}")
		} else {
			c.ins("%s {ax}, {cx}", intMath[m.Op])
		}
		c.ins("mov %s, {ax}", c.mem(m.Name))
	case compiler.FloatKind:
		c.ins("movsd xmm0, qword %s", c.mem(m.Name))
		c.loadXmm("xmm1", m.Operand)
		c.ins("%s xmm0, xmm1", floatMath[m.Op])
		c.ins("movsd qword %s, xmm0", c.mem(m.Name))
	default:
		if m.Op != compiler.OpAdd {
			c.comment("%s %s %s: unsupported on text", m.Name, m.Op, m.Operand)
			return
		}
		switch v := m.Operand.(type) {
		case *compiler.Identifier:
			if c.types[v.Name].Numeric() {
				c.comment("%s %s %s: unsupported on text", m.Name, m.Op, m.Operand)
				return
			}
			c.ins("lea {si}, %s", c.mem(v.Name))
		case *compiler.Literal:
			c.ins("lea {si}, [%s]", c.str(concatText(v.Text)))
		}
		c.appendFrom(m.Name)
	}
}

// printNumber writes the value of an Int or Float variable to fd.
// Floats are written truncated toward zero.
func (c *asmCore) printNumber(name string, fd int) {
	c.loadInt("{ax}", &compiler.Identifier{Name: name})
	c.ins("mov {bx}, %d", fd)
	c.ins("call ven_print_int")
	c.need["print_int"] = true
}

// printVar writes the NUL-terminated buffer of name to fd.
func (c *asmCore) printVar(name string, fd int) {
	c.ins("lea {si}, %s", c.mem(name))
	c.ins("mov {bx}, %d", fd)
	c.ins("call ven_print_str")
	c.need["print_str"] = true
}

// printLoop writes s to fd, measuring it at run time.
func (c *asmCore) printLoop(s string, fd int) {
	if s == "" {
		return
	}
	c.ins("lea {si}, [%s]", c.str(s))
	c.ins("mov {bx}, %d", fd)
	c.ins("call ven_print_str")
	c.need["print_str"] = true
}

// printEqu writes s to fd using its assemble-time length.
func (c *asmCore) printEqu(s string, fd int) {
	if s == "" {
		return
	}
	l := c.str(s)
	c.ins("lea {si}, [%s]", l)
	c.ins("mov {dx}, %s_len", l)
	c.ins("mov {bx}, %d", fd)
	c.ins("call ven_write")
}

// printTemplate writes a print template to fd. Numeric placeholders are
// formatted at run time, string placeholders only when strVars is set;
// any other placeholder is written as {name}. text writes literal runs.
func (c *asmCore) printTemplate(template string, fd int, strVars bool, text func(string, int)) {
	var run strings.Builder
	flush := func() {
		text(run.String(), fd)
		run.Reset()
	}
	for _, seg := range compiler.Segments(template) {
		if !seg.IsVar() {
			run.WriteString(seg.Text)
			continue
		}
		t, ok := c.types[seg.Var]
		switch {
		case ok && t.Numeric():
			flush()
			c.printNumber(seg.Var, fd)
		case ok && strVars:
			flush()
			c.printVar(seg.Var, fd)
		default:
			run.WriteString("{" + seg.Var + "}")
		}
	}
	flush()
}

// readText reads one line into the buffer of name.
func (c *asmCore) readText(name string) {
	c.ins("lea {si}, %s", c.mem(name))
	c.ins("mov {dx}, %d", bufSize(c.types[name])-1)
	c.ins("call ven_readline")
	c.need["readline"] = true
}

func streamFD(p *compiler.Print) int {
	if p.ToStderr {
		return 2
	}
	return 1
}

// degrade renders a template with every placeholder left as {name}.
func degrade(template string) string {
	var sb strings.Builder
	for _, seg := range compiler.Segments(template) {
		if seg.IsVar() {
			sb.WriteString("{" + seg.Var + "}")
		} else {
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}

// foldCompare evaluates a comparison between two literals.
func foldCompare(l, r string, op compiler.ComparisonOperator) bool {
	var n int
	lf, lok := compiler.FloatValue(l)
	rf, rok := compiler.FloatValue(r)
	if lok && rok {
		n = cmp.Compare(lf, rf)
	} else {
		n = strings.Compare(unquote(l), unquote(r))
	}
	switch op {
	case compiler.OpEqual:
		return n == 0
	case compiler.OpNotEqual:
		return n != 0
	case compiler.OpLess:
		return n < 0
	case compiler.OpLessEqual:
		return n <= 0
	case compiler.OpGreater:
		return n > 0
	}
	return n >= 0
}

// literalTrue is the truth value of a bare literal condition.
func literalTrue(text string) bool {
	if f, ok := compiler.FloatValue(text); ok {
		return f != 0
	}
	return unquote(text) != ""
}

var (
	jccSigned = [...]string{"je", "jne", "jl", "jle", "jg", "jge"}
	jccFloat  = [...]string{"je", "jne", "jb", "jbe", "ja", "jae"}
)

// branch jumps to target when e evaluates to when. && and || short-circuit.
func (c *asmCore) branch(e compiler.Expr, target string, when bool) {
	switch v := e.(type) {
	case *compiler.LogicalOp:
		and := v.Op == compiler.OpAnd
		if and != when {
			// !when over &&, or when over ||: either side decides.
			c.branch(v.Left, target, when)
			c.branch(v.Right, target, when)
			return
		}
		skip := c.label()
		c.branch(v.Left, skip, !when)
		c.branch(v.Right, target, when)
		c.mark(skip)
	case *compiler.BinaryOp:
		c.compare(v, target, when)
	case *compiler.Literal:
		if literalTrue(v.Text) == when {
			c.ins("jmp %s", target)
		}
	case *compiler.Identifier:
		switch c.types[v.Name].Kind {
		case compiler.IntKind:
			c.ins("cmp {word} %s, 0", c.mem(v.Name))
		case compiler.FloatKind:
			c.loadXmm("xmm0", v)
			c.ins("xorpd xmm1, xmm1")
			c.ins("ucomisd xmm0, xmm1")
		default:
			c.ins("cmp byte %s, 0", c.mem(v.Name))
		}
		if when {
			c.ins("jne %s", target)
		} else {
			c.ins("je %s", target)
		}
	}
}

func (c *asmCore) compare(v *compiler.BinaryOp, target string, when bool) {
	ll, lok := v.Left.(*compiler.Literal)
	rl, rok := v.Right.(*compiler.Literal)
	if lok && rok {
		if foldCompare(ll.Text, rl.Text, v.Op) == when {
			c.ins("jmp %s", target)
		}
		return
	}
	op := v.Op
	if !when {
		op = op.Negate()
	}
	switch {
	case textual(c.types, v.Left) || textual(c.types, v.Right):
		if !c.strcmp {
			c.comment("%s: string comparison unsupported, treated as false", v)
			if !when {
				c.ins("jmp %s", target)
			}
			return
		}
		c.textAddr("{si}", v.Left)
		c.textAddr("{di}", v.Right)
		c.ins("call ven_compare_str")
		c.ins("cmp {ax}, 0")
		c.ins("%s %s", jccSigned[op], target)
		c.need["compare_str"] = true
	case floating(c.types, v.Left) || floating(c.types, v.Right):
		c.loadXmm("xmm0", v.Left)
		c.loadXmm("xmm1", v.Right)
		c.ins("ucomisd xmm0, xmm1")
		c.ins("%s %s", jccFloat[op], target)
	default:
		c.loadInt("{ax}", v.Left)
		c.loadInt("{cx}", v.Right)
		c.ins("cmp {ax}, {cx}")
		c.ins("%s %s", jccSigned[op], target)
	}
}

func (c *asmCore) textAddr(reg string, e compiler.Expr) {
	switch v := e.(type) {
	case *compiler.Identifier:
		c.ins("lea %s, %s", reg, c.mem(v.Name))
	case *compiler.Literal:
		c.ins("lea %s, [%s]", reg, c.str(unquote(v.Text)))
	}
}

// ifBlock lowers an If: skip the body when the condition is false.
func (c *asmCore) ifBlock(s *compiler.If, body func([]compiler.Node)) {
	end := c.label()
	c.branch(s.Condition, end, false)
	body(s.Body)
	c.mark(end)
}

type routine struct {
	name string
	deps []string
	body string
}

// routines are written against the internal calling convention; {reg}
// names are expanded per bitness.
var routines = []routine{
	{"print_int", []string{"itoa", "write"}, `
ven_print_int:
    call ven_itoa
    jmp ven_write`},
	{"itoa", nil, `
ven_itoa:
    push {bx}
    lea {di}, [ven_digits + 24]
    mov {bx}, 10
    xor {cx}, {cx}
    test {ax}, {ax}
    jns .loop
    neg {ax}
    mov {cx}, 1
.loop:
    xor {dx}, {dx}
    div {bx}
    add dl, '0'
    dec {di}
    mov [{di}], dl
    test {ax}, {ax}
    jnz .loop
    test {cx}, {cx}
    jz .done
    dec {di}
    mov byte [{di}], '-'
.done:
    lea {dx}, [ven_digits + 24]
    sub {dx}, {di}
    mov {si}, {di}
    pop {bx}
    ret`},
	{"print_str", []string{"write"}, `
ven_print_str:
    xor {dx}, {dx}
.len:
    cmp byte [{si} + {dx}], 0
    je .write
    inc {dx}
    jmp .len
.write:
    test {dx}, {dx}
    jnz ven_write
    ret`},
	{"readline", []string{"read"}, `
ven_readline:
    push {si}
    call ven_read
    pop {si}
    test {ax}, {ax}
    jns .term
    xor {ax}, {ax}
.term:
    mov byte [{si} + {ax}], 0
.scan:
    mov cl, [{si}]
    test cl, cl
    jz .done
    cmp cl, 10
    je .cut
    cmp cl, 13
    je .cut
    inc {si}
    jmp .scan
.cut:
    mov byte [{si}], 0
.done:
    ret`},
	{"append", []string{"copy"}, `
ven_append:
    cmp byte [{di}], 0
    je ven_copy
    inc {di}
    dec {cx}
    jmp ven_append`},
	{"copy", nil, `
ven_copy:
    test {cx}, {cx}
    jz .end
    mov al, [{si}]
    test al, al
    jz .end
    mov [{di}], al
    inc {si}
    inc {di}
    dec {cx}
    jmp ven_copy
.end:
    mov byte [{di}], 0
    ret`},
	{"parse_int", nil, `
ven_parse_int:
    xor {ax}, {ax}
    xor {cx}, {cx}
.space:
    cmp byte [{si}], ' '
    jne .sign
    inc {si}
    jmp .space
.sign:
    cmp byte [{si}], '-'
    jne .digit
    mov {cx}, 1
    inc {si}
.digit:
    movzx {dx}, byte [{si}]
    sub {dx}, '0'
    cmp {dx}, 9
    ja .done
    imul {ax}, {ax}, 10
    add {ax}, {dx}
    inc {si}
    jmp .digit
.done:
    test {cx}, {cx}
    jz .ret
    neg {ax}
.ret:
    ret`},
	{"compare_str", nil, `
ven_compare_str:
    movzx eax, byte [{si}]
    movzx ecx, byte [{di}]
    cmp eax, ecx
    jne .diff
    test eax, eax
    jz .equal
    inc {si}
    inc {di}
    jmp ven_compare_str
.diff:
    jb .less
    mov {ax}, 1
    ret
.less:
    mov {ax}, -1
    ret
.equal:
    xor {ax}, {ax}
    ret`},
}

// closure marks every routine the needed ones depend on.
func (c *asmCore) closure() {
	for changed := true; changed; {
		changed = false
		for _, rt := range routines {
			if !c.need[rt.name] {
				continue
			}
			for _, d := range rt.deps {
				if !c.need[d] {
					c.need[d] = true
					changed = true
				}
			}
		}
	}
}

func indentAsm(lines []string) []string {
	return lo.Map(lines, func(l string, _ int) string {
		if strings.HasSuffix(l, ":") {
			return l
		}
		return "    " + l
	})
}

// assemble lays the sections out in NASM syntax.
func (c *asmCore) assemble(target string) string {
	c.closure()
	var out buffer
	out.raw("; vencc " + target)
	out.raw(fmt.Sprintf("bits %d", c.r.bits))
	if c.r.bits == 64 {
		out.raw("default rel")
	}
	for _, h := range c.abi.header {
		out.raw(h)
	}
	out.raw("global " + c.abi.entry)
	out.raw("")

	if c.data.Len() > 0 {
		out.raw("section .data")
		out.WriteString(c.data.String())
		out.raw("")
	}

	bss := lo.Keys(c.types)
	slices.Sort(bss)
	out.raw("section .bss")
	for _, name := range bss {
		switch t := c.types[name]; t.Kind {
		case compiler.IntKind:
			out.raw(fmt.Sprintf("    %s %s 1", varName(name), c.r.res))
		case compiler.FloatKind:
			out.raw(fmt.Sprintf("    %s resq 1", varName(name)))
		default:
			out.raw(fmt.Sprintf("    %s resb %d", varName(name), bufSize(t)))
		}
	}
	if c.need["itoa"] {
		out.raw("    ven_digits resb 25")
	}
	if c.need["parse_int"] {
		out.raw("    ven_line resb 256")
	}
	for _, l := range c.abi.bss {
		out.raw("    " + l)
	}
	out.raw("")

	out.raw("section .text")
	out.raw(c.abi.entry + ":")
	for _, l := range indentAsm(c.abi.prologue) {
		out.raw(l)
	}
	out.WriteString(c.text.String())
	for _, l := range indentAsm(c.abi.exit) {
		out.raw(l)
	}

	out.raw("")
	out.raw("ven_write:")
	for _, l := range indentAsm(c.abi.write) {
		out.raw(l)
	}
	if c.need["read"] {
		out.raw("")
		out.raw("ven_read:")
		for _, l := range indentAsm(c.abi.read) {
			out.raw(l)
		}
	}
	for _, rt := range routines {
		if c.need[rt.name] {
			out.raw(c.r.expand(rt.body))
		}
	}
	return out.String()
}
