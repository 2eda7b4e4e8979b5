// Package codegen serialises an optimised ven program to one of several
// textual targets. Every target is an independent walk of the same
// program; they deliberately differ in what they can do at run time
// (string interpolation, numeric input) and degrade silently where a
// target lacks a capability.
package codegen

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"vencc/pkg/compiler"
)

// Emitter turns a program into target text.
type Emitter interface {
	// Target is the canonical target id, e.g. "c" or "l64".
	Target() string
	// Extension is the conventional output file extension, dot included.
	Extension() string
	Emit(prog *compiler.Program) string
}

var emitters = map[string]Emitter{
	"c":      C{},
	"rust":   Rust{},
	"llvm":   LLVM{},
	"lx8664": LX8664{},
	"l64":    Linux64{},
	"l32":    Linux32{},
	"mac64":  Mac64{},
	"mac32":  Mac32{},
	"win64":  Win64{},
	"win32":  Win32{},
}

// aliases maps alternative names, including the short assembler
// mnemonics, to canonical target ids.
var aliases = map[string]string{
	"rs":  "rust",
	"ll":  "llvm",
	"LM":  "l64",
	"LHM": "l32",
	"MM":  "mac64",
	"MHM": "mac32",
	"WM":  "win64",
	"WHM": "win32",
}

// Lookup resolves a target id or alias.
func Lookup(name string) (Emitter, bool) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	e, ok := emitters[strings.ToLower(name)]
	return e, ok
}

// Targets returns the canonical target ids, sorted.
func Targets() []string {
	ids := lo.Keys(emitters)
	slices.Sort(ids)
	return ids
}

// Aliases returns the alternative names of target, sorted.
func Aliases(target string) []string {
	names := lo.FilterMap(lo.Entries(aliases), func(e lo.Entry[string, string], _ int) (string, bool) {
		return e.Key, e.Value == target
	})
	slices.Sort(names)
	return names
}

// Emit is a convenience wrapper around Lookup and Emitter.Emit.
func Emit(target string, prog *compiler.Program) (string, error) {
	e, ok := Lookup(target)
	if !ok {
		return "", fmt.Errorf("unknown target %q", target)
	}
	return e.Emit(prog), nil
}

// buffer accumulates indented lines of output.
type buffer struct {
	strings.Builder
	indent string
}

func (b *buffer) line(format string, args ...any) {
	b.WriteString(b.indent)
	fmt.Fprintf(b, format, args...)
	b.WriteByte('\n')
}

func (b *buffer) raw(s string) {
	b.WriteString(s)
	b.WriteByte('\n')
}

// hoisted returns the names whose first declaration, in source order,
// sits inside an If body. Targets with lexical scoping define them up
// front so later declarations at any depth become assignments.
func hoisted(prog *compiler.Program) map[string]bool {
	seen := make(map[string]bool)
	out := make(map[string]bool)
	var visit func(nodes []compiler.Node, nested bool)
	visit = func(nodes []compiler.Node, nested bool) {
		for _, n := range nodes {
			switch s := n.(type) {
			case *compiler.VarDeclaration:
				if !seen[s.Name] && nested {
					out[s.Name] = true
				}
				seen[s.Name] = true
			case *compiler.If:
				visit(s.Body, true)
			}
		}
	}
	visit(prog.Nodes, false)
	return out
}

// varName mangles a variable name into a target identifier. The v_
// prefix keeps user names clear of keywords and runtime names such as
// stdout or main; runes outside [A-Za-z0-9_] become _uXXXX.
func varName(name string) string {
	var sb strings.Builder
	sb.WriteString("v_")
	for _, r := range name {
		if r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			sb.WriteRune(r)
			continue
		}
		fmt.Fprintf(&sb, "_u%04x", r)
	}
	return sb.String()
}

// written returns the names that are an input or math target anywhere.
func written(prog *compiler.Program) map[string]bool {
	out := make(map[string]bool)
	compiler.Walk(prog.Nodes, func(n compiler.Node) {
		switch s := n.(type) {
		case *compiler.Input:
			out[s.Name] = true
		case *compiler.MathOp:
			out[s.Name] = true
		}
	})
	return out
}

// uses reports whether any node in prog satisfies pred.
func uses(prog *compiler.Program, pred func(compiler.Node) bool) bool {
	found := false
	compiler.Walk(prog.Nodes, func(n compiler.Node) {
		if !found && pred(n) {
			found = true
		}
	})
	return found
}

func hasInput(prog *compiler.Program) bool {
	return uses(prog, func(n compiler.Node) bool {
		_, ok := n.(*compiler.Input)
		return ok
	})
}

func sortedNames(set map[string]bool) []string {
	names := lo.Keys(set)
	slices.Sort(names)
	return names
}

// quoted reports whether a literal is a "..." or '...' string.
func quoted(text string) bool {
	if len(text) < 2 {
		return false
	}
	q := text[0]
	return (q == '"' || q == '\'') && text[len(text)-1] == q
}

// unquote strips the delimiters of a quoted literal and resolves its
// escapes.
func unquote(text string) string {
	if quoted(text) {
		text = text[1 : len(text)-1]
	}
	return compiler.Unescape(text)
}

// textual reports whether e evaluates to a string.
func textual(types map[string]compiler.VarType, e compiler.Expr) bool {
	switch v := e.(type) {
	case *compiler.Identifier:
		t, ok := types[v.Name]
		return ok && !t.Numeric()
	case *compiler.Literal:
		_, num := compiler.NumberText(v.Text)
		return !num
	}
	return false
}

// floating reports whether e is a Float variable or a decimal literal.
func floating(types map[string]compiler.VarType, e compiler.Expr) bool {
	switch v := e.(type) {
	case *compiler.Identifier:
		return types[v.Name].Kind == compiler.FloatKind
	case *compiler.Literal:
		num, ok := compiler.NumberText(v.Text)
		return ok && strings.Contains(num, ".")
	}
	return false
}

// concatText is the text a string += operand literal appends.
func concatText(lit string) string {
	if quoted(lit) {
		return unquote(lit)
	}
	if num, ok := compiler.NumberText(lit); ok {
		return num
	}
	return compiler.Unescape(lit)
}

// constant folds a numeric literal operand. Text the parser would have
// rejected folds to zero.
func constant(text string) compiler.Constant {
	c, _ := compiler.FoldConstant(text)
	return c
}

// intText renders a literal converted to a 32-bit Int.
func intText(text string) string {
	return strconv.Itoa(int(constant(text).Int32()))
}

// floatText renders a literal converted to a Float, as a plain decimal
// with a fraction so it reads as a float in every target language.
func floatText(text string) string {
	s := strconv.FormatFloat(constant(text).Float64(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// bufSize is the byte capacity of a string or char variable's buffer,
// terminator included.
func bufSize(t compiler.VarType) int {
	if t.Kind == compiler.CharKind {
		return t.Size + 1
	}
	return 256
}
