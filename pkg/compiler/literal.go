package compiler

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// isNumeric reports whether s is made only of digits and dots, the test
// used to tell a number token apart from a variable name.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c != '.' && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func stripSpace(s string) string {
	if !strings.ContainsFunc(s, unicode.IsSpace) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// NumberText returns text with whitespace removed when the result is a
// plain decimal number: optional sign, digits, at most one dot.
// Operands rejoined as "- 3" or "2 . 5" come back as "-3" and "2.5".
func NumberText(text string) (string, bool) {
	s := stripSpace(text)
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || strings.Count(body, ".") > 1 {
		return "", false
	}
	if !isNumeric(body) || body == "." {
		return "", false
	}
	return s, true
}

// IntValue parses text as a 64-bit integer literal.
func IntValue(text string) (int64, bool) {
	s, ok := NumberText(text)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// FloatValue parses text as a float literal.
func FloatValue(text string) (float64, bool) {
	s, ok := NumberText(text)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// Constant is a folded numeric math operand.
type Constant struct {
	Int     int64
	Float   float64
	IsFloat bool
}

// Float64 returns c as a float.
func (c Constant) Float64() float64 {
	if c.IsFloat {
		return c.Float
	}
	return float64(c.Int)
}

// Int32 returns c as a 32-bit integer. Floats truncate toward zero and
// saturate at the int32 range; integers wrap.
func (c Constant) Int32() int32 {
	if !c.IsFloat {
		return int32(c.Int)
	}
	f := math.Trunc(c.Float)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// FoldConstant evaluates a math operand made only of numbers, + - * /
// and parentheses, as rejoined by the parser ("3 + 2", "1 . 5 * 2").
// Multiplication and division bind tighter than addition and
// subtraction. Integer division truncates toward zero. A decimal
// anywhere makes the result a float. ok is false for any other text,
// for division by an integer zero and for a non-finite float.
func FoldConstant(text string) (Constant, bool) {
	f := &folder{s: text}
	c, ok := f.expr(0)
	if !ok || f.peek() != 0 {
		return Constant{}, false
	}
	if c.IsFloat && (math.IsInf(c.Float, 0) || math.IsNaN(c.Float)) {
		return Constant{}, false
	}
	return c, true
}

// maxFoldDepth bounds parenthesis nesting.
const maxFoldDepth = 64

type folder struct {
	s string
	i int
}

func (f *folder) peek() byte {
	for f.i < len(f.s) && (f.s[f.i] == ' ' || f.s[f.i] == '\t') {
		f.i++
	}
	if f.i < len(f.s) {
		return f.s[f.i]
	}
	return 0
}

func (f *folder) expr(depth int) (Constant, bool) {
	acc, ok := f.term(depth)
	for ok {
		op := f.peek()
		if op != '+' && op != '-' {
			break
		}
		f.i++
		var rhs Constant
		if rhs, ok = f.term(depth); ok {
			acc, ok = apply(op, acc, rhs)
		}
	}
	return acc, ok
}

func (f *folder) term(depth int) (Constant, bool) {
	acc, ok := f.unary(depth)
	for ok {
		op := f.peek()
		if op != '*' && op != '/' {
			break
		}
		f.i++
		var rhs Constant
		if rhs, ok = f.unary(depth); ok {
			acc, ok = apply(op, acc, rhs)
		}
	}
	return acc, ok
}

func (f *folder) unary(depth int) (Constant, bool) {
	switch f.peek() {
	case '+':
		f.i++
		return f.unary(depth)
	case '-':
		f.i++
		c, ok := f.unary(depth)
		c.Int, c.Float = -c.Int, -c.Float
		return c, ok
	case '(':
		if depth >= maxFoldDepth {
			return Constant{}, false
		}
		f.i++
		c, ok := f.expr(depth + 1)
		if !ok || f.peek() != ')' {
			return Constant{}, false
		}
		f.i++
		return c, true
	}
	return f.number()
}

// number reads digits with an optional fraction. Blanks around the dot
// are allowed since the lexer splits "2.5" into three tokens.
func (f *folder) number() (Constant, bool) {
	var sb strings.Builder
	digits := func() int {
		n := 0
		for f.i < len(f.s) && f.s[f.i] >= '0' && f.s[f.i] <= '9' {
			sb.WriteByte(f.s[f.i])
			f.i++
			n++
		}
		return n
	}
	if f.peek() == 0 {
		return Constant{}, false
	}
	n := digits()
	float := false
	if save := f.i; f.peek() == '.' {
		f.i++
		float = true
		sb.WriteByte('.')
		if c := f.peek(); c >= '0' && c <= '9' {
			n += digits()
		}
		if n == 0 {
			f.i = save
			return Constant{}, false
		}
	}
	if n == 0 {
		return Constant{}, false
	}
	if float {
		v, err := strconv.ParseFloat(sb.String(), 64)
		return Constant{Float: v, IsFloat: true}, err == nil
	}
	v, err := strconv.ParseInt(sb.String(), 10, 64)
	return Constant{Int: v}, err == nil
}

func apply(op byte, a, b Constant) (Constant, bool) {
	if a.IsFloat || b.IsFloat {
		x, y := a.Float64(), b.Float64()
		var r float64
		switch op {
		case '+':
			r = x + y
		case '-':
			r = x - y
		case '*':
			r = x * y
		case '/':
			r = x / y
		}
		return Constant{Float: r, IsFloat: true}, true
	}
	switch op {
	case '+':
		return Constant{Int: a.Int + b.Int}, true
	case '-':
		return Constant{Int: a.Int - b.Int}, true
	case '*':
		return Constant{Int: a.Int * b.Int}, true
	}
	if b.Int == 0 {
		return Constant{}, false
	}
	return Constant{Int: a.Int / b.Int}, true
}
