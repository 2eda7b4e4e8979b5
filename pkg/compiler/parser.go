package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Parser turns a token stream into a Program, collecting errors as it
// goes instead of stopping at the first one.
type Parser struct {
	src    string
	tokens []Token
	lines  lineTable
	syms   *SymbolTable
	errs   []VarError

	pos int // index of the next token to consume
	end int // end of the token range being parsed (exclusive)
}

func NewParser(tokens []Token, src string) *Parser {
	return &Parser{
		src:    src,
		tokens: tokens,
		lines:  newLineTable(src),
		syms:   NewSymbolTable(),
		end:    len(tokens),
	}
}

// Parse builds the program for src. Errors never stop the parse: the
// returned program is complete even when errs is non-empty, and callers
// must not generate code from it in that case.
func Parse(tokens []Token, src string) (prog *Program, syms *SymbolTable, errs []VarError) {
	p := NewParser(tokens, src)
	nodes := p.parseStatements()
	return &Program{Nodes: nodes}, p.syms, p.errs
}

func (p *Parser) errorf(err VarError) {
	p.errs = append(p.errs, err)
}

func (p *Parser) lexeme(i int) string {
	return p.tokens[i].Lexeme(p.src)
}

// lineOf returns the 0-based source line of token i.
func (p *Parser) lineOf(i int) int {
	if i >= len(p.tokens) {
		return p.lines.line(len(p.src))
	}
	return p.lines.line(p.tokens[i].Start)
}

// skipBlank returns the first index at or after i that is not a
// whitespace UNKNOWN token.
func (p *Parser) skipBlank(i int) int {
	for i < p.end && p.tokens[i].blank(p.src) {
		i++
	}
	return i
}

// lineEnd returns the index of the NEWLINE ending the line that holds
// token i, or p.end when the range ends first.
func (p *Parser) lineEnd(i int) int {
	for i < p.end && p.tokens[i].Kind != NEWLINE {
		i++
	}
	return i
}

// restOfLine returns the range [from, to) of tokens between i and the
// end of its line, with any comment dropped and blanks trimmed.
func (p *Parser) restOfLine(i int) (from, to int) {
	to = p.lineEnd(i)
	for k := i; k < to; k++ {
		if p.tokens[k].Kind == COMMENT {
			to = k
			break
		}
	}
	return p.trim(i, to)
}

// trim narrows [from, to) so it neither starts nor ends with a blank token.
func (p *Parser) trim(from, to int) (int, int) {
	for from < to && p.tokens[from].blank(p.src) {
		from++
	}
	for to > from && p.tokens[to-1].blank(p.src) {
		to--
	}
	return from, to
}

// text returns the raw source covered by tokens [from, to).
func (p *Parser) text(from, to int) string {
	if from >= to {
		return ""
	}
	return p.src[p.tokens[from].Start:p.tokens[to-1].End]
}

// significant returns the indexes in [from, to) that are not blank.
func (p *Parser) significant(from, to int) []int {
	var idx []int
	for k := from; k < to; k++ {
		if !p.tokens[k].blank(p.src) {
			idx = append(idx, k)
		}
	}
	return idx
}

// checkDeclared reports Undeclared when name has no symbol.
func (p *Parser) checkDeclared(name string, line int) bool {
	if _, ok := p.syms.Lookup(name); ok {
		return true
	}
	p.errorf(&Undeclared{Pos: Pos{line}, Name: name})
	return false
}

// checkPlaceholders reports every undeclared {name} in text.
func (p *Parser) checkPlaceholders(text string, line int) {
	for _, name := range PlaceholderNames(text) {
		p.checkDeclared(name, line)
	}
}

// parseStatements parses tokens [p.pos, p.end) as a statement list.
func (p *Parser) parseStatements() []Node {
	var nodes []Node
	for p.pos < p.end {
		var n Node
		switch p.tokens[p.pos].Kind {
		case AT:
			n = p.parseDeclaration()
		case DOUBLE_DOT:
			n = p.parseInput(p.pos + 1)
		case GREATER:
			n = p.parseArrows()
		case STAR:
			n = p.parseMath()
		case QUESTION:
			n = p.parseIf()
		default:
			// blanks, newlines, comments, stray tokens
			p.pos++
			continue
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// parseType parses i | f | str | c [ n ] starting at i and returns the
// type and the index after it.
func (p *Parser) parseType(i int) (VarType, int, error) {
	if i >= p.end || p.tokens[i].Kind != IDENTIFIER {
		return VarType{}, i, fmt.Errorf("missing type")
	}
	switch lex := p.lexeme(i); lex {
	case "i":
		return IntType, i + 1, nil
	case "f":
		return FloatType, i + 1, nil
	case "str":
		return StringType, i + 1, nil
	case "c":
		i = p.skipBlank(i + 1)
		if i >= p.end || p.tokens[i].Kind != LBRACKET {
			return VarType{}, i, fmt.Errorf("expected '[' after char type")
		}
		i = p.skipBlank(i + 1)
		size := 1
		if i < p.end && p.tokens[i].Kind == IDENTIFIER {
			if n, err := strconv.Atoi(p.lexeme(i)); err == nil && n > 0 {
				size = n
			}
			i = p.skipBlank(i + 1)
		}
		if i >= p.end || p.tokens[i].Kind != RBRACKET {
			return VarType{}, i, fmt.Errorf("expected ']' after char size")
		}
		return CharType(size), i + 1, nil
	default:
		return VarType{}, i, fmt.Errorf("unknown type %q", lex)
	}
}

// parseDeclaration parses  @ [@] name type [initializer]
func (p *Parser) parseDeclaration() Node {
	start := p.pos
	line := p.lineOf(start)
	p.pos = p.lineEnd(start)

	i := start + 1
	mutable := false
	if i < p.end && p.tokens[i].Kind == AT {
		mutable = true
		i++
	}
	i = p.skipBlank(i)
	if i >= p.end || p.tokens[i].Kind != IDENTIFIER {
		p.errorf(&InvalidDeclaration{Pos: Pos{line}, Details: "missing variable name"})
		return nil
	}
	name := p.lexeme(i)

	typ, i, err := p.parseType(p.skipBlank(i + 1))
	if err != nil {
		p.errorf(&InvalidDeclaration{Pos: Pos{line}, Details: fmt.Sprintf("%s: %v", name, err)})
		return nil
	}

	if prev, ok := p.syms.Lookup(name); ok && !prev.Mutable {
		p.errorf(&ImmutableAssignment{Pos: Pos{line}, Name: name})
	}
	// Registered before the initializer is read, so the initializer
	// may refer to the name itself.
	p.syms.Declare(name, typ, mutable, line)

	from, to := p.restOfLine(i)
	var value Expr
	if from < to {
		value = p.operand(from, to)
		if !p.checkValue(name, typ, value, line) {
			p.syms.Retype(name, IntType)
		}
		if lit, ok := value.(*Literal); ok {
			lit.Text = stripQuotes(lit.Text, typ)
		}
	}

	return &VarDeclaration{Mutable: mutable, Name: name, Type: typ, Value: value}
}

// operand classifies tokens [from, to) as a single value: one quoted
// string or number is a Literal, one other word is an Identifier, and
// anything longer is the raw source text as a Literal.
func (p *Parser) operand(from, to int) Expr {
	if to-from == 1 {
		switch tok := p.tokens[from]; tok.Kind {
		case IDENTIFIER:
			lex := p.lexeme(from)
			if isNumeric(lex) {
				return &Literal{Text: lex}
			}
			return &Identifier{Name: lex}
		case STRING:
			return &Literal{Text: p.lexeme(from)}
		}
	}
	return &Literal{Text: p.text(from, to)}
}

// checkValue validates an initializer against the declared type and
// reports whether it is acceptable.
func (p *Parser) checkValue(name string, typ VarType, value Expr, line int) bool {
	switch v := value.(type) {
	case *Identifier:
		sym, ok := p.syms.Lookup(v.Name)
		if !ok {
			p.errorf(&Undeclared{Pos: Pos{line}, Name: v.Name})
			return false
		}
		if sym.Type != typ {
			p.errorf(&TypeMismatch{Pos: Pos{line}, Name: name, Expected: typ.String(), Found: sym.Type.String()})
			return false
		}
		return true

	case *Literal:
		p.checkPlaceholders(v.Text, line)
		text := v.Text
		switch typ.Kind {
		case IntKind:
			if _, err := strconv.ParseInt(text, 10, 32); err != nil {
				p.errorf(&VarTypeMisMatch{Pos: Pos{line}, Name: name, Expected: typ, Value: text})
				return false
			}
		case FloatKind:
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				p.errorf(&VarTypeMisMatch{Pos: Pos{line}, Name: name, Expected: typ, Value: text})
				return false
			}
		case StringKind:
			if len(text) < 2 || text[0] != '"' || text[len(text)-1] != '"' {
				p.errorf(&TypeMismatch{Pos: Pos{line}, Name: name, Expected: "quoted string", Found: text})
				return false
			}
		case CharKind:
			if len(text) < 2 || text[0] != '\'' || text[len(text)-1] != '\'' {
				p.errorf(&TypeMismatch{Pos: Pos{line}, Name: name, Expected: "quoted char", Found: text})
				return false
			}
			if n := utf8.RuneCountInString(text[1 : len(text)-1]); n != typ.Size {
				p.errorf(&TypeMismatch{
					Pos:      Pos{line},
					Name:     name,
					Expected: fmt.Sprintf("%d chars", typ.Size),
					Found:    fmt.Sprintf("%d chars", n),
				})
				return false
			}
		}
	}
	return true
}

// stripQuotes removes the delimiters of string and char initializers.
func stripQuotes(text string, typ VarType) string {
	var q string
	switch typ.Kind {
	case StringKind:
		q = `"`
	case CharKind:
		q = `'`
	default:
		return text
	}
	if len(text) >= 2 && strings.HasPrefix(text, q) && strings.HasSuffix(text, q) {
		return text[1 : len(text)-1]
	}
	return text
}

// parseInput parses the target of an input statement starting at i,
// after the .. or > marker.
func (p *Parser) parseInput(i int) Node {
	line := p.lineOf(p.pos)
	p.pos = p.lineEnd(p.pos)

	i = p.skipBlank(i)
	if i >= p.end || p.tokens[i].Kind != IDENTIFIER {
		return nil
	}
	name := p.lexeme(i)
	p.checkDeclared(name, line)
	return &Input{Name: name}
}

// parseArrows dispatches on the number of consecutive '>' tokens:
// one reads input, two print to stdout, three print to stderr.
func (p *Parser) parseArrows() Node {
	n := 0
	for p.pos+n < p.end && p.tokens[p.pos+n].Kind == GREATER {
		n++
	}
	switch n {
	case 1:
		return p.parseInput(p.pos + 1)
	case 2, 3:
		return p.parsePrint(n == 3, p.pos+n)
	}
	p.pos = p.lineEnd(p.pos)
	return nil
}

// parsePrint parses the payload of a print statement starting at i.
func (p *Parser) parsePrint(toStderr bool, i int) Node {
	line := p.lineOf(p.pos)
	p.pos = p.lineEnd(p.pos)

	from, to := p.restOfLine(i)
	if from == to {
		return &Print{ToStderr: toStderr}
	}
	if to-from == 1 {
		switch p.tokens[from].Kind {
		case STRING:
			text := p.lexeme(from)
			text = strings.TrimPrefix(text, `"`)
			text = strings.TrimSuffix(text, `"`)
			p.checkPlaceholders(text, line)
			return &Print{ToStderr: toStderr, Expr: &Literal{Text: text}}
		case IDENTIFIER:
			name := p.lexeme(from)
			if _, ok := p.syms.Lookup(name); ok {
				return &Print{ToStderr: toStderr, Expr: &Identifier{Name: name}}
			}
		}
	}
	text := p.text(from, to)
	p.checkPlaceholders(text, line)
	return &Print{ToStderr: toStderr, Expr: &Literal{Text: text}}
}

func mathOperator(k TokenKind) (MathOperator, bool) {
	switch k {
	case PLUS:
		return OpAdd, true
	case MINUS:
		return OpSub, true
	case STAR:
		return OpMul, true
	case SLASH:
		return OpDiv, true
	}
	return 0, false
}

// parseMath parses  * name op operand
func (p *Parser) parseMath() Node {
	line := p.lineOf(p.pos)
	i := p.skipBlank(p.pos + 1)
	p.pos = p.lineEnd(p.pos)

	if i >= p.end || p.tokens[i].Kind != IDENTIFIER {
		return nil
	}
	name := p.lexeme(i)

	i = p.skipBlank(i + 1)
	if i >= p.end {
		return nil
	}
	op, ok := mathOperator(p.tokens[i].Kind)
	if !ok {
		return nil
	}

	from, to := p.restOfLine(i + 1)
	idx := p.significant(from, to)
	if len(idx) == 0 {
		return nil
	}
	p.checkDeclared(name, line)

	var operand Expr
	if len(idx) == 1 && p.tokens[idx[0]].Kind == IDENTIFIER && !isNumeric(p.lexeme(idx[0])) {
		ref := p.lexeme(idx[0])
		p.checkDeclared(ref, line)
		operand = &Identifier{Name: ref}
	} else {
		words := make([]string, len(idx))
		for k, t := range idx {
			words[k] = p.lexeme(t)
		}
		operand = &Literal{Text: strings.Join(words, " ")}
	}
	p.checkOperand(name, operand, line)
	return &MathOp{Name: name, Op: op, Operand: operand}
}

// checkOperand validates the operand of math on a numeric variable. A
// text variable is a TypeMismatch. A literal must fold to a constant,
// and an Int variable only takes an integer constant.
func (p *Parser) checkOperand(name string, operand Expr, line int) {
	sym, ok := p.syms.Lookup(name)
	if !ok || !sym.Type.Numeric() {
		return
	}
	switch v := operand.(type) {
	case *Identifier:
		if ref, ok := p.syms.Lookup(v.Name); ok && !ref.Type.Numeric() {
			p.errorf(&TypeMismatch{Pos: Pos{line}, Name: name, Expected: sym.Type.String(), Found: ref.Type.String()})
		}
	case *Literal:
		c, ok := FoldConstant(v.Text)
		if !ok || c.IsFloat && sym.Type.Kind == IntKind {
			p.errorf(&VarTypeMisMatch{Pos: Pos{line}, Name: name, Expected: sym.Type, Value: v.Text})
		}
	}
}

// parseIf parses  ? ( condition ) { body }
func (p *Parser) parseIf() Node {
	start := p.pos
	line := p.lineOf(start)

	open := p.skipBlank(start + 1)
	if open >= p.end || p.tokens[open].Kind != LPAREN {
		p.errorf(&MissingConditionOpenParen{Pos{line}})
		p.pos = p.lineEnd(start)
		return nil
	}

	// The condition must close on the same line.
	closeIdx, depth := -1, 0
	for k := open; k < p.end && p.tokens[k].Kind != NEWLINE; k++ {
		switch p.tokens[k].Kind {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
		}
		if depth == 0 {
			closeIdx = k
			break
		}
	}
	if closeIdx < 0 {
		p.errorf(&MissingConditionCloseParen{Pos{line}})
		p.pos = p.lineEnd(start)
		return nil
	}

	brace := p.skipBlank(closeIdx + 1)
	if brace >= p.end || p.tokens[brace].Kind != LBRACE {
		p.errorf(&MissingBlockOpenBrace{Pos{line}})
		p.pos = p.lineEnd(start)
		return nil
	}

	bodyEnd, depth := -1, 0
	for k := brace; k < p.end; k++ {
		switch p.tokens[k].Kind {
		case LBRACE:
			depth++
		case RBRACE:
			depth--
		}
		if depth == 0 {
			bodyEnd = k
			break
		}
	}
	if bodyEnd < 0 {
		p.errorf(&UnmatchedClosingBrace{Pos{line}})
		p.pos = brace + 1
		return nil
	}

	cond, details := p.parseCondition(open+1, closeIdx, line)
	if cond == nil {
		p.errorf(&InvalidCondition{Pos: Pos{line}, Details: details})
	}

	// The body shares the symbol table; only the range changes.
	savedEnd := p.end
	p.pos, p.end = brace+1, bodyEnd
	body := p.parseStatements()
	p.pos, p.end = bodyEnd+1, savedEnd

	if cond == nil {
		return nil
	}
	return &If{Condition: cond, Body: body}
}
