package compiler

import (
	"sort"
	"unicode/utf8"
)

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src    string
	pos    int // offset of the next byte to consume
	tokens []Token
}

func newLexer(src string) *Lexer {
	return &Lexer{src: src, tokens: make([]Token, 0, len(src)/2)}
}

// peek returns the byte at the current position without advancing.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the byte one position ahead of the current position.
func (l *Lexer) peek2() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) emit(kind TokenKind, start int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Start: start, End: l.pos})
}

// pair emits kind2 when the next byte is second, otherwise a single-byte kind1.
func (l *Lexer) pair(second byte, kind2, kind1 TokenKind) {
	start := l.pos
	l.pos++
	if l.peek() == second {
		l.pos++
		l.emit(kind2, start)
		return
	}
	l.emit(kind1, start)
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// identLen returns the byte length of the identifier starting at the
// current position, or 0 if none starts there. Valid multi-byte UTF-8
// sequences count as identifier characters.
func (l *Lexer) identLen() int {
	i := l.pos
	for i < len(l.src) {
		c := l.src[i]
		if isIdentByte(c) {
			i++
			continue
		}
		if c < utf8.RuneSelf {
			break
		}
		r, size := utf8.DecodeRuneInString(l.src[i:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		i += size
	}
	return i - l.pos
}

func (l *Lexer) lexString() {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '"':
			l.pos++
			l.emit(STRING, start)
			return
		case '\n':
			l.emit(STRING, start)
			return
		}
		l.pos++
	}
	l.emit(STRING, start)
}

func (l *Lexer) lexComment() {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
	l.emit(COMMENT, start)
}

// singles maps bytes that always form a one-byte token.
var singles = [256]TokenKind{
	'@': AT,
	'?': QUESTION,
	'+': PLUS,
	'-': MINUS,
	'*': STAR,
	'/': SLASH,
	'(': LPAREN,
	')': RPAREN,
	'[': LBRACKET,
	']': RBRACKET,
	'{': LBRACE,
	'}': RBRACE,
	'\n': NEWLINE,
}

func (l *Lexer) next() {
	c := l.peek()
	switch c {
	case ';':
		l.lexComment()
		return
	case '"':
		l.lexString()
		return
	case '>':
		l.pair('=', GREATER_EQ, GREATER)
		return
	case '<':
		l.pair('=', LESS_EQ, LESS)
		return
	case '=':
		l.pair('=', EQUALS, ASSIGN)
		return
	case '!':
		l.pair('=', NOT_EQ, UNKNOWN)
		return
	case '&':
		l.pair('&', AND_LOGICAL, UNKNOWN)
		return
	case '|':
		l.pair('|', OR_LOGICAL, UNKNOWN)
		return
	case '.':
		l.pair('.', DOUBLE_DOT, UNKNOWN)
		return
	}

	if kind := singles[c]; kind != UNKNOWN {
		start := l.pos
		l.pos++
		l.emit(kind, start)
		return
	}

	if n := l.identLen(); n > 0 {
		start := l.pos
		l.pos += n
		l.emit(IDENTIFIER, start)
		return
	}

	start := l.pos
	l.pos++
	l.emit(UNKNOWN, start)
}

// Tokenize converts src into an ordered sequence of tokens whose spans
// cover the whole input. It never fails: bytes no rule recognises become
// single-byte UNKNOWN tokens.
func Tokenize(src string) []Token {
	l := newLexer(src)
	for l.pos < len(l.src) {
		l.next()
	}
	return l.tokens
}

// lineTable maps byte offsets to 0-based line numbers.
type lineTable []int

func newLineTable(src string) lineTable {
	starts := lineTable{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (lt lineTable) line(offset int) int {
	return sort.SearchInts(lt, offset+1) - 1
}
