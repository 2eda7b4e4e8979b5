package compiler

import "fmt"

// TokenKind identifies the category of a lexed token.
type TokenKind int

const (
	UNKNOWN TokenKind = iota // any byte no other rule claims, whitespace included

	// Statement markers
	AT         // @
	QUESTION   // ?
	DOUBLE_DOT // ..

	// Comparison and assignment
	GREATER    // >
	GREATER_EQ // >=
	LESS       // <
	LESS_EQ    // <=
	ASSIGN     // =
	EQUALS     // ==
	NOT_EQ     // !=

	// Logical operators
	AND_LOGICAL // &&
	OR_LOGICAL  // ||

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // *
	SLASH // /

	// Paired delimiters
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }

	IDENTIFIER // run of alphanumerics and _
	STRING     // "...", closing quote optional at end of line
	NEWLINE    // \n
	COMMENT    // ; to end of line
)

var tokenNames = [...]string{
	UNKNOWN:     "UNKNOWN",
	AT:          "AT",
	QUESTION:    "QUESTION",
	DOUBLE_DOT:  "DOUBLE_DOT",
	GREATER:     "GREATER",
	GREATER_EQ:  "GREATER_EQ",
	LESS:        "LESS",
	LESS_EQ:     "LESS_EQ",
	ASSIGN:      "ASSIGN",
	EQUALS:      "EQUALS",
	NOT_EQ:      "NOT_EQ",
	AND_LOGICAL: "AND_LOGICAL",
	OR_LOGICAL:  "OR_LOGICAL",
	PLUS:        "PLUS",
	MINUS:       "MINUS",
	STAR:        "STAR",
	SLASH:       "SLASH",
	LPAREN:      "LPAREN",
	RPAREN:      "RPAREN",
	LBRACKET:    "LBRACKET",
	RBRACKET:    "RBRACKET",
	LBRACE:      "LBRACE",
	RBRACE:      "RBRACE",
	IDENTIFIER:  "IDENTIFIER",
	STRING:      "STRING",
	NEWLINE:     "NEWLINE",
	COMMENT:     "COMMENT",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a classified half-open byte span [Start, End) of the source.
// Tokens never own text; Lexeme slices it back out.
type Token struct {
	Kind  TokenKind
	Start int
	End   int
}

// Lexeme returns the source text covered by the token.
func (t Token) Lexeme(src string) string {
	return src[t.Start:t.End]
}

// blank reports whether t is an UNKNOWN token made only of whitespace.
func (t Token) blank(src string) bool {
	if t.Kind != UNKNOWN {
		return false
	}
	for i := t.Start; i < t.End; i++ {
		switch src[i] {
		case ' ', '\t', '\r', '\v', '\f':
		default:
			return false
		}
	}
	return true
}

func (t Token) String() string {
	return fmt.Sprintf("%s[%d:%d]", t.Kind, t.Start, t.End)
}
