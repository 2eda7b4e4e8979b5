// Package compiler provides the lexer, parser and optimiser for the ven
// scripting language.
//
// Pipeline: ven source → Tokenize → Parse → Optimize → Inline → codegen
//
// The parser never stops at the first error; it returns every problem it
// found together with the complete program, and callers decide whether
// to go on.
package compiler
