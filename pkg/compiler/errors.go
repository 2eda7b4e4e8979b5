package compiler

import (
	"errors"
	"fmt"
)

// VarError is implemented by every error the parser collects.
type VarError interface {
	error
	Kind() string
	// Line is the 0-based source line the error was raised on.
	Line() int
	// Message returns the error text without position info.
	Message() string
}

// Pos records the 0-based line an error was raised on. Users see At+1.
type Pos struct {
	At int
}

func (p Pos) Line() int { return p.At }

func format(line int, msg string) string {
	return fmt.Sprintf("line %d: %s", line+1, msg)
}

// TypeMismatch is a value whose shape does not fit the declared type,
// e.g. an unquoted string or a char literal of the wrong length.
type TypeMismatch struct {
	Pos
	Name     string
	Expected string
	Found    string
}

func (e *TypeMismatch) Error() string { return format(e.At, e.Message()) }
func (e *TypeMismatch) Kind() string  { return "TypeMismatch" }
func (e *TypeMismatch) Message() string {
	return fmt.Sprintf("type mismatch for %q: expected %s, found %s", e.Name, e.Expected, e.Found)
}

// VarTypeMisMatch is a literal that fails to parse as its declared type.
type VarTypeMisMatch struct {
	Pos
	Name     string
	Expected VarType
	Value    string
}

func (e *VarTypeMisMatch) Error() string { return format(e.At, e.Message()) }
func (e *VarTypeMisMatch) Kind() string  { return "VarTypeMisMatch" }
func (e *VarTypeMisMatch) Message() string {
	return fmt.Sprintf("value %q is not a valid %s for %q", e.Value, e.Expected, e.Name)
}

// Undeclared is a use of a name before any declaration of it.
type Undeclared struct {
	Pos
	Name string
}

func (e *Undeclared) Error() string { return format(e.At, e.Message()) }
func (e *Undeclared) Kind() string  { return "Undeclared" }
func (e *Undeclared) Message() string {
	return fmt.Sprintf("variable %q is not declared", e.Name)
}

// ImmutableAssignment is a redeclaration of a name bound immutable.
type ImmutableAssignment struct {
	Pos
	Name string
}

func (e *ImmutableAssignment) Error() string { return format(e.At, e.Message()) }
func (e *ImmutableAssignment) Kind() string  { return "ImmutableAssignment" }
func (e *ImmutableAssignment) Message() string {
	return fmt.Sprintf("cannot reassign immutable variable %q", e.Name)
}

type MissingConditionOpenParen struct{ Pos }

func (e *MissingConditionOpenParen) Error() string   { return format(e.At, e.Message()) }
func (e *MissingConditionOpenParen) Kind() string    { return "MissingConditionOpenParen" }
func (e *MissingConditionOpenParen) Message() string { return "expected '(' after '?'" }

type MissingConditionCloseParen struct{ Pos }

func (e *MissingConditionCloseParen) Error() string   { return format(e.At, e.Message()) }
func (e *MissingConditionCloseParen) Kind() string    { return "MissingConditionCloseParen" }
func (e *MissingConditionCloseParen) Message() string { return "condition is missing its closing ')'" }

type MissingBlockOpenBrace struct{ Pos }

func (e *MissingBlockOpenBrace) Error() string   { return format(e.At, e.Message()) }
func (e *MissingBlockOpenBrace) Kind() string    { return "MissingBlockOpenBrace" }
func (e *MissingBlockOpenBrace) Message() string { return "expected '{' after condition" }

type UnmatchedClosingBrace struct{ Pos }

func (e *UnmatchedClosingBrace) Error() string   { return format(e.At, e.Message()) }
func (e *UnmatchedClosingBrace) Kind() string    { return "UnmatchedClosingBrace" }
func (e *UnmatchedClosingBrace) Message() string { return "block is missing its closing '}'" }

// InvalidCondition is a condition that is neither a comparison, a
// logical combination, nor a single operand.
type InvalidCondition struct {
	Pos
	Details string
}

func (e *InvalidCondition) Error() string   { return format(e.At, e.Message()) }
func (e *InvalidCondition) Kind() string    { return "InvalidCondition" }
func (e *InvalidCondition) Message() string { return "invalid condition: " + e.Details }

// InvalidDeclaration is an @ statement missing its name or type.
type InvalidDeclaration struct {
	Pos
	Details string
}

func (e *InvalidDeclaration) Error() string   { return format(e.At, e.Message()) }
func (e *InvalidDeclaration) Kind() string    { return "InvalidDeclaration" }
func (e *InvalidDeclaration) Message() string { return "invalid declaration: " + e.Details }

// Errors adapts a VarError list to a plain error slice for errors.Join.
func Errors(errs []VarError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// Join folds errs into a single error, or nil when errs is empty.
func Join(errs []VarError) error {
	return errors.Join(Errors(errs)...)
}
