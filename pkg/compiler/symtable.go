package compiler

import (
	"fmt"
	"sort"
	"strings"
)

type Symbol struct {
	Type    VarType
	Index   int // declaration order, starting at 0
	Mutable bool
	Line    int // 0-based line of the declaration
}

// SymbolTable maps variable names to their declared type and order.
// One table is shared by a whole parse, nested bodies included, so a
// name declared anywhere earlier in the text is visible from then on.
type SymbolTable struct {
	symbols map[string]Symbol
	next    int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]Symbol)}
}

// Declare records name with the next declaration index. A redeclaration
// replaces the previous entry and gets a fresh index.
func (s *SymbolTable) Declare(name string, typ VarType, mutable bool, line int) Symbol {
	sym := Symbol{Type: typ, Index: s.next, Mutable: mutable, Line: line}
	s.next++
	s.symbols[name] = sym
	return sym
}

// Retype overwrites the type of an existing entry, keeping its index.
func (s *SymbolTable) Retype(name string, typ VarType) {
	if sym, ok := s.symbols[name]; ok {
		sym.Type = typ
		s.symbols[name] = sym
	}
}

// Lookup returns the symbol and whether it was found.
func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

func (s *SymbolTable) Len() int { return len(s.symbols) }

// Names returns all declared names in declaration order.
func (s *SymbolTable) Names() []string {
	names := make([]string, 0, len(s.symbols))
	for name := range s.symbols {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return s.symbols[names[i]].Index < s.symbols[names[j]].Index
	})
	return names
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	if len(s.symbols) == 0 {
		return "Symbols: (empty)\n"
	}
	var sb strings.Builder
	sb.WriteString("Symbols:\n")
	for _, name := range s.Names() {
		sym := s.symbols[name]
		mut := ""
		if sym.Mutable {
			mut = " mut"
		}
		fmt.Fprintf(&sb, "  %-20s  #%d %s%s (line %d)\n", name, sym.Index, sym.Type, mut, sym.Line+1)
	}
	return sb.String()
}
