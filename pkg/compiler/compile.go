package compiler

// Build runs the front end over src: tokenize, parse and, when there
// are no errors and optimize is set, both optimisation passes. The
// program is returned even when errs is non-empty.
func Build(src string, optimize bool) (prog *Program, syms *SymbolTable, errs []VarError, st Stats) {
	tokens := Tokenize(src)
	prog, syms, errs = Parse(tokens, src)
	if len(errs) > 0 || !optimize {
		return prog, syms, errs, st
	}

	first := Optimize(prog)
	second := Inline(prog)
	st = Stats{
		Removed: first.Removed + second.Removed,
		Fused:   first.Fused + second.Fused,
		Inlined: second.Inlined,
	}
	return prog, syms, errs, st
}
