package compiler

import "fmt"

func comparisonOperator(k TokenKind) (ComparisonOperator, bool) {
	switch k {
	case EQUALS:
		return OpEqual, true
	case NOT_EQ:
		return OpNotEqual, true
	case LESS:
		return OpLess, true
	case LESS_EQ:
		return OpLessEqual, true
	case GREATER:
		return OpGreater, true
	case GREATER_EQ:
		return OpGreaterEqual, true
	}
	return 0, false
}

// wrapped reports whether [from, to) is one parenthesised group.
func (p *Parser) wrapped(from, to int) bool {
	if to-from < 2 || p.tokens[from].Kind != LPAREN || p.tokens[to-1].Kind != RPAREN {
		return false
	}
	depth := 0
	for k := from; k < to; k++ {
		switch p.tokens[k].Kind {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
		}
		if depth == 0 && k < to-1 {
			return false
		}
	}
	return true
}

// topLevel returns the first index in [from, to) at paren depth zero
// whose kind satisfies match, or -1.
func (p *Parser) topLevel(from, to int, match func(TokenKind) bool) int {
	depth := 0
	for k := from; k < to; k++ {
		kind := p.tokens[k].Kind
		switch kind {
		case LPAREN:
			depth++
			continue
		case RPAREN:
			depth--
			continue
		}
		if depth == 0 && match(kind) {
			return k
		}
	}
	return -1
}

func isLogical(k TokenKind) bool { return k == AND_LOGICAL || k == OR_LOGICAL }

func isComparison(k TokenKind) bool {
	_, ok := comparisonOperator(k)
	return ok
}

// parseCondition parses tokens [from, to) as a condition. The first
// && or || found left to right splits the expression; there is no
// precedence between them. On failure it returns nil and a description.
func (p *Parser) parseCondition(from, to, line int) (Expr, string) {
	from, to = p.trim(from, to)
	if from >= to {
		return nil, "empty condition"
	}
	if p.wrapped(from, to) {
		return p.parseCondition(from+1, to-1, line)
	}

	if k := p.topLevel(from, to, isLogical); k >= 0 {
		op, name := OpAnd, "AND"
		if p.tokens[k].Kind == OR_LOGICAL {
			op, name = OpOr, "OR"
		}
		left, details := p.parseCondition(from, k, line)
		if left == nil {
			return nil, fmt.Sprintf("invalid left side of %s: %s", name, details)
		}
		right, details := p.parseCondition(k+1, to, line)
		if right == nil {
			return nil, fmt.Sprintf("invalid right side of %s: %s", name, details)
		}
		return &LogicalOp{Left: left, Op: op, Right: right}, ""
	}

	if k := p.topLevel(from, to, isComparison); k >= 0 {
		op, _ := comparisonOperator(p.tokens[k].Kind)
		lf, lt := p.trim(from, k)
		rf, rt := p.trim(k+1, to)
		if lf >= lt || rf >= rt {
			return nil, fmt.Sprintf("missing operands for %s", op)
		}
		left, details := p.conditionOperand(lf, lt, line)
		if left == nil {
			return nil, fmt.Sprintf("invalid left operand of %s: %s", op, details)
		}
		right, details := p.conditionOperand(rf, rt, line)
		if right == nil {
			return nil, fmt.Sprintf("invalid right operand of %s: %s", op, details)
		}
		return &BinaryOp{Left: left, Op: op, Right: right}, ""
	}

	return p.conditionOperand(from, to, line)
}

// conditionOperand parses one side of a comparison, or a bare
// condition. Variable names must already be declared.
func (p *Parser) conditionOperand(from, to, line int) (Expr, string) {
	for p.wrapped(from, to) {
		from, to = p.trim(from+1, to-1)
	}
	if from >= to {
		return nil, "empty operand"
	}
	e := p.operand(from, to)
	if id, ok := e.(*Identifier); ok {
		p.checkDeclared(id.Name, line)
	}
	return e, ""
}
