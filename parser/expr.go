package parser

import (
	"fmt"
	"strconv"

	"github.com/Alivebyte/ShaderCompile/combo"
)

// ParseSkipExpr parses a #skip directive's boolean expression (e.g.
// "AXIS1==3 && AXIS2>1 || !(AXIS3<=0)") into a combo.Expr, with the
// usual precedence: || binds loosest, then &&, then unary !, then the
// comparison operators, which only ever compare an axis name against
// an integer literal.
func ParseSkipExpr(s string) (combo.Expr, error) {
	toks, err := lexExpr(s)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("parser: unexpected token %q in skip expression %q", p.toks[p.pos], s)
	}
	return e, nil
}

func lexExpr(s string) ([]string, error) {
	var toks []string
	i, n := 0, len(s)
	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		case c == '!':
			if i+1 < n && s[i+1] == '=' {
				toks = append(toks, "!=")
				i += 2
			} else {
				toks = append(toks, "!")
				i++
			}
		case c == '=':
			if i+1 < n && s[i+1] == '=' {
				toks = append(toks, "==")
				i += 2
			} else {
				return nil, fmt.Errorf("parser: bad token at %q (did you mean '=='?)", s[i:])
			}
		case c == '<':
			if i+1 < n && s[i+1] == '=' {
				toks = append(toks, "<=")
				i += 2
			} else {
				toks = append(toks, "<")
				i++
			}
		case c == '>':
			if i+1 < n && s[i+1] == '=' {
				toks = append(toks, ">=")
				i += 2
			} else {
				toks = append(toks, ">")
				i++
			}
		case c == '&' && i+1 < n && s[i+1] == '&':
			toks = append(toks, "&&")
			i += 2
		case c == '|' && i+1 < n && s[i+1] == '|':
			toks = append(toks, "||")
			i += 2
		case c == '-' || isDigit(c):
			j := i + 1
			for j < n && isDigit(s[j]) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			return nil, fmt.Errorf("parser: unexpected character %q in skip expression %q", c, s)
		}
	}
	return toks, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

type exprParser struct {
	toks []string
	pos  int
}

func (p *exprParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *exprParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *exprParser) parseOr() (combo.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = combo.Or(left, right)
	}
	return left, nil
}

func (p *exprParser) parseAnd() (combo.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek() == "&&" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = combo.And(left, right)
	}
	return left, nil
}

func (p *exprParser) parseUnary() (combo.Expr, error) {
	if p.peek() == "!" {
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return combo.Not(e), nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (combo.Expr, error) {
	if p.peek() == "(" {
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("parser: expected ')' in skip expression")
		}
		p.next()
		return e, nil
	}

	axis := p.next()
	if axis == "" || !isIdentStart(axis[0]) {
		return nil, fmt.Errorf("parser: expected axis name, got %q", axis)
	}
	op := p.next()
	valTok := p.next()
	val, err := strconv.Atoi(valTok)
	if err != nil {
		return nil, fmt.Errorf("parser: bad integer %q: %w", valTok, err)
	}
	switch op {
	case "==":
		return combo.Eq(axis, val), nil
	case "!=":
		return combo.Neq(axis, val), nil
	case "<":
		return combo.Lt(axis, val), nil
	case "<=":
		return combo.Le(axis, val), nil
	case ">":
		return combo.Gt(axis, val), nil
	case ">=":
		return combo.Ge(axis, val), nil
	default:
		return nil, fmt.Errorf("parser: unknown comparison operator %q", op)
	}
}
