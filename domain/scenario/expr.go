package scenario

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Expr is a compiled arithmetic expression over scenario variables. The
// language is deliberately closed: literals, variable references and the
// operators + - * / ^ with parentheses. Nothing here can execute code or
// touch state, which keeps trial evaluation deterministic and safe for
// user-supplied scenarios.
type Expr interface {
	eval(values []float64) float64
}

type literal struct {
	v float64
}

func (l literal) eval([]float64) float64 { return l.v }

type varRef struct {
	idx int
}

func (r varRef) eval(values []float64) float64 { return values[r.idx] }

type unaryNeg struct {
	operand Expr
}

func (u unaryNeg) eval(values []float64) float64 { return -u.operand.eval(values) }

type binaryOp struct {
	op   byte
	l, r Expr
}

func (b binaryOp) eval(values []float64) float64 {
	lv := b.l.eval(values)
	rv := b.r.eval(values)
	switch b.op {
	case '+':
		return lv + rv
	case '-':
		return lv - rv
	case '*':
		return lv * rv
	case '/':
		if rv == 0 {
			// Division by zero poisons this trial's output only; the
			// analyzer counts NaN outputs as degenerate trials.
			return math.NaN()
		}
		return lv / rv
	case '^':
		return math.Pow(lv, rv)
	}
	return math.NaN()
}

// Parse compiles an expression source against a variable index map, binding
// each reference to its position in scenario variable order. Unknown
// variables and malformed syntax are reported as errors, never deferred to
// evaluation time.
func Parse(src string, vars map[string]int) (Expr, error) {
	p := &parser{src: src, vars: vars}
	p.next()
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.tok.text, p.tok.pos)
	}
	return node, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type parser struct {
	src  string
	pos  int
	tok  token
	vars map[string]int
}

func (p *parser) next() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}
	c := p.src[p.pos]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.' ||
			p.src[p.pos] == 'e' || p.src[p.pos] == 'E' ||
			((p.src[p.pos] == '+' || p.src[p.pos] == '-') && p.pos > start &&
				(p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'))) {
			p.pos++
		}
		p.tok = token{kind: tokNumber, text: p.src[start:p.pos], pos: start}
	case isIdentStart(c):
		for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: p.src[start:p.pos], pos: start}
	case strings.IndexByte("+-*/^", c) >= 0:
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// parseExpr handles + and - (lowest precedence, left associative)
func (p *parser) parseExpr() (Expr, error) {
	node, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text[0]
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		node = binaryOp{op: op, l: node, r: right}
	}
	return node, nil
}

// parseTerm handles * and /
func (p *parser) parseTerm() (Expr, error) {
	node, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text[0]
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		node = binaryOp{op: op, l: node, r: right}
	}
	return node, nil
}

// parseFactor handles ^ (right associative, binds tighter than * /)
func (p *parser) parseFactor() (Expr, error) {
	node, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokOp && p.tok.text == "^" {
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		node = binaryOp{op: '^', l: node, r: right}
	}
	return node, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNeg{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.tok.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", p.tok.text, p.tok.pos)
		}
		p.next()
		return literal{v: v}, nil
	case tokIdent:
		idx, ok := p.vars[p.tok.text]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q at position %d", p.tok.text, p.tok.pos)
		}
		p.next()
		return varRef{idx: idx}, nil
	case tokLParen:
		p.next()
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", p.tok.pos)
		}
		p.next()
		return node, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", p.tok.text, p.tok.pos)
	}
}
