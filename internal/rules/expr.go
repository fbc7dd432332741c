// Package rules implements the branch-condition engine: a small typed
// boolean-expression language evaluated against the answers recorded so far,
// and the rule collection that picks each interview's next question.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ValueKind discriminates the typed values expressions operate on.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindList
)

// Value is a typed answer value as seen by rule expressions.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	List []string
}

func Str(s string) Value        { return Value{Kind: KindString, Str: s} }
func Num(f float64) Value       { return Value{Kind: KindNumber, Num: f} }
func Bool(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func List(items []string) Value { return Value{Kind: KindList, List: items} }

// EvalError reports an expression that could not be evaluated against the
// current answer state: an unanswered reference or a type-invalid comparison.
// It is a task failure, deliberately distinct from an expression that
// evaluates to false.
type EvalError struct {
	Expr   string
	Reason string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("rule expression %q: %s", e.Expr, e.Reason)
}

// Expr is a parsed boolean expression node.
type Expr interface {
	// Eval evaluates the node against named answer values.
	Eval(answers map[string]Value) (Value, error)
	String() string
}

// Parse compiles an expression like "q1 == 'yes' and score > 3" into an AST.
// Supported grammar, loosest binding first:
//
//	or   := and ("or" | "||") and ...
//	and  := not ("and" | "&&") not ...
//	not  := ("not" | "!") not | cmp
//	cmp  := term (("=="|"!="|"<"|"<="|">"|">="|"in") term)?
//	term := name | number | 'string' | true | false | "(" or ")"
//
// Comparison coercion is explicit: == and != compare numerically when either
// side is a number and the other parses as one, otherwise kinds must match;
// ordering operators require numbers (or numeric strings) on both sides.
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, eris.Errorf("rules: parse %q: unexpected %q", src, p.peek().text)
	}
	return node, nil
}

// MustParse is Parse for statically known expressions (tests, defaults).
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(src) && src[j] != quote {
				j++
			}
			if j >= len(src) {
				return nil, eris.Errorf("rules: lex %q: unterminated string", src)
			}
			toks = append(toks, token{tokString, src[i+1 : j]})
			i = j + 1
		case strings.ContainsRune("=!<>&|", rune(c)):
			j := i + 1
			for j < len(src) && strings.ContainsRune("=!<>&|", rune(src[j])) {
				j++
			}
			op := src[i:j]
			switch op {
			case "==", "!=", "<", "<=", ">", ">=", "&&", "||", "!":
			default:
				return nil, eris.Errorf("rules: lex %q: unknown operator %q", src, op)
			}
			toks = append(toks, token{tokOp, op})
			i = j
		case c >= '0' && c <= '9' || c == '-' || c == '.':
			j := i + 1
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j]})
			i = j
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			j := i + 1
			for j < len(src) && (src[j] == '_' || src[j] >= 'a' && src[j] <= 'z' ||
				src[j] >= 'A' && src[j] <= 'Z' || src[j] >= '0' && src[j] <= '9') {
				j++
			}
			word := src[i:j]
			switch word {
			case "and", "or", "not", "in":
				toks = append(toks, token{tokOp, word})
			default:
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			return nil, eris.Errorf("rules: lex %q: unexpected character %q", src, string(c))
		}
	}
	return toks, nil
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) done() bool    { return p.pos >= len(p.toks) }
func (p *parser) peek() token   { return p.toks[p.pos] }
func (p *parser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) acceptOp(ops ...string) (string, bool) {
	if p.done() || p.peek().kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if p.peek().text == op {
			p.advance()
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("or", "||"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "or", left: left, right: right}
	}
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("and", "&&"); !ok {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "and", left: left, right: right}
	}
}

func (p *parser) parseNot() (Expr, error) {
	if _, ok := p.acceptOp("not", "!"); ok {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOp("==", "!=", "<=", ">=", "<", ">", "in")
	if !ok {
		return left, nil
	}
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseTerm() (Expr, error) {
	if p.done() {
		return nil, eris.Errorf("rules: parse %q: unexpected end of expression", p.src)
	}
	t := p.advance()
	switch t.kind {
	case tokIdent:
		switch t.text {
		case "true":
			return &literalNode{val: Bool(true)}, nil
		case "false":
			return &literalNode{val: Bool(false)}, nil
		}
		return &refNode{name: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, eris.Errorf("rules: parse %q: bad number %q", p.src, t.text)
		}
		return &literalNode{val: Num(f)}, nil
	case tokString:
		return &literalNode{val: Str(t.text)}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.done() || p.peek().kind != tokRParen {
			return nil, eris.Errorf("rules: parse %q: missing closing parenthesis", p.src)
		}
		p.advance()
		return inner, nil
	}
	return nil, eris.Errorf("rules: parse %q: unexpected %q", p.src, t.text)
}

type literalNode struct{ val Value }

func (n *literalNode) Eval(map[string]Value) (Value, error) { return n.val, nil }
func (n *literalNode) String() string {
	switch n.val.Kind {
	case KindString:
		return "'" + n.val.Str + "'"
	case KindNumber:
		return strconv.FormatFloat(n.val.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(n.val.Bool)
	}
	return "?"
}

type refNode struct{ name string }

func (n *refNode) Eval(answers map[string]Value) (Value, error) {
	v, ok := answers[n.name]
	if !ok {
		return Value{}, &EvalError{Expr: n.name, Reason: "references an unanswered question"}
	}
	return v, nil
}
func (n *refNode) String() string { return n.name }

type notNode struct{ inner Expr }

func (n *notNode) Eval(answers map[string]Value) (Value, error) {
	v, err := n.inner.Eval(answers)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != KindBool {
		return Value{}, &EvalError{Expr: n.String(), Reason: "operand of 'not' is not boolean"}
	}
	return Bool(!v.Bool), nil
}
func (n *notNode) String() string { return "not " + n.inner.String() }

type binaryNode struct {
	op          string
	left, right Expr
}

func (n *binaryNode) String() string {
	return n.left.String() + " " + n.op + " " + n.right.String()
}

func (n *binaryNode) Eval(answers map[string]Value) (Value, error) {
	l, err := n.left.Eval(answers)
	if err != nil {
		return Value{}, err
	}
	r, err := n.right.Eval(answers)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case "and", "or":
		if l.Kind != KindBool || r.Kind != KindBool {
			return Value{}, &EvalError{Expr: n.String(), Reason: "logical operand is not boolean"}
		}
		if n.op == "and" {
			return Bool(l.Bool && r.Bool), nil
		}
		return Bool(l.Bool || r.Bool), nil

	case "==", "!=":
		eq, err := valuesEqual(l, r)
		if err != nil {
			return Value{}, &EvalError{Expr: n.String(), Reason: err.Error()}
		}
		if n.op == "!=" {
			eq = !eq
		}
		return Bool(eq), nil

	case "<", "<=", ">", ">=":
		lf, lok := asNumber(l)
		rf, rok := asNumber(r)
		if !lok || !rok {
			return Value{}, &EvalError{Expr: n.String(), Reason: "ordering requires numeric operands"}
		}
		switch n.op {
		case "<":
			return Bool(lf < rf), nil
		case "<=":
			return Bool(lf <= rf), nil
		case ">":
			return Bool(lf > rf), nil
		default:
			return Bool(lf >= rf), nil
		}

	case "in":
		if r.Kind != KindList {
			return Value{}, &EvalError{Expr: n.String(), Reason: "'in' requires a list on the right"}
		}
		needle := l.Str
		if l.Kind == KindNumber {
			needle = strconv.FormatFloat(l.Num, 'f', -1, 64)
		}
		for _, item := range r.List {
			if item == needle {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	}
	return Value{}, &EvalError{Expr: n.String(), Reason: "unknown operator " + n.op}
}

// asNumber returns the numeric reading of v. Numeric strings coerce;
// anything else does not.
func asNumber(v Value) (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f, err == nil
	}
	return 0, false
}

// valuesEqual implements the explicit equality coercion: number-vs-string
// compares numerically when the string parses as a number; otherwise both
// sides must share a kind.
func valuesEqual(l, r Value) (bool, error) {
	if l.Kind != r.Kind {
		if lf, lok := asNumber(l); lok {
			if rf, rok := asNumber(r); rok {
				return lf == rf, nil
			}
		}
		return false, fmt.Errorf("cannot compare %s with %s", kindName(l.Kind), kindName(r.Kind))
	}
	switch l.Kind {
	case KindString:
		return l.Str == r.Str, nil
	case KindNumber:
		return l.Num == r.Num, nil
	case KindBool:
		return l.Bool == r.Bool, nil
	case KindList:
		if len(l.List) != len(r.List) {
			return false, nil
		}
		for i := range l.List {
			if l.List[i] != r.List[i] {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("unsupported kind")
}

func kindName(k ValueKind) string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	}
	return "unknown"
}
