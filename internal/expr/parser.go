package expr

import "fmt"

type parser struct {
	toks []token
	pos  int
}

// parse compiles one expression into an AST. handle is the only free
// variable allowed at the root; any other root identifier is a compile
// error so a stray reference can never resolve to ambient state.
func parse(src, handle string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr(map[string]bool{handle: true})
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("expr: unexpected trailing input %q", p.cur().text)
	}
	return n, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) expectOp(text string) error {
	t := p.cur()
	if t.kind != tokOp || t.text != text {
		return fmt.Errorf("expr: expected %q at offset %d", text, t.pos)
	}
	p.pos++
	return nil
}

func (p *parser) isOp(text string) bool {
	t := p.cur()
	return t.kind == tokOp && t.text == text
}

// scope tracks which identifiers are bound: the row handle plus any
// enclosing lambda parameters.

func (p *parser) parseOr(scope map[string]bool) (node, error) {
	lhs, err := p.parseAnd(scope)
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		p.next()
		rhs, err := p.parseAnd(scope)
		if err != nil {
			return nil, err
		}
		lhs = binaryNode{op: "||", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd(scope map[string]bool) (node, error) {
	lhs, err := p.parseEquality(scope)
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		p.next()
		rhs, err := p.parseEquality(scope)
		if err != nil {
			return nil, err
		}
		lhs = binaryNode{op: "&&", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseEquality(scope map[string]bool) (node, error) {
	lhs, err := p.parseRelational(scope)
	if err != nil {
		return nil, err
	}
	for p.isOp("==") || p.isOp("!=") {
		op := p.next().text
		rhs, err := p.parseRelational(scope)
		if err != nil {
			return nil, err
		}
		lhs = binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseRelational(scope map[string]bool) (node, error) {
	lhs, err := p.parseUnary(scope)
	if err != nil {
		return nil, err
	}
	for p.isOp("<") || p.isOp("<=") || p.isOp(">") || p.isOp(">=") {
		op := p.next().text
		rhs, err := p.parseUnary(scope)
		if err != nil {
			return nil, err
		}
		lhs = binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary(scope map[string]bool) (node, error) {
	if p.isOp("!") {
		p.next()
		x, err := p.parseUnary(scope)
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "!", x: x}, nil
	}
	return p.parsePostfix(scope)
}

// parsePostfix parses a primary followed by any chain of selectors and
// method calls.
func (p *parser) parsePostfix(scope map[string]bool) (node, error) {
	n, err := p.parsePrimary(scope)
	if err != nil {
		return nil, err
	}
	for p.isOp(".") {
		p.next()
		name := p.cur()
		if name.kind != tokIdent {
			return nil, fmt.Errorf("expr: expected identifier after '.' at offset %d", name.pos)
		}
		p.next()
		if p.isOp("(") {
			p.next()
			args, err := p.parseArgs(scope)
			if err != nil {
				return nil, err
			}
			n = callNode{recv: n, method: name.text, args: args}
			continue
		}
		n = selectorNode{recv: n, name: name.text}
	}
	return n, nil
}

func (p *parser) parseArgs(scope map[string]bool) ([]node, error) {
	var args []node
	if p.isOp(")") {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseArg(scope)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.isOp(",") {
			p.next()
			continue
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

// parseArg parses a call argument, which may be a single-parameter lambda
// (`s => ...` or `(s) => ...`).
func (p *parser) parseArg(scope map[string]bool) (node, error) {
	// ident => body
	if p.cur().kind == tokIdent && p.pos+1 < len(p.toks) &&
		p.toks[p.pos+1].kind == tokOp && p.toks[p.pos+1].text == "=>" {
		param := p.next().text
		p.next() // =>
		inner := cloneScope(scope)
		inner[param] = true
		body, err := p.parseOr(inner)
		if err != nil {
			return nil, err
		}
		return lambdaNode{param: param, body: body}, nil
	}
	// (ident) => body
	if p.isOp("(") && p.pos+3 < len(p.toks) &&
		p.toks[p.pos+1].kind == tokIdent &&
		p.toks[p.pos+2].kind == tokOp && p.toks[p.pos+2].text == ")" &&
		p.toks[p.pos+3].kind == tokOp && p.toks[p.pos+3].text == "=>" {
		p.next()
		param := p.next().text
		p.next() // )
		p.next() // =>
		inner := cloneScope(scope)
		inner[param] = true
		body, err := p.parseOr(inner)
		if err != nil {
			return nil, err
		}
		return lambdaNode{param: param, body: body}, nil
	}
	return p.parseOr(scope)
}

func (p *parser) parsePrimary(scope map[string]bool) (node, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.next()
		return litNode{val: numberValue(t.text)}, nil
	case tokString:
		p.next()
		return litNode{val: stringValue(t.text)}, nil
	case tokKeyword:
		p.next()
		switch t.text {
		case "true":
			return litNode{val: boolValue(true)}, nil
		case "false":
			return litNode{val: boolValue(false)}, nil
		default: // null, undefined
			return litNode{val: nullValue()}, nil
		}
	case tokIdent:
		if !scope[t.text] {
			return nil, fmt.Errorf("expr: unknown identifier %q at offset %d", t.text, t.pos)
		}
		p.next()
		return identNode{name: t.text}, nil
	case tokOp:
		if t.text == "(" {
			p.next()
			inner, err := p.parseOr(scope)
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
		if t.text == "[" {
			p.next()
			var elems []node
			if p.isOp("]") {
				p.next()
				return arrayNode{}, nil
			}
			for {
				e, err := p.parseOr(scope)
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
				if p.isOp(",") {
					p.next()
					continue
				}
				if err := p.expectOp("]"); err != nil {
					return nil, err
				}
				return arrayNode{elems: elems}, nil
			}
		}
	}
	return nil, fmt.Errorf("expr: unexpected token %q at offset %d", t.text, t.pos)
}

func cloneScope(scope map[string]bool) map[string]bool {
	out := make(map[string]bool, len(scope)+1)
	for k, v := range scope {
		out[k] = v
	}
	return out
}
