// Package expr compiles externally-supplied boolean filter expressions into
// safe, reusable row predicates. The input originates from an unreliable
// text generator, so compilation is defensive: markdown fencing is stripped,
// only the first plausible code line is kept, the grammar is restricted to
// field access, literals, comparison/logical/membership operators and a
// small builtin set, and a candidate predicate is test-invoked once before
// bulk use. Failures route to a heuristic fallback chain and never raise to
// the caller.
package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp      // == != <= >= < > && || ! => . , ( ) [ ]
	tokKeyword // true false null
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

// lex tokenizes a single-line expression. Unknown characters are errors;
// there is no escape hatch into anything outside the grammar.
func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case isIdentStart(rune(c)):
			l.lexIdent()
		case c >= '0' && c <= '9':
			l.lexNumber()
		case c == '"' || c == '\'':
			if err := l.lexString(c); err != nil {
				return nil, err
			}
		default:
			if err := l.lexOp(); err != nil {
				return nil, err
			}
		}
	}
	l.toks = append(l.toks, token{kind: tokEOF, pos: l.pos})
	return l.toks, nil
}

func (l *lexer) lexIdent() {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
		l.pos++
	}
	text := l.src[start:l.pos]
	kind := tokIdent
	switch text {
	case "true", "false", "null", "undefined":
		kind = tokKeyword
	}
	l.toks = append(l.toks, token{kind: kind, text: text, pos: start})
}

func (l *lexer) lexNumber() {
	start := l.pos
	seenDot := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '.' && !seenDot && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
			seenDot = true
			l.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		l.pos++
	}
	l.toks = append(l.toks, token{kind: tokNumber, text: l.src[start:l.pos], pos: start})
}

func (l *lexer) lexString(quote byte) error {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && l.pos+1 < len(l.src) {
			next := l.src[l.pos+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(next)
			}
			l.pos += 2
			continue
		}
		if c == quote {
			l.pos++
			l.toks = append(l.toks, token{kind: tokString, text: sb.String(), pos: start})
			return nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return fmt.Errorf("expr: unterminated string at offset %d", start)
}

var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||", "=>"}

func (l *lexer) lexOp() error {
	if l.pos+1 < len(l.src) {
		two := l.src[l.pos : l.pos+2]
		if two == "==" && l.pos+2 < len(l.src) && l.src[l.pos+2] == '=' {
			// Treat strict equality as plain equality.
			l.toks = append(l.toks, token{kind: tokOp, text: "==", pos: l.pos})
			l.pos += 3
			return nil
		}
		if two == "!=" && l.pos+2 < len(l.src) && l.src[l.pos+2] == '=' {
			l.toks = append(l.toks, token{kind: tokOp, text: "!=", pos: l.pos})
			l.pos += 3
			return nil
		}
		for _, op := range twoCharOps {
			if two == op {
				l.toks = append(l.toks, token{kind: tokOp, text: op, pos: l.pos})
				l.pos += 2
				return nil
			}
		}
	}
	switch c := l.src[l.pos]; c {
	case '<', '>', '!', '.', ',', '(', ')', '[', ']':
		l.toks = append(l.toks, token{kind: tokOp, text: string(c), pos: l.pos})
		l.pos++
		return nil
	default:
		return fmt.Errorf("expr: unexpected character %q at offset %d", c, l.pos)
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
