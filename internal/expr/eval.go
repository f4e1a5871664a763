package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loomworks/dataloom/internal/table"
)

type valueKind int

const (
	kNull valueKind = iota
	kBool
	kNum
	kStr
	kList
	kRow
)

// value is the evaluator's runtime representation. Rows enter as kRow and
// field access coerces the addressed cell via the column's semantic type.
type value struct {
	kind valueKind
	b    bool
	num  float64
	str  string
	list []value
	row  table.Row
}

func nullValue() value        { return value{kind: kNull} }
func boolValue(b bool) value  { return value{kind: kBool, b: b} }
func stringValue(s string) value {
	return value{kind: kStr, str: s}
}

func numberValue(text string) value {
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return value{kind: kNum}
	}
	return value{kind: kNum, num: n}
}

func floatValue(n float64) value { return value{kind: kNum, num: n} }

func rowValue(r table.Row) value { return value{kind: kRow, row: r} }

// fieldValue coerces one cell and lifts the result into the evaluator.
func fieldValue(column string, raw any) value {
	cv := table.Coerce(column, raw)
	switch cv.Kind {
	case table.KindNumber:
		return floatValue(cv.Number)
	case table.KindTags:
		out := make([]value, len(cv.Tags))
		for i, t := range cv.Tags {
			out[i] = stringValue(t)
		}
		return value{kind: kList, list: out}
	case table.KindPhases:
		out := make([]value, len(cv.Phases))
		for i, p := range cv.Phases {
			out[i] = floatValue(float64(p))
		}
		return value{kind: kList, list: out}
	default:
		if raw == nil {
			return nullValue()
		}
		return stringValue(cv.Text)
	}
}

type env struct {
	vars map[string]value
}

func (e *env) bind(name string, v value) *env {
	out := &env{vars: make(map[string]value, len(e.vars)+1)}
	for k, val := range e.vars {
		out.vars[k] = val
	}
	out.vars[name] = v
	return out
}

// eval walks the AST. Any type misuse is an error; the caller decides
// whether that error rejects the candidate predicate (test invocation) or
// just marks one row as non-matching (bulk execution).
func eval(n node, e *env) (value, error) {
	switch t := n.(type) {
	case litNode:
		return t.val, nil

	case identNode:
		v, ok := e.vars[t.name]
		if !ok {
			return nullValue(), fmt.Errorf("expr: unbound identifier %q", t.name)
		}
		return v, nil

	case arrayNode:
		out := make([]value, len(t.elems))
		for i, el := range t.elems {
			v, err := eval(el, e)
			if err != nil {
				return nullValue(), err
			}
			out[i] = v
		}
		return value{kind: kList, list: out}, nil

	case selectorNode:
		recv, err := eval(t.recv, e)
		if err != nil {
			return nullValue(), err
		}
		return selectField(recv, t.name)

	case unaryNode:
		x, err := eval(t.x, e)
		if err != nil {
			return nullValue(), err
		}
		return boolValue(!truthy(x)), nil

	case binaryNode:
		return evalBinary(t, e)

	case callNode:
		return evalCall(t, e)

	case lambdaNode:
		return nullValue(), fmt.Errorf("expr: lambda only allowed as argument to some()")
	}
	return nullValue(), fmt.Errorf("expr: unsupported node")
}

func selectField(recv value, name string) (value, error) {
	switch recv.kind {
	case kRow:
		raw, ok := recv.row[name]
		if !ok {
			return nullValue(), nil
		}
		return fieldValue(name, raw), nil
	case kStr:
		if name == "length" {
			return floatValue(float64(len(recv.str))), nil
		}
	case kList:
		if name == "length" {
			return floatValue(float64(len(recv.list))), nil
		}
	case kNull:
		return nullValue(), fmt.Errorf("expr: cannot read %q of null", name)
	}
	return nullValue(), fmt.Errorf("expr: unknown property %q", name)
}

func evalBinary(n binaryNode, e *env) (value, error) {
	// Short-circuit logical operators first.
	if n.op == "&&" || n.op == "||" {
		lhs, err := eval(n.lhs, e)
		if err != nil {
			return nullValue(), err
		}
		if n.op == "&&" && !truthy(lhs) {
			return boolValue(false), nil
		}
		if n.op == "||" && truthy(lhs) {
			return boolValue(true), nil
		}
		rhs, err := eval(n.rhs, e)
		if err != nil {
			return nullValue(), err
		}
		return boolValue(truthy(rhs)), nil
	}

	lhs, err := eval(n.lhs, e)
	if err != nil {
		return nullValue(), err
	}
	rhs, err := eval(n.rhs, e)
	if err != nil {
		return nullValue(), err
	}

	switch n.op {
	case "==":
		return boolValue(looseEqual(lhs, rhs)), nil
	case "!=":
		return boolValue(!looseEqual(lhs, rhs)), nil
	case "<", "<=", ">", ">=":
		ln, lok := asNumber(lhs)
		rn, rok := asNumber(rhs)
		if !lok || !rok {
			return nullValue(), fmt.Errorf("expr: non-numeric operand for %q", n.op)
		}
		switch n.op {
		case "<":
			return boolValue(ln < rn), nil
		case "<=":
			return boolValue(ln <= rn), nil
		case ">":
			return boolValue(ln > rn), nil
		default:
			return boolValue(ln >= rn), nil
		}
	}
	return nullValue(), fmt.Errorf("expr: unsupported operator %q", n.op)
}

func evalCall(n callNode, e *env) (value, error) {
	recv, err := eval(n.recv, e)
	if err != nil {
		return nullValue(), err
	}

	switch n.method {
	case "toLowerCase":
		if recv.kind != kStr || len(n.args) != 0 {
			return nullValue(), fmt.Errorf("expr: toLowerCase expects a string receiver and no arguments")
		}
		return stringValue(strings.ToLower(recv.str)), nil

	case "toUpperCase":
		if recv.kind != kStr || len(n.args) != 0 {
			return nullValue(), fmt.Errorf("expr: toUpperCase expects a string receiver and no arguments")
		}
		return stringValue(strings.ToUpper(recv.str)), nil

	case "startsWith", "endsWith":
		if recv.kind != kStr || len(n.args) != 1 {
			return nullValue(), fmt.Errorf("expr: %s expects a string receiver and one argument", n.method)
		}
		arg, err := eval(n.args[0], e)
		if err != nil {
			return nullValue(), err
		}
		if arg.kind != kStr {
			return nullValue(), fmt.Errorf("expr: %s expects a string argument", n.method)
		}
		if n.method == "startsWith" {
			return boolValue(strings.HasPrefix(recv.str, arg.str)), nil
		}
		return boolValue(strings.HasSuffix(recv.str, arg.str)), nil

	case "includes":
		if len(n.args) != 1 {
			return nullValue(), fmt.Errorf("expr: includes expects one argument")
		}
		arg, err := eval(n.args[0], e)
		if err != nil {
			return nullValue(), err
		}
		switch recv.kind {
		case kStr:
			if arg.kind != kStr {
				return nullValue(), fmt.Errorf("expr: string includes expects a string argument")
			}
			return boolValue(strings.Contains(recv.str, arg.str)), nil
		case kList:
			for _, el := range recv.list {
				if looseEqual(el, arg) {
					return boolValue(true), nil
				}
			}
			return boolValue(false), nil
		case kNull:
			return nullValue(), fmt.Errorf("expr: includes on null")
		}
		return nullValue(), fmt.Errorf("expr: includes expects a string or list receiver")

	case "some":
		if recv.kind != kList {
			return nullValue(), fmt.Errorf("expr: some expects a list receiver")
		}
		if len(n.args) != 1 {
			return nullValue(), fmt.Errorf("expr: some expects one lambda argument")
		}
		lam, ok := n.args[0].(lambdaNode)
		if !ok {
			return nullValue(), fmt.Errorf("expr: some expects a lambda argument")
		}
		for _, el := range recv.list {
			res, err := eval(lam.body, e.bind(lam.param, el))
			if err != nil {
				return nullValue(), err
			}
			if truthy(res) {
				return boolValue(true), nil
			}
		}
		return boolValue(false), nil
	}

	return nullValue(), fmt.Errorf("expr: unknown method %q", n.method)
}

// looseEqual compares with numeric coercion across the string/number
// boundary, since cell values and literals routinely disagree on type.
func looseEqual(a, b value) bool {
	if a.kind == b.kind {
		switch a.kind {
		case kNull:
			return true
		case kBool:
			return a.b == b.b
		case kNum:
			return a.num == b.num
		case kStr:
			return a.str == b.str
		}
		return false
	}
	if an, aok := asNumber(a); aok {
		if bn, bok := asNumber(b); bok {
			return an == bn
		}
	}
	return false
}

func asNumber(v value) (float64, bool) {
	switch v.kind {
	case kNum:
		return v.num, true
	case kStr:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case kBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func truthy(v value) bool {
	switch v.kind {
	case kBool:
		return v.b
	case kNum:
		return v.num != 0
	case kStr:
		return v.str != ""
	case kList:
		return true
	case kRow:
		return true
	}
	return false
}
