package predicate

import (
	"strconv"
	"strings"

	"github.com/loomworks/dataloom/internal/table"
)

// Evaluate reports whether a single condition holds for the row. The row
// value is compared in its string form, independent of type coercion:
// conditions operate on literal cell content to keep the language total.
// Unknown operators fail closed rather than erroring.
func Evaluate(row table.Row, cond Condition) bool {
	cell := table.CellString(row[cond.Column])

	switch cond.Operator {
	case OpEquals:
		return cell == cond.Value.String()
	case OpNotEquals:
		return cell != cond.Value.String()
	case OpContains:
		return containsFold(cell, cond.Value.String())
	case OpNotContains:
		return !containsFold(cell, cond.Value.String())
	case OpStartsWith:
		return hasPrefixFold(cell, cond.Value.String())
	case OpEndsWith:
		return hasSuffixFold(cell, cond.Value.String())
	case OpGreaterThan:
		return compareNumeric(cell, cond.Value.String()) > 0
	case OpLessThan:
		return compareNumeric(cell, cond.Value.String()) < 0
	case OpIn:
		return membership(cell, cond.Value)
	case OpNotIn:
		return !membership(cell, cond.Value)
	default:
		return false
	}
}

// EvaluateAll reports whether every condition holds (AND semantics,
// short-circuiting in list order). An empty list matches every row.
func EvaluateAll(row table.Row, conds []Condition) bool {
	for _, c := range conds {
		if !Evaluate(row, c) {
			return false
		}
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func hasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
}

func hasSuffixFold(s, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(s), strings.ToLower(suffix))
}

// compareNumeric three-way compares two strings as floats. Either side
// failing to parse yields 0, so both greater_than and less_than come out
// false instead of raising.
func compareNumeric(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA != nil || errB != nil {
		return 0
	}
	switch {
	case fa > fb:
		return 1
	case fa < fb:
		return -1
	default:
		return 0
	}
}

// membership tests the cell against a list value by string equality
// against any element; a scalar value degrades to plain equality.
func membership(cell string, v Value) bool {
	if !v.IsList {
		return cell == v.Scalar
	}
	for _, item := range v.List {
		if cell == item {
			return true
		}
	}
	return false
}
