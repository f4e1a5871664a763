// Package predicate implements the condition language used to select rows:
// a single column/operator/value clause, combined into AND lists.
package predicate

import (
	"encoding/json"
	"strings"

	"github.com/loomworks/dataloom/internal/table"
)

// Operator enumerates the comparison kinds of the condition language.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// Operators lists every known operator, in the order the instruction
// prompts document them.
var Operators = []Operator{
	OpEquals, OpNotEquals, OpContains, OpNotContains,
	OpStartsWith, OpEndsWith, OpGreaterThan, OpLessThan,
	OpIn, OpNotIn,
}

// Value is the condition's right-hand side: a scalar string or a string
// list. The tag makes the scalar/list split explicit instead of carrying
// an untyped any through the evaluator.
type Value struct {
	List   []string
	IsList bool
	Scalar string
}

// ScalarValue wraps a single string as a condition value.
func ScalarValue(s string) Value { return Value{Scalar: s} }

// ListValue wraps a string list as a condition value.
func ListValue(items ...string) Value { return Value{List: items, IsList: true} }

// UnmarshalJSON accepts either a JSON scalar or an array of scalars, the
// two shapes the instruction source emits.
func (v *Value) UnmarshalJSON(data []byte) error {
	var arr []any
	if err := json.Unmarshal(data, &arr); err == nil {
		v.IsList = true
		v.List = make([]string, len(arr))
		for i, e := range arr {
			v.List[i] = table.CellString(e)
		}
		return nil
	}
	var scalar any
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	v.IsList = false
	v.Scalar = table.CellString(scalar)
	return nil
}

// MarshalJSON emits the value in the same shape it was parsed from.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Scalar)
}

// String renders the value in its comparable string form: lists join with
// "," to mirror how CellString renders list-valued cells, so string-level
// operators see the same text on both sides.
func (v Value) String() string {
	if v.IsList {
		return strings.Join(v.List, ",")
	}
	return v.Scalar
}

// Condition is one predicate clause over a single column.
type Condition struct {
	Column   string   `json:"column" validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    Value    `json:"value"`
}
