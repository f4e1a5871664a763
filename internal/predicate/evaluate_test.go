package predicate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/dataloom/internal/table"
)

func row(col, val string) table.Row {
	return table.Row{col: val}
}

func TestEvaluate_Equality(t *testing.T) {
	require.True(t, Evaluate(row("PriorityLevel", "5"), Condition{Column: "PriorityLevel", Operator: OpEquals, Value: ScalarValue("5")}))
	require.False(t, Evaluate(row("PriorityLevel", "5"), Condition{Column: "PriorityLevel", Operator: OpEquals, Value: ScalarValue("05")}))
	require.True(t, Evaluate(row("PriorityLevel", "2"), Condition{Column: "PriorityLevel", Operator: OpNotEquals, Value: ScalarValue("5")}))
}

func TestEvaluate_SubstringOperatorsFoldCase(t *testing.T) {
	r := row("ClientName", "Acme Corp")
	require.True(t, Evaluate(r, Condition{Column: "ClientName", Operator: OpContains, Value: ScalarValue("acme")}))
	require.True(t, Evaluate(r, Condition{Column: "ClientName", Operator: OpStartsWith, Value: ScalarValue("AC")}))
	require.True(t, Evaluate(r, Condition{Column: "ClientName", Operator: OpEndsWith, Value: ScalarValue("CORP")}))
	require.False(t, Evaluate(r, Condition{Column: "ClientName", Operator: OpNotContains, Value: ScalarValue("corp")}))
}

func TestEvaluate_NumericComparisonNeverThrows(t *testing.T) {
	require.True(t, Evaluate(row("Duration", "3"), Condition{Column: "Duration", Operator: OpGreaterThan, Value: ScalarValue("2")}))
	require.True(t, Evaluate(row("Duration", "1"), Condition{Column: "Duration", Operator: OpLessThan, Value: ScalarValue("2")}))

	// Unparsable sides make the comparison false, on both operators.
	require.False(t, Evaluate(row("Duration", "soon"), Condition{Column: "Duration", Operator: OpGreaterThan, Value: ScalarValue("2")}))
	require.False(t, Evaluate(row("Duration", "soon"), Condition{Column: "Duration", Operator: OpLessThan, Value: ScalarValue("2")}))
	require.False(t, Evaluate(row("Duration", "3"), Condition{Column: "Duration", Operator: OpGreaterThan, Value: ScalarValue("lots")}))
}

func TestEvaluate_MissingColumnComparesAsEmpty(t *testing.T) {
	r := row("Other", "x")
	require.True(t, Evaluate(r, Condition{Column: "ClientName", Operator: OpEquals, Value: ScalarValue("")}))
	require.False(t, Evaluate(r, Condition{Column: "ClientName", Operator: OpGreaterThan, Value: ScalarValue("0")}))
}

func TestEvaluate_UnknownOperatorFailsClosed(t *testing.T) {
	require.False(t, Evaluate(row("A", "x"), Condition{Column: "A", Operator: Operator("matches_regex"), Value: ScalarValue("x")}))
}

func TestEvaluate_InWithScalarBehavesLikeEquals(t *testing.T) {
	require.True(t, Evaluate(row("GroupTag", "alpha"), Condition{Column: "GroupTag", Operator: OpIn, Value: ScalarValue("alpha")}))
	require.False(t, Evaluate(row("GroupTag", "alpha"), Condition{Column: "GroupTag", Operator: OpNotIn, Value: ScalarValue("alpha")}))
}

// Membership property: `in` holds iff the row's string value equals some
// element of the list (string compare, no coercion), and `not_in` is its
// complement.
func TestEvaluate_InMembershipProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("in iff member", prop.ForAll(
		func(cell string, set []string) bool {
			r := row("C", cell)
			cond := Condition{Column: "C", Operator: OpIn, Value: ListValue(set...)}
			got := Evaluate(r, cond)
			want := false
			for _, s := range set {
				if s == cell {
					want = true
				}
			}
			inverse := Evaluate(r, Condition{Column: "C", Operator: OpNotIn, Value: ListValue(set...)})
			return got == want && inverse == !want
		},
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// Scenario: PreferredPhases conditions test the literal string, not the
// coerced phase range. "1-4" contains "1" and does not contain "3".
func TestEvaluateAll_StringLevelPhaseConditions(t *testing.T) {
	r := row("PreferredPhases", "1-4")
	conds := []Condition{
		{Column: "PreferredPhases", Operator: OpContains, Value: ScalarValue("1")},
		{Column: "PreferredPhases", Operator: OpNotContains, Value: ScalarValue("3")},
	}
	require.True(t, EvaluateAll(r, conds))
}

func TestEvaluateAll_EmptyListMatches(t *testing.T) {
	require.True(t, EvaluateAll(row("A", "x"), nil))
	require.True(t, EvaluateAll(row("A", "x"), []Condition{}))
}

func TestEvaluateAll_ShortCircuitsInOrder(t *testing.T) {
	r := row("A", "x")
	conds := []Condition{
		{Column: "A", Operator: OpEquals, Value: ScalarValue("y")},
		{Column: "A", Operator: Operator("bogus"), Value: ScalarValue("x")},
	}
	require.False(t, EvaluateAll(r, conds))
}

// A list value on a string-level operator compares against the same ","
// join CellString uses for list cells, so both sides render identically.
func TestEvaluate_ListValueRendersLikeListCell(t *testing.T) {
	r := table.Row{"Skills": []string{"welding", "coding"}}
	require.True(t, Evaluate(r, Condition{Column: "Skills", Operator: OpEquals, Value: ListValue("welding", "coding")}))
	require.True(t, Evaluate(r, Condition{Column: "Skills", Operator: OpContains, Value: ListValue("welding", "coding")}))
	require.Equal(t, "welding,coding", ListValue("welding", "coding").String())
}

func TestValue_JSONRoundTrip(t *testing.T) {
	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte(`["a","b",3]`)))
	require.True(t, v.IsList)
	require.Equal(t, []string{"a", "b", "3"}, v.List)

	var s Value
	require.NoError(t, s.UnmarshalJSON([]byte(`4`)))
	require.False(t, s.IsList)
	require.Equal(t, "4", s.Scalar)
}
