package registry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/dataloom/internal/datasets"
	"github.com/loomworks/dataloom/internal/predicate"
	"github.com/loomworks/dataloom/internal/runtime"
	"github.com/loomworks/dataloom/internal/schema"
	"github.com/loomworks/dataloom/internal/table"
)

func searchFixture(t *testing.T) (Deps, *datasets.Handle) {
	t.Helper()
	ds := &table.Dataset{
		Headers: []string{"ClientID", "ClientName", "PriorityLevel"},
		Rows: []table.Row{
			{"ClientID": "C1", "ClientName": "Acme", "PriorityLevel": "5"},
			{"ClientID": "C2", "ClientName": "Globex", "PriorityLevel": "4"},
			{"ClientID": "C3", "ClientName": "Initech", "PriorityLevel": "2"},
		},
	}
	m := datasets.NewManager(0, 0, nil, nil)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	h, err := m.Adopt(context.Background(), ds, schema.FileClients)
	require.NoError(t, err)
	return Deps{Manager: m, Log: zerolog.Nop()}, h
}

// A search that matched via the instruction fallback must keep matching the
// same rows on continuation pages: the cursor carries the instruction text,
// not just the rejected expression.
func TestSearchPage_FallbackSurvivesCursorResume(t *testing.T) {
	deps, h := searchFixture(t)
	limits := runtime.NewLimits(2, 2)

	page1, res := searchPage(context.Background(), deps, limits, SearchRowsInput{
		DatasetID:  h.ID,
		Expression: "%%%",
		Query:      "clients with priority level greater than 3",
		Rows:       1,
	})
	require.Nil(t, res)
	require.Equal(t, "fallback", page1.Source)
	require.Equal(t, []int{0}, page1.Indices)
	require.Equal(t, 2, page1.Meta.Total)
	require.True(t, page1.Meta.Truncated)
	require.NotEmpty(t, page1.Meta.NextCursor)

	page2, res := searchPage(context.Background(), deps, limits, SearchRowsInput{Cursor: page1.Meta.NextCursor})
	require.Nil(t, res)
	require.Equal(t, "fallback", page2.Source)
	require.Equal(t, []int{1}, page2.Indices)
	require.Equal(t, 2, page2.Meta.Total)
	require.False(t, page2.Meta.Truncated)
}

// A conditions-driven search resumes from the cursor alone; the serialized
// conditions ride in the token.
func TestSearchPage_ConditionsResumeFromCursorAlone(t *testing.T) {
	deps, h := searchFixture(t)
	limits := runtime.NewLimits(2, 2)

	conds := []predicate.Condition{
		{Column: "PriorityLevel", Operator: predicate.OpGreaterThan, Value: predicate.ScalarValue("3")},
	}
	page1, res := searchPage(context.Background(), deps, limits, SearchRowsInput{
		DatasetID:  h.ID,
		Conditions: conds,
		Rows:       1,
	})
	require.Nil(t, res)
	require.Equal(t, "conditions", page1.Source)
	require.Equal(t, []int{0}, page1.Indices)
	require.NotEmpty(t, page1.Meta.NextCursor)

	page2, res := searchPage(context.Background(), deps, limits, SearchRowsInput{Cursor: page1.Meta.NextCursor})
	require.Nil(t, res)
	require.Equal(t, "conditions", page2.Source)
	require.Equal(t, []int{1}, page2.Indices)
	require.False(t, page2.Meta.Truncated)
}

func TestSearchPage_ExpressionResume(t *testing.T) {
	deps, h := searchFixture(t)
	limits := runtime.NewLimits(2, 2)

	page1, res := searchPage(context.Background(), deps, limits, SearchRowsInput{
		DatasetID:  h.ID,
		Expression: "client.PriorityLevel > 3",
		Rows:       1,
	})
	require.Nil(t, res)
	require.Equal(t, "expression", page1.Source)
	require.Equal(t, []int{0}, page1.Indices)
	require.NotEmpty(t, page1.Meta.NextCursor)

	page2, res := searchPage(context.Background(), deps, limits, SearchRowsInput{Cursor: page1.Meta.NextCursor})
	require.Nil(t, res)
	require.Equal(t, "expression", page2.Source)
	require.Equal(t, []int{1}, page2.Indices)
}
