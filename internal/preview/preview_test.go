package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/dataloom/internal/plan"
	"github.com/loomworks/dataloom/internal/table"
)

func idx(i int) *int { return &i }

func TestRender_UpdateContainsLiteralOldAndNewValues(t *testing.T) {
	ds := &table.Dataset{
		Headers: []string{"ClientID", "PriorityLevel"},
		Rows:    []table.Row{{"ClientID": "C1", "PriorityLevel": "2"}},
	}
	mods := []plan.Modification{
		{Operation: plan.OpUpdate, RowIndex: idx(0), Data: map[string]any{"PriorityLevel": "4"}},
	}

	lines := Render(mods, ds)
	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "Row 1: update PriorityLevel")
	require.Contains(t, joined, `"2"`)
	require.Contains(t, joined, `"4"`)
}

func TestRender_UpdateFormatsArraysAndObjects(t *testing.T) {
	ds := &table.Dataset{
		Headers: []string{"Skills", "AttributesJSON"},
		Rows: []table.Row{{
			"Skills":         []string{"welding", "coding"},
			"AttributesJSON": map[string]any{"vip": true},
		}},
	}
	mods := []plan.Modification{
		{Operation: plan.OpUpdate, RowIndex: idx(0), Data: map[string]any{
			"Skills":         "plumbing",
			"AttributesJSON": "{}",
		}},
	}

	joined := strings.Join(Render(mods, ds), "\n")
	require.Contains(t, joined, "[welding, coding]")
	require.Contains(t, joined, `{\"vip\":true}`)
	require.Contains(t, joined, "plumbing")
}

func TestRender_DeleteIdentifiesRowOneBased(t *testing.T) {
	ds := &table.Dataset{
		Headers: []string{"ClientID", "ClientName"},
		Rows: []table.Row{
			{"ClientID": "C1", "ClientName": "Acme"},
			{"ClientID": "C2", "ClientName": "Bolt"},
		},
	}
	lines := Render([]plan.Modification{{Operation: plan.OpDelete, RowIndex: idx(1)}}, ds)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "Row 2: delete")
	require.Contains(t, lines[0], "C2")
}

func TestRender_AddListsFieldValuePairs(t *testing.T) {
	ds := &table.Dataset{Headers: []string{"ClientID", "ClientName"}}
	mods := []plan.Modification{
		{Operation: plan.OpAdd, NewRow: table.Row{"ClientID": "C9", "ClientName": "Nine", "Extra": "x"}},
	}
	lines := Render(mods, ds)
	require.Equal(t, "Add row:", lines[0])
	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, `ClientID: "C9"`)
	require.Contains(t, joined, `ClientName: "Nine"`)
	require.Contains(t, joined, `Extra: "x"`)
}

func TestRender_BlocksFollowModificationOrder(t *testing.T) {
	ds := &table.Dataset{
		Headers: []string{"A"},
		Rows:    []table.Row{{"A": "1"}, {"A": "2"}},
	}
	mods := []plan.Modification{
		{Operation: plan.OpDelete, RowIndex: idx(1)},
		{Operation: plan.OpUpdate, RowIndex: idx(0), Data: map[string]any{"A": "9"}},
	}
	lines := Render(mods, ds)
	require.True(t, strings.HasPrefix(lines[0], "Row 2: delete"))
	require.True(t, strings.HasPrefix(lines[1], "Row 1: update"))
}

func TestRender_LongTextGetsLineDiff(t *testing.T) {
	before := "alpha\nbravo\ncharlie"
	after := "alpha\ndelta\ncharlie"
	ds := &table.Dataset{
		Headers: []string{"Notes"},
		Rows:    []table.Row{{"Notes": before}},
	}
	mods := []plan.Modification{
		{Operation: plan.OpUpdate, RowIndex: idx(0), Data: map[string]any{"Notes": after}},
	}
	joined := strings.Join(Render(mods, ds), "\n")
	require.Contains(t, joined, "- bravo")
	require.Contains(t, joined, "+ delta")
}
