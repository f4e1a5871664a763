package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testReconciler() *Reconciler {
	return NewReconciler(DefaultRegistry())
}

// Scenario: client_id maps to ClientID by substring at 0.8; a bare "Name"
// is ambiguous against ClientName and stays unmapped rather than guessed.
func TestReconcile_LocalSynthesis(t *testing.T) {
	r := testReconciler()
	res := r.Reconcile([]string{"client_id", "Name"}, []string{"ClientID", "ClientName"}, nil)

	require.Len(t, res.Mappings, 1)
	m := res.Mappings[0]
	require.Equal(t, "client_id", m.OriginalHeader)
	require.Equal(t, "ClientID", m.SuggestedHeader)
	require.InDelta(t, 0.8, m.Confidence, 1e-9)

	require.Equal(t, []string{"Name"}, res.UnmappedColumns)
	require.Equal(t, []string{"ClientName"}, res.MissingColumns)
	require.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestSynthesize_ExactAndPattern(t *testing.T) {
	r := testReconciler()

	cands := r.Synthesize([]string{"ClientID"}, []string{"ClientID"})
	require.Len(t, cands, 1)
	require.InDelta(t, 1.0, cands[0].Confidence, 1e-9)

	cands = r.Synthesize([]string{"customer_id"}, []string{"ClientID"})
	require.Len(t, cands, 1)
	require.Equal(t, "ClientID", cands[0].SuggestedHeader)
	require.InDelta(t, 0.75, cands[0].Confidence, 1e-9)

	// Below the synthesis threshold nothing is proposed.
	cands = r.Synthesize([]string{"Remarks"}, []string{"ClientID"})
	require.Empty(t, cands)
}

// Accepted mappings form a bijective partial matching: no source and no
// target appears twice, first accepted wins in input order.
func TestReconcile_OneToOneFirstAcceptedWins(t *testing.T) {
	r := testReconciler()
	current := []string{"id", "identifier"}
	required := []string{"ClientID"}
	candidates := []ColumnMapping{
		{OriginalHeader: "id", SuggestedHeader: "ClientID", Confidence: 0.9},
		{OriginalHeader: "identifier", SuggestedHeader: "ClientID", Confidence: 0.95},
		{OriginalHeader: "id", SuggestedHeader: "ClientID", Confidence: 0.99},
	}
	res := r.Reconcile(current, required, candidates)

	require.Len(t, res.Mappings, 1)
	require.Equal(t, "id", res.Mappings[0].OriginalHeader)
	require.InDelta(t, 0.9, res.Mappings[0].Confidence, 1e-9)

	seenSource := map[string]bool{}
	seenTarget := map[string]bool{}
	for _, m := range res.Mappings {
		require.False(t, seenSource[m.OriginalHeader])
		require.False(t, seenTarget[m.SuggestedHeader])
		seenSource[m.OriginalHeader] = true
		seenTarget[m.SuggestedHeader] = true
	}
}

func TestReconcile_RejectsUnknownHeadersAndLowConfidence(t *testing.T) {
	r := testReconciler()
	current := []string{"client_id"}
	required := []string{"ClientID"}
	candidates := []ColumnMapping{
		{OriginalHeader: "ghost", SuggestedHeader: "ClientID", Confidence: 0.99},
		{OriginalHeader: "client_id", SuggestedHeader: "NoSuchHeader", Confidence: 0.99},
		{OriginalHeader: "client_id", SuggestedHeader: "ClientID", Confidence: 0.49},
	}
	res := r.Reconcile(current, required, candidates)

	require.Empty(t, res.Mappings)
	require.Equal(t, []string{"client_id"}, res.UnmappedColumns)
	require.Equal(t, []string{"ClientID"}, res.MissingColumns)
	require.Zero(t, res.Confidence)
}

func TestReconcile_ConfidenceIsMeanOfAccepted(t *testing.T) {
	r := testReconciler()
	current := []string{"a", "b"}
	required := []string{"ClientID", "ClientName"}
	candidates := []ColumnMapping{
		{OriginalHeader: "a", SuggestedHeader: "ClientID", Confidence: 0.6},
		{OriginalHeader: "b", SuggestedHeader: "ClientName", Confidence: 1.0},
	}
	res := r.Reconcile(current, required, candidates)
	require.Len(t, res.Mappings, 2)
	require.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestRegistry_RowHandles(t *testing.T) {
	require.Equal(t, "client", FileClients.RowHandle())
	require.Equal(t, "worker", FileWorkers.RowHandle())
	require.Equal(t, "task", FileTasks.RowHandle())
	require.True(t, FileClients.Valid())
	require.False(t, FileType("invoices").Valid())
}

func TestRequiredHeaders(t *testing.T) {
	r := testReconciler()
	headers, err := r.RequiredHeaders(FileTasks)
	require.NoError(t, err)
	require.Contains(t, headers, "PreferredPhases")

	_, err = r.RequiredHeaders(FileType("bogus"))
	require.Error(t, err)
}
