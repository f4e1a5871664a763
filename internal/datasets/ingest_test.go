package datasets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/dataloom/internal/schema"
	"github.com/loomworks/dataloom/internal/table"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCSV_KeepsRawCellText(t *testing.T) {
	path := writeCSV(t, "TaskID,Duration,PreferredPhases,RequiredSkills\nT1,2,1-3,\"welding,coding\"\nT2,x,\"[2,4]\",solo\n")
	ds, err := LoadCSV(path)
	require.NoError(t, err)
	require.Equal(t, []string{"TaskID", "Duration", "PreferredPhases", "RequiredSkills"}, ds.Headers)
	require.Len(t, ds.Rows, 2)

	// Cells stay textual; typed views come from coercion at access time.
	require.Equal(t, "1-3", ds.Rows[0]["PreferredPhases"])
	require.Equal(t, "welding,coding", ds.Rows[0]["RequiredSkills"])
	require.Equal(t, "x", ds.Rows[1]["Duration"])
}

func TestLoadCSV_RaggedRowsFilledEmpty(t *testing.T) {
	path := writeCSV(t, "ClientID,ClientName\nC1\n")
	ds, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	require.Equal(t, "", ds.Rows[0]["ClientName"])
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("data.parquet")
	require.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeCSV(t, "")
	_, err := LoadCSV(path)
	require.Error(t, err)
}

func TestRenameHeaders(t *testing.T) {
	ds := &table.Dataset{
		Headers: []string{"client_id", "Notes"},
		Rows: []table.Row{
			{"client_id": "C1", "Notes": "a"},
		},
	}
	RenameHeaders(ds, []schema.ColumnMapping{
		{OriginalHeader: "client_id", SuggestedHeader: "ClientID", Confidence: 0.8},
	})
	require.Equal(t, []string{"ClientID", "Notes"}, ds.Headers)
	require.Equal(t, "C1", ds.Rows[0]["ClientID"])
	_, stale := ds.Rows[0]["client_id"]
	require.False(t, stale)
}

func TestOpen_ReconcilesAndRenames(t *testing.T) {
	path := writeCSV(t, "client_id,ClientName,PriorityLevel\nC1,Acme,4\n")
	m := NewManager(time.Minute, time.Minute, nil, time.Now)

	h, err := m.Open(context.Background(), path, schema.FileClients, nil)
	require.NoError(t, err)
	require.Equal(t, schema.FileClients, h.FileType)
	require.Contains(t, h.DS.Headers, "ClientID")
	require.Equal(t, "C1", h.DS.Rows[0]["ClientID"])

	// The mapping report records the rename and the still-missing headers.
	require.NotEmpty(t, h.Mapping.Mappings)
	require.Contains(t, h.Mapping.MissingColumns, "RequestedTaskIDs")
}
