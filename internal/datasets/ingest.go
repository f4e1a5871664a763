package datasets

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/loomworks/dataloom/internal/schema"
	"github.com/loomworks/dataloom/internal/table"
)

// Load reads a dataset from disk, dispatching on extension. The first row is
// taken as the header row. Cells keep their raw string form; coercion into
// semantic types happens on demand at the point of typed access.
func Load(path string) (*table.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".xlsx":
		return LoadXLSX(path)
	}
	return nil, fmt.Errorf("datasets: unsupported format %q", filepath.Ext(path))
}

// LoadCSV parses a comma-separated file into a dataset.
func LoadCSV(path string) (*table.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("datasets: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows tolerated; missing cells become empty
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("datasets: parse csv %s: %w", path, err)
	}
	return fromRecords(records)
}

// LoadXLSX reads the first sheet of a workbook into a dataset.
func LoadXLSX(path string) (*table.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("datasets: open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("datasets: workbook %s has no sheets", path)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("datasets: read sheet %s: %w", sheets[0], err)
	}
	return fromRecords(records)
}

// fromRecords builds a dataset from raw string records: header row first,
// then one row per record. Short records are padded with empty cells.
func fromRecords(records [][]string) (*table.Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("datasets: file is empty")
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	ds := &table.Dataset{Headers: headers, Rows: make([]table.Row, 0, len(records)-1)}
	for _, rec := range records[1:] {
		row := make(table.Row, len(headers))
		for i, h := range headers {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			row[h] = cell
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// RenameHeaders applies accepted column mappings in place: the header list
// entry and the key in every row move from the original to the suggested
// name. Unmapped columns are untouched.
func RenameHeaders(ds *table.Dataset, mappings []schema.ColumnMapping) {
	if len(mappings) == 0 {
		return
	}
	rename := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.OriginalHeader != m.SuggestedHeader {
			rename[m.OriginalHeader] = m.SuggestedHeader
		}
	}
	if len(rename) == 0 {
		return
	}
	for i, h := range ds.Headers {
		if to, ok := rename[h]; ok {
			ds.Headers[i] = to
		}
	}
	for _, row := range ds.Rows {
		for from, to := range rename {
			if v, ok := row[from]; ok {
				row[to] = v
				delete(row, from)
			}
		}
	}
}
