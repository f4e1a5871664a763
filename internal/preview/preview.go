// Package preview renders planned modifications as human-readable
// before/after text. It performs no validation: input is assumed to be a
// planner-produced list that already passed bounds checking.
package preview

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/loomworks/dataloom/internal/plan"
	"github.com/loomworks/dataloom/internal/table"
)

// longValueThreshold is the length past which changed text values are
// additionally rendered as a line diff.
const longValueThreshold = 120

// Render produces one block of lines per modification, in modification
// order, against the original dataset snapshot.
func Render(mods []plan.Modification, ds *table.Dataset) []string {
	lines := []string{}
	for _, m := range mods {
		switch m.Operation {
		case plan.OpUpdate:
			lines = append(lines, renderUpdate(m, ds)...)
		case plan.OpDelete:
			lines = append(lines, renderDelete(m, ds)...)
		case plan.OpAdd:
			lines = append(lines, renderAdd(m, ds)...)
		}
	}
	return lines
}

func renderUpdate(m plan.Modification, ds *table.Dataset) []string {
	row := table.Row{}
	if m.RowIndex != nil && *m.RowIndex >= 0 && *m.RowIndex < len(ds.Rows) {
		row = ds.Rows[*m.RowIndex]
	}
	fields := make([]string, 0, len(m.Data))
	for f := range m.Data {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := []string{fmt.Sprintf("Row %d: update %s", displayIndex(m), strings.Join(fields, ", "))}
	for _, f := range fields {
		before := table.FormatCell(row[f])
		after := table.FormatCell(m.Data[f])
		out = append(out, fmt.Sprintf("  %s: %q -> %q", f, before, after))
		if needsLineDiff(before, after) {
			out = append(out, lineDiff(before, after)...)
		}
	}
	return out
}

func renderDelete(m plan.Modification, ds *table.Dataset) []string {
	summary := ""
	if m.RowIndex != nil && *m.RowIndex >= 0 && *m.RowIndex < len(ds.Rows) {
		summary = rowSummary(ds.Rows[*m.RowIndex], ds.Headers)
	}
	line := fmt.Sprintf("Row %d: delete", displayIndex(m))
	if summary != "" {
		line += " (" + summary + ")"
	}
	return []string{line}
}

func renderAdd(m plan.Modification, ds *table.Dataset) []string {
	out := []string{"Add row:"}
	// Dataset header order first, then any extra fields alphabetically.
	seen := map[string]bool{}
	for _, h := range ds.Headers {
		if v, ok := m.NewRow[h]; ok {
			out = append(out, fmt.Sprintf("  %s: %q", h, table.FormatCell(v)))
			seen[h] = true
		}
	}
	extras := []string{}
	for f := range m.NewRow {
		if !seen[f] {
			extras = append(extras, f)
		}
	}
	sort.Strings(extras)
	for _, f := range extras {
		out = append(out, fmt.Sprintf("  %s: %q", f, table.FormatCell(m.NewRow[f])))
	}
	return out
}

// displayIndex converts the zero-based plan index to the 1-based form
// users see in their spreadsheet tools.
func displayIndex(m plan.Modification) int {
	if m.RowIndex == nil {
		return 0
	}
	return *m.RowIndex + 1
}

// rowSummary renders the first couple of cells so a delete line identifies
// more than a bare position.
func rowSummary(row table.Row, headers []string) string {
	parts := []string{}
	for _, h := range headers {
		if len(parts) == 2 {
			break
		}
		if v := table.FormatCell(row[h]); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", h, v))
		}
	}
	return strings.Join(parts, ", ")
}

func needsLineDiff(before, after string) bool {
	if before == "" || after == "" {
		return false
	}
	return strings.Contains(before, "\n") || strings.Contains(after, "\n") ||
		len(before) > longValueThreshold || len(after) > longValueThreshold
}

// lineDiff renders a compact removed/added view of a long text change.
func lineDiff(before, after string) []string {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before+"\n", after+"\n")
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	out := []string{}
	for _, d := range diffs {
		for _, line := range splitDiffLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				out = append(out, "    - "+line)
			case diffmatchpatch.DiffInsert:
				out = append(out, "    + "+line)
			}
		}
	}
	return out
}

func splitDiffLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
