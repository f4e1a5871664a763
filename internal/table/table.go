// Package table defines the in-memory dataset model shared by the planning,
// filtering, and preview components, plus per-column type coercion of raw
// cell values into their semantic types.
package table

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Row maps a column name to its raw cell value. Values are usually strings
// as ingested, but may already be numbers or structured values when a row
// was produced programmatically.
type Row map[string]any

// Dataset is an ordered table: unique headers plus an ordered row sequence.
// Row identity is positional. A Dataset handed to the engine is treated as
// an immutable snapshot for the duration of a planning or filtering pass.
type Dataset struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Clone returns a deep copy suitable for mutation without disturbing the
// snapshot the plan was computed against.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Headers: append([]string(nil), d.Headers...),
		Rows:    make([]Row, len(d.Rows)),
	}
	for i, r := range d.Rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// HasHeader reports whether name is one of the dataset's headers.
func (d *Dataset) HasHeader(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// CellString renders a raw cell value in its string form, the form the
// predicate language compares against. Nil cells render as "".
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// Avoid the %v exponent form for large spreadsheet numbers.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// FormatCell renders a cell value for human-readable previews: nil becomes
// the empty string, arrays become a bracketed comma list, structured values
// become their JSON text, and everything else is converted to a string.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return "[" + strings.Join(t, ", ") + "]"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = FormatCell(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	case float64:
		return CellString(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
