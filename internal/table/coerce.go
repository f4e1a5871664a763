package table

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags the semantic type a raw cell coerced into.
type Kind int

const (
	// KindText is the pass-through form: the raw value kept as a string.
	KindText Kind = iota
	// KindNumber is a parsed numeric value.
	KindNumber
	// KindTags is a list of trimmed, non-empty strings.
	KindTags
	// KindPhases is a list of integer phase numbers.
	KindPhases
)

// CoercedValue is the typed result of coercing one raw cell.
type CoercedValue struct {
	Kind   Kind
	Number float64
	Text   string
	Tags   []string
	Phases []int
}

// Coerce converts a raw cell value into its semantic type based on the
// column name. Rules are checked by case-insensitive substring of the
// column name; the most specific rule wins and at most one rule fires.
// Nil or empty raw values pass through unchanged.
func Coerce(column string, raw any) CoercedValue {
	s, isStr := raw.(string)
	if raw == nil || (isStr && s == "") {
		return CoercedValue{Kind: KindText, Text: ""}
	}
	if !isStr {
		s = CellString(raw)
	}

	name := strings.ToLower(column)
	switch {
	case strings.Contains(name, "duration"):
		// Non-numeric durations degrade to zero.
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			n = 0
		}
		return CoercedValue{Kind: KindNumber, Number: n}

	case strings.Contains(name, "preferred") && strings.Contains(name, "phase"):
		return CoercedValue{Kind: KindPhases, Phases: parsePhases(s)}

	case strings.Contains(name, "slot") || strings.Contains(name, "skill"):
		return CoercedValue{Kind: KindTags, Tags: parseTags(s)}

	case strings.Contains(name, "task") && strings.Contains(name, "id"):
		return CoercedValue{Kind: KindTags, Tags: parseIDList(s)}

	case containsAny(name, "priority", "level", "load", "concurrent", "max"):
		// Unlike duration, unparsable text stays text: values like "high"
		// carry meaning for these columns.
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return CoercedValue{Kind: KindNumber, Number: n}
		}
		return CoercedValue{Kind: KindText, Text: s}
	}

	return CoercedValue{Kind: KindText, Text: s}
}

// parsePhases parses a phase set. Accepted forms: "a-b" inclusive range,
// JSON array text, comma list of integers (non-numeric entries dropped),
// or a bare number. Anything else yields an empty set.
func parsePhases(s string) []int {
	s = strings.TrimSpace(s)

	if strings.Contains(s, "-") && !strings.HasPrefix(s, "[") {
		parts := strings.SplitN(s, "-", 2)
		lo, errLo := strconv.Atoi(strings.TrimSpace(parts[0]))
		hi, errHi := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errLo == nil && errHi == nil && hi >= lo {
			out := make([]int, 0, hi-lo+1)
			for p := lo; p <= hi; p++ {
				out = append(out, p)
			}
			return out
		}
		return []int{}
	}

	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			out := make([]int, 0, len(arr))
			for _, e := range arr {
				switch t := e.(type) {
				case float64:
					out = append(out, int(t))
				case string:
					if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
						out = append(out, n)
					}
				}
			}
			return out
		}
		return []int{}
	}

	if strings.Contains(s, ",") {
		out := []int{}
		for _, part := range strings.Split(s, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				out = append(out, n)
			}
		}
		return out
	}

	if n, err := strconv.Atoi(s); err == nil {
		return []int{n}
	}
	return []int{}
}

// parseTags parses a tag list: JSON array text as-is, a comma list of
// trimmed non-empty strings, or a singleton of the trimmed value.
func parseTags(s string) []string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, e := range arr {
				out = append(out, CellString(e))
			}
			return out
		}
	}

	if strings.Contains(s, ",") {
		out := []string{}
		for _, part := range strings.Split(s, ",") {
			if t := strings.TrimSpace(part); t != "" {
				out = append(out, t)
			}
		}
		return out
	}

	return []string{s}
}

// parseIDList splits a comma list of identifiers, or wraps a single one.
func parseIDList(s string) []string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		out := []string{}
		for _, part := range strings.Split(s, ",") {
			if t := strings.TrimSpace(part); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	return []string{s}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
