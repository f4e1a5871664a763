package expr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/loomworks/dataloom/internal/table"
)

// The fallback library is a fixed set of hand-authored patterns matched
// against the original instruction text, not against the failed expression.
// Each pattern pairs a recognizer with a predicate builder bound to the
// dataset's actual headers.

type fallbackMatch struct {
	name string
	pred func(table.Row) bool
}

var (
	reNameStartsWith = regexp.MustCompile(`(?i)names?\s+(?:that\s+|which\s+)?start(?:s|ing)?\s+with\s+(?:the\s+letter\s+)?["']?([a-z0-9])`)
	reGreaterThan    = regexp.MustCompile(`(?i)(priority(?:\s*level)?|level|duration|load)\s+(?:is\s+)?(?:greater|higher|more|longer|bigger)\s+than\s+(\d+(?:\.\d+)?)`)
	reLessThan       = regexp.MustCompile(`(?i)(priority(?:\s*level)?|level|duration|load)\s+(?:is\s+)?(?:less|lower|smaller|shorter)\s+than\s+(\d+(?:\.\d+)?)`)
	reHasSkill       = regexp.MustCompile(`(?i)(?:has|have|with|includes?|contains?)\s+(?:the\s+)?skills?\s+["']?([\w-]+)`)
)

// matchFallback tries each pattern in order against the instruction text
// and returns the first applicable predicate, or nil.
func matchFallback(instruction string, ds *table.Dataset) *fallbackMatch {
	if m := reNameStartsWith.FindStringSubmatch(instruction); m != nil {
		col := headerContaining(ds, "name")
		if col != "" {
			letter := strings.ToLower(m[1])
			return &fallbackMatch{
				name: "name_starts_with",
				pred: func(r table.Row) bool {
					return strings.HasPrefix(strings.ToLower(table.CellString(r[col])), letter)
				},
			}
		}
	}

	if fb := numericFallback(reGreaterThan, instruction, ds, true); fb != nil {
		return fb
	}
	if fb := numericFallback(reLessThan, instruction, ds, false); fb != nil {
		return fb
	}

	if m := reHasSkill.FindStringSubmatch(instruction); m != nil {
		col := headerContaining(ds, "skill")
		if col != "" {
			want := strings.ToLower(m[1])
			return &fallbackMatch{
				name: "has_skill",
				pred: func(r table.Row) bool {
					cv := table.Coerce(col, r[col])
					for _, tag := range cv.Tags {
						if strings.ToLower(strings.TrimSpace(tag)) == want {
							return true
						}
					}
					return false
				},
			}
		}
	}

	return nil
}

func numericFallback(re *regexp.Regexp, instruction string, ds *table.Dataset, greater bool) *fallbackMatch {
	m := re.FindStringSubmatch(instruction)
	if m == nil {
		return nil
	}
	threshold, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil
	}
	hint := strings.ToLower(m[1])
	var col string
	switch {
	case strings.Contains(hint, "priority") || strings.Contains(hint, "level"):
		col = headerContaining(ds, "priority")
		if col == "" {
			col = headerContaining(ds, "level")
		}
	case strings.Contains(hint, "duration"):
		col = headerContaining(ds, "duration")
	case strings.Contains(hint, "load"):
		col = headerContaining(ds, "load")
	}
	if col == "" {
		return nil
	}
	name := "numeric_less_than"
	if greater {
		name = "numeric_greater_than"
	}
	return &fallbackMatch{
		name: name,
		pred: func(r table.Row) bool {
			n, err := strconv.ParseFloat(strings.TrimSpace(table.CellString(r[col])), 64)
			if err != nil {
				return false
			}
			if greater {
				return n > threshold
			}
			return n < threshold
		},
	}
}

// headerContaining returns the first header whose lowercase form contains
// the fragment, or "".
func headerContaining(ds *table.Dataset, fragment string) string {
	for _, h := range ds.Headers {
		if strings.Contains(strings.ToLower(h), fragment) {
			return h
		}
	}
	return ""
}
