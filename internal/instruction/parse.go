package instruction

import (
	"errors"
	"strings"
)

// ErrNoJSON indicates the model response contained no JSON payload.
var ErrNoJSON = errors.New("instruction: no JSON found in response")

// ExtractJSON pulls the first JSON object or array out of a model response,
// tolerating surrounding prose and markdown code fences.
func ExtractJSON(raw string) (string, error) {
	s := stripFences(raw)

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start := objStart
	open, closing := byte('{'), byte('}')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		open, closing = '[', ']'
	}
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// stripFences removes markdown code fences, keeping the fenced body.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			continue
		}
		out = append(out, ln)
	}
	return strings.Join(out, "\n")
}
