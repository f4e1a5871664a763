package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// ColumnMapping proposes a correspondence between an uploaded header and a
// required schema header, with a confidence score in [0,1].
type ColumnMapping struct {
	OriginalHeader  string  `json:"originalHeader"`
	SuggestedHeader string  `json:"suggestedHeader"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Mappings        []ColumnMapping `json:"mappings"`
	UnmappedColumns []string        `json:"unmappedColumns"`
	MissingColumns  []string        `json:"missingColumns"`
	Confidence      float64         `json:"confidence"`
}

// acceptThreshold is the minimum confidence for a candidate mapping to be
// accepted, wherever it came from.
const acceptThreshold = 0.5

// synthesisThreshold is the stricter minimum for locally synthesized
// candidates: a guess below this is left unmapped rather than proposed.
const synthesisThreshold = 0.7

// headerPattern maps a naming-pattern regex over the normalized current
// header to a canonical required header name.
type headerPattern struct {
	re     *regexp.Regexp
	target string
}

// defaultPatterns is the fixed naming-pattern table used by local
// synthesis. Patterns run against the normalized (lowercased, separator
// stripped) header.
var defaultPatterns = []headerPattern{
	{regexp.MustCompile(`^(client|customer).*id$`), "ClientID"},
	{regexp.MustCompile(`^(worker|employee|staff).*id$`), "WorkerID"},
	{regexp.MustCompile(`^task.*id$`), "TaskID"},
	{regexp.MustCompile(`^(client|customer).*name$`), "ClientName"},
	{regexp.MustCompile(`^(worker|employee|staff).*name$`), "WorkerName"},
	{regexp.MustCompile(`^task.*(name|title)$`), "TaskName"},
	{regexp.MustCompile(`^prio`), "PriorityLevel"},
	{regexp.MustCompile(`(requested|task)tasks?$|^tasksrequested$`), "RequestedTaskIDs"},
	{regexp.MustCompile(`^(group|tag)$`), "GroupTag"},
	{regexp.MustCompile(`attributes?|metadata`), "AttributesJSON"},
	{regexp.MustCompile(`^skills?(set)?$`), "Skills"},
	{regexp.MustCompile(`^requiredskills?$|^skillsrequired$`), "RequiredSkills"},
	{regexp.MustCompile(`slots?$`), "AvailableSlots"},
	{regexp.MustCompile(`^(max)?load`), "MaxLoadPerPhase"},
	{regexp.MustCompile(`^(duration|length|hours)$`), "Duration"},
	{regexp.MustCompile(`phases?$`), "PreferredPhases"},
	{regexp.MustCompile(`^(max)?concurrent`), "MaxConcurrent"},
	{regexp.MustCompile(`^(category|type|kind)$`), "Category"},
	{regexp.MustCompile(`^qualification`), "QualificationLevel"},
}

// Reconciler performs mapping acceptance and local synthesis against an
// immutable schema registry.
type Reconciler struct {
	registry Registry
	patterns []headerPattern
}

// NewReconciler builds a Reconciler over the given registry and the
// default naming-pattern table.
func NewReconciler(registry Registry) *Reconciler {
	return &Reconciler{registry: registry, patterns: defaultPatterns}
}

// RequiredHeaders returns the registered schema for a dataset kind.
func (r *Reconciler) RequiredHeaders(ft FileType) ([]string, error) {
	headers, ok := r.registry[ft]
	if !ok {
		return nil, fmt.Errorf("schema: unknown file type %q", ft)
	}
	return headers, nil
}

// Reconcile aligns currentHeaders to requiredHeaders. When candidates is
// non-empty (e.g. externally suggested mappings) those are validated;
// otherwise candidates are synthesized from naming heuristics. The
// acceptance pass always runs: headers must literally exist on both
// sides, confidence must reach the threshold, and each source and target
// may be consumed at most once, first accepted wins, in input order.
func (r *Reconciler) Reconcile(currentHeaders, requiredHeaders []string, candidates []ColumnMapping) Result {
	if len(candidates) == 0 {
		candidates = r.Synthesize(currentHeaders, requiredHeaders)
	}

	currentSet := toSet(currentHeaders)
	requiredSet := toSet(requiredHeaders)
	usedSource := map[string]bool{}
	usedTarget := map[string]bool{}

	accepted := []ColumnMapping{}
	for _, c := range candidates {
		if !currentSet[c.OriginalHeader] || !requiredSet[c.SuggestedHeader] {
			continue
		}
		if c.Confidence < acceptThreshold {
			continue
		}
		if usedSource[c.OriginalHeader] || usedTarget[c.SuggestedHeader] {
			continue
		}
		usedSource[c.OriginalHeader] = true
		usedTarget[c.SuggestedHeader] = true
		accepted = append(accepted, c)
	}

	res := Result{Mappings: accepted, UnmappedColumns: []string{}, MissingColumns: []string{}}
	for _, h := range currentHeaders {
		if !usedSource[h] {
			res.UnmappedColumns = append(res.UnmappedColumns, h)
		}
	}
	for _, h := range requiredHeaders {
		if !usedTarget[h] {
			res.MissingColumns = append(res.MissingColumns, h)
		}
	}
	if len(accepted) > 0 {
		sum := 0.0
		for _, m := range accepted {
			sum += m.Confidence
		}
		res.Confidence = sum / float64(len(accepted))
	}
	return res
}

// Synthesize proposes one best-scoring mapping per current header from
// naming heuristics alone, keeping only proposals at or above the
// synthesis threshold.
func (r *Reconciler) Synthesize(currentHeaders, requiredHeaders []string) []ColumnMapping {
	out := []ColumnMapping{}
	for _, cur := range currentHeaders {
		best := ColumnMapping{Confidence: 0}
		for _, req := range requiredHeaders {
			score, reason := r.score(cur, req)
			if score > best.Confidence {
				best = ColumnMapping{
					OriginalHeader:  cur,
					SuggestedHeader: req,
					Confidence:      score,
					Reasoning:       reason,
				}
			}
		}
		if best.Confidence >= synthesisThreshold {
			out = append(out, best)
		}
	}
	return out
}

// score rates one current/required header pair.
func (r *Reconciler) score(current, required string) (float64, string) {
	normCur := normalize(current)
	normReq := normalize(required)

	if normCur == normReq && strings.EqualFold(current, required) {
		return 1.0, "exact match"
	}
	if containsGuarded(normCur, normReq) {
		return 0.8, "substring match"
	}
	for _, p := range r.patterns {
		if p.target == required && p.re.MatchString(normCur) {
			return 0.75, "naming pattern " + p.re.String()
		}
	}
	return 0, ""
}

// normalize lowercases and strips underscores, dashes, and whitespace.
func normalize(h string) string {
	h = strings.ToLower(h)
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ', '\t':
			return -1
		}
		return r
	}, h)
}

// containsGuarded tests substring containment in either direction, but
// only when the shorter header covers at least half the longer one. The
// guard keeps generic fragments such as "name" or "id" from claiming
// longer headers like "ClientName" on containment alone.
func containsGuarded(a, b string) bool {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(long) == 0 || len(short)*2 < len(long) {
		return false
	}
	return strings.Contains(long, short)
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}
