package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/loomworks/dataloom/internal/table"
)

// Source identifies how a Filter's predicate was produced.
type Source string

const (
	// SourceExpression means the supplied expression compiled and passed
	// its test invocation.
	SourceExpression Source = "expression"
	// SourceFallback means a heuristic pattern matched the original
	// instruction text after compilation was rejected.
	SourceFallback Source = "fallback"
	// SourceNone means the fallback chain was exhausted; the predicate
	// rejects every row.
	SourceNone Source = "none"
)

// CompileError reports why a candidate expression was rejected.
type CompileError struct {
	Stage  string // "parse" or "test"
	Detail string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("expression compile failed (%s): %s", e.Stage, e.Detail)
}

// ErrNoFallbackMatch indicates the heuristic pattern library had nothing
// for the instruction text either.
var ErrNoFallbackMatch = errors.New("expr: no fallback pattern matched instruction")

// Filter is a reusable row predicate. It never panics: per-row evaluation
// errors surface through Match and are treated as non-matching by Apply.
type Filter struct {
	Handle string
	Source Source
	// Reason carries the diagnostic string for fallback or match-nothing
	// filters so the caller always has something renderable.
	Reason string
	// CompileErr records the rejection that routed us to the fallback
	// chain, for logging. Nil when Source is SourceExpression.
	CompileErr error

	ast      node
	fallback func(table.Row) bool
}

// Match evaluates the predicate against one row.
func (f *Filter) Match(row table.Row) (bool, error) {
	switch f.Source {
	case SourceExpression:
		e := &env{vars: map[string]value{f.Handle: rowValue(row)}}
		v, err := eval(f.ast, e)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	case SourceFallback:
		return f.fallback(row), nil
	default:
		return false, nil
	}
}

// Apply runs the predicate over every row and returns matching indexes.
// A row whose evaluation errors is logged, treated as non-matching, and
// skipped; one bad row never aborts the pass.
func (f *Filter) Apply(ds *table.Dataset, log zerolog.Logger) []int {
	matches := []int{}
	for i, r := range ds.Rows {
		ok, err := f.Match(r)
		if err != nil {
			log.Warn().Int("row", i).Err(err).Msg("filter: row evaluation failed, skipping")
			continue
		}
		if ok {
			matches = append(matches, i)
		}
	}
	return matches
}

// Compiler builds Filters from externally-supplied expression text.
type Compiler struct {
	log zerolog.Logger
}

// NewCompiler constructs a Compiler logging through the given logger.
func NewCompiler(log zerolog.Logger) *Compiler {
	return &Compiler{log: log}
}

// Compile turns exprText into a Filter whose free variable is handle.
// instruction is the original natural-language request; it drives the
// fallback chain when the expression is rejected. ds supplies the test row
// for the single validation invocation. Compile never returns an error:
// the worst outcome is a match-nothing Filter with a diagnostic reason.
func (c *Compiler) Compile(exprText, instruction, handle string, ds *table.Dataset) *Filter {
	code := ExtractCode(exprText, handle)

	ast, err := parse(code, handle)
	if err != nil {
		c.log.Warn().Str("code", code).Err(err).Msg("filter: expression rejected at parse")
		return c.fallbackFilter(instruction, handle, ds, &CompileError{Stage: "parse", Detail: err.Error()})
	}

	// Validate with a single test invocation before bulk use. A thrown
	// error rejects the candidate outright; a non-boolean result is
	// tolerated with a warning since truthiness still gives an answer.
	if len(ds.Rows) > 0 {
		e := &env{vars: map[string]value{handle: rowValue(ds.Rows[0])}}
		v, err := eval(ast, e)
		if err != nil {
			c.log.Warn().Str("code", code).Err(err).Msg("filter: expression rejected at test invocation")
			return c.fallbackFilter(instruction, handle, ds, &CompileError{Stage: "test", Detail: err.Error()})
		}
		if v.kind != kBool {
			c.log.Warn().Str("code", code).Msg("filter: expression returned a non-boolean on test invocation")
		}
	}

	return &Filter{Handle: handle, Source: SourceExpression, ast: ast}
}

func (c *Compiler) fallbackFilter(instruction, handle string, ds *table.Dataset, cerr *CompileError) *Filter {
	if fb := matchFallback(instruction, ds); fb != nil {
		c.log.Info().Str("pattern", fb.name).Msg("filter: using heuristic fallback")
		return &Filter{
			Handle:     handle,
			Source:     SourceFallback,
			Reason:     "heuristic fallback: " + fb.name,
			CompileErr: cerr,
			fallback:   fb.pred,
		}
	}
	return &Filter{
		Handle:     handle,
		Source:     SourceNone,
		Reason:     "expression could not be compiled and no fallback pattern matched the instruction; matching no rows",
		CompileErr: cerr,
	}
}

// ExtractCode defensively reduces raw generator output to a single
// expression line: markdown fences and comment/prose lines are dropped, a
// leading `return` and trailing semicolon are stripped, and the first line
// that plausibly references the row handle (or at least looks like code)
// wins.
func ExtractCode(raw, handle string) string {
	var candidates []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "/*") || strings.HasPrefix(line, "*") {
			continue
		}
		line = strings.TrimPrefix(line, "return ")
		line = strings.TrimSuffix(line, ";")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		candidates = append(candidates, line)
	}
	if len(candidates) == 0 {
		return ""
	}
	for _, line := range candidates {
		if strings.Contains(line, handle+".") {
			return line
		}
	}
	for _, line := range candidates {
		if strings.ContainsAny(line, "=<>!(") {
			return line
		}
	}
	return candidates[0]
}
