// Package instruction is the language-model boundary: it turns free-text
// editing requests into structured operation descriptors, filter
// expressions, and column mapping candidates. All downstream validation
// happens in the planner and reconciler; nothing here is trusted.
package instruction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/loomworks/dataloom/internal/plan"
	"github.com/loomworks/dataloom/internal/schema"
	"github.com/loomworks/dataloom/internal/table"
)

// sampleRowLimit bounds how many rows are embedded in prompts.
const sampleRowLimit = 3

// Translator converts natural-language instructions via a configured model.
type Translator struct {
	model llms.Model
	log   zerolog.Logger
}

// NewTranslator builds a Translator over the given model.
func NewTranslator(model llms.Model, log zerolog.Logger) *Translator {
	return &Translator{model: model, log: log}
}

// Descriptor asks the model to express instruction as an operation
// descriptor for the dataset. The result is parsed, not validated; the
// planner rejects malformed descriptors with structured errors.
func (t *Translator) Descriptor(ctx context.Context, instruction string, ft schema.FileType, ds *table.Dataset) (plan.OperationDescriptor, error) {
	var desc plan.OperationDescriptor
	prompt := fmt.Sprintf(descriptorPrompt, ft, strings.Join(ds.Headers, ", "), sampleRows(ds), instruction)
	raw, err := llms.GenerateFromSinglePrompt(ctx, t.model, prompt)
	if err != nil {
		return desc, fmt.Errorf("instruction: descriptor generation: %w", err)
	}
	t.log.Debug().Str("instruction", instruction).Msg("descriptor response received")

	payload, err := ExtractJSON(raw)
	if err != nil {
		return desc, err
	}
	if err := json.Unmarshal([]byte(payload), &desc); err != nil {
		return desc, fmt.Errorf("instruction: descriptor parse: %w", err)
	}
	return desc, nil
}

// FilterExpression asks the model for a boolean row expression using the
// dataset's row handle. The returned text is raw; the expression compiler
// owns extraction, the test invocation, and fallback.
func (t *Translator) FilterExpression(ctx context.Context, instruction string, ft schema.FileType, ds *table.Dataset) (string, error) {
	handle := ft.RowHandle()
	prompt := fmt.Sprintf(expressionPrompt, ft, handle, strings.Join(ds.Headers, ", "), sampleRows(ds), instruction, handle)
	raw, err := llms.GenerateFromSinglePrompt(ctx, t.model, prompt)
	if err != nil {
		return "", fmt.Errorf("instruction: expression generation: %w", err)
	}
	return raw, nil
}

// SuggestMappings asks the model for column mapping candidates. Candidates
// are advisory; the reconciler's acceptance pass enforces existence,
// thresholds, and one-to-one assignment.
func (t *Translator) SuggestMappings(ctx context.Context, current, required []string, ds *table.Dataset) ([]schema.ColumnMapping, error) {
	prompt := fmt.Sprintf(mappingPrompt, strings.Join(current, ", "), strings.Join(required, ", "), sampleRows(ds))
	raw, err := llms.GenerateFromSinglePrompt(ctx, t.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("instruction: mapping generation: %w", err)
	}
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out []schema.ColumnMapping
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("instruction: mapping parse: %w", err)
	}
	return out, nil
}

// sampleRows renders up to sampleRowLimit rows as compact JSON lines.
func sampleRows(ds *table.Dataset) string {
	n := len(ds.Rows)
	if n > sampleRowLimit {
		n = sampleRowLimit
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		cells := make(map[string]string, len(ds.Headers))
		for _, h := range ds.Headers {
			cells[h] = table.FormatCell(ds.Rows[i][h])
		}
		line, err := json.Marshal(cells)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "(no rows)\n"
	}
	return b.String()
}
