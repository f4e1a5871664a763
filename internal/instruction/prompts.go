package instruction

// Prompt templates for translating natural-language instructions into the
// engine's structured forms. Each template demands raw JSON (or a raw
// expression) so the response can be parsed without post-hoc repair; the
// parser still strips code fences defensively.

const descriptorPrompt = `You translate a data modification instruction into a JSON operation descriptor.

Dataset type: %s
Columns: %s
Sample rows:
%s

Instruction: %s

Respond with ONLY a JSON object of this shape:
{
  "operation": "update" | "delete" | "add",
  "column": "<column name, for update>",
  "conditions": [{"column": "<name>", "operator": "<op>", "value": <string or array>}],
  "newValue": "<replacement value, for update>",
  "newRow": {"<column>": "<value>", ...},
  "summary": "<one sentence describing the change>"
}

Operators: equals, not_equals, contains, not_contains, starts_with, ends_with, greater_than, less_than, in, not_in.
Omit fields that do not apply. Do not invent columns that are not listed.`

const expressionPrompt = `You translate a row filter instruction into a single boolean expression.

Dataset type: %s
Row handle: %s
Columns: %s
Sample rows:
%s

Instruction: %s

Rules:
- Use the handle to access fields, e.g. %s.PriorityLevel > 3
- Allowed: comparisons, && || !, string methods (toLowerCase, toUpperCase, startsWith, endsWith, includes), .length, array literals, and some(x => ...) on list fields.
- No variables other than the handle, no statements, no function definitions.

Respond with ONLY the expression on one line.`

const mappingPrompt = `You map uploaded spreadsheet column headers to a required schema.

Uploaded headers: %s
Required headers: %s
Sample rows:
%s

Respond with ONLY a JSON array:
[{"originalHeader": "<uploaded>", "suggestedHeader": "<required>", "confidence": 0.0-1.0, "reasoning": "<short>"}]

Only propose mappings you are confident about; omit headers with no clear counterpart.`
