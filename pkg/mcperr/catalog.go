package mcperr

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation          Code = "VALIDATION"
	InvalidHandle       Code = "INVALID_HANDLE"
	MalformedDescriptor Code = "MALFORMED_DESCRIPTOR"
	RowOutOfRange       Code = "ROW_OUT_OF_RANGE"
	CursorInvalid       Code = "CURSOR_INVALID"
	CursorBuildFailed   Code = "CURSOR_BUILD_FAILED"

	// Resource & Limits
	BusyResource    Code = "BUSY_RESOURCE"
	Timeout         Code = "TIMEOUT"
	LimitExceeded   Code = "LIMIT_EXCEEDED"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"

	// IO & Formats
	OpenFailed        Code = "OPEN_FAILED"
	PreviewFailed     Code = "PREVIEW_FAILED"
	SearchFailed      Code = "SEARCH_FAILED"
	ApplyFailed       Code = "APPLY_FAILED"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"

	// Instruction processing
	PlanFailed        Code = "PLAN_FAILED"
	ExprCompileFailed Code = "EXPR_COMPILE_FAILED"
	NoFallbackMatch   Code = "NO_FALLBACK_MATCH"
	MappingFailed     Code = "MAPPING_FAILED"
	ModelUnavailable  Code = "MODEL_UNAVAILABLE"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:          {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry", "See examples in tool description"}},
	InvalidHandle:       {Code: InvalidHandle, Message: "dataset handle not found or expired", Retryable: true, NextSteps: []string{"Reopen the dataset via path and retry"}},
	MalformedDescriptor: {Code: MalformedDescriptor, Message: "operation descriptor is malformed", Retryable: true, NextSteps: []string{"Check operation, column, and value fields against the descriptor schema", "Rephrase the instruction to be more specific"}},
	RowOutOfRange:       {Code: RowOutOfRange, Message: "modification targets a row outside the dataset", Retryable: true, NextSteps: []string{"Re-plan against the current dataset version", "Avoid applying stale modification lists"}},
	CursorInvalid:       {Code: CursorInvalid, Message: "cursor is invalid for current context", Retryable: true, NextSteps: []string{"Restart pagination from the first page", "Avoid edits between pages or reissue query"}},
	CursorBuildFailed:   {Code: CursorBuildFailed, Message: "failed to encode next page cursor", Retryable: true, NextSteps: []string{"Retry or narrow scope (smaller pages)"}},

	BusyResource:    {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:         {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Narrow scope (fewer rows) or increase timeout", "Prefer cursor-first pagination"}},
	LimitExceeded:   {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, NextSteps: []string{"Reduce row count or lower page size"}},
	PayloadTooLarge: {Code: PayloadTooLarge, Message: "payload exceeds configured size", Retryable: true, NextSteps: []string{"Reduce page size or split into batches"}},

	OpenFailed:        {Code: OpenFailed, Message: "failed to open dataset", Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},
	PreviewFailed:     {Code: PreviewFailed, Message: "failed to generate preview", Retryable: true, NextSteps: []string{"Retry with fewer rows"}},
	SearchFailed:      {Code: SearchFailed, Message: "search execution failed", Retryable: true, NextSteps: []string{"Simplify the conditions or check column names"}},
	ApplyFailed:       {Code: ApplyFailed, Message: "failed to apply modifications", Retryable: false, NextSteps: []string{"Re-plan against the current dataset and retry"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported dataset format", Retryable: false, NextSteps: []string{"Convert to .csv or .xlsx and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},

	PlanFailed:        {Code: PlanFailed, Message: "planning failed", Retryable: true, NextSteps: []string{"Rephrase the instruction or name exact columns and values"}},
	ExprCompileFailed: {Code: ExprCompileFailed, Message: "filter expression did not compile", Retryable: true, NextSteps: []string{"Simplify the filter phrasing", "Name the column and comparison explicitly"}},
	NoFallbackMatch:   {Code: NoFallbackMatch, Message: "no filter could be derived from the instruction", Retryable: true, NextSteps: []string{"Rephrase using a supported pattern, e.g. 'priority greater than 3'"}},
	MappingFailed:     {Code: MappingFailed, Message: "column mapping failed", Retryable: true, NextSteps: []string{"Provide explicit header mappings or rename columns in the source file"}},
	ModelUnavailable:  {Code: ModelUnavailable, Message: "no language model configured for this tool", Retryable: false, NextSteps: []string{"Set the model in dataloom.yaml or DATALOOM_MODEL and restart"}},
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		// Unknown code; preserve as-is
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	// Append compact nextSteps guidance inline to aid clients lacking structured fields.
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	parts := strings.SplitN(t, ":", 2)
	if len(parts) == 0 {
		return mcp.NewToolResultError(normalize(Validation, t))
	}
	code := Code(strings.TrimSpace(parts[0]))
	msg := ""
	if len(parts) > 1 {
		msg = strings.TrimSpace(parts[1])
	}
	return mcp.NewToolResultError(normalize(code, msg))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}
