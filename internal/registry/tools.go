package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/loomworks/dataloom/internal/datasets"
	"github.com/loomworks/dataloom/internal/expr"
	"github.com/loomworks/dataloom/internal/instruction"
	"github.com/loomworks/dataloom/internal/plan"
	"github.com/loomworks/dataloom/internal/predicate"
	"github.com/loomworks/dataloom/internal/preview"
	"github.com/loomworks/dataloom/internal/runtime"
	"github.com/loomworks/dataloom/internal/schema"
	"github.com/loomworks/dataloom/internal/security"
	"github.com/loomworks/dataloom/internal/table"
	"github.com/loomworks/dataloom/pkg/mcperr"
	"github.com/loomworks/dataloom/pkg/pagination"
	"github.com/loomworks/dataloom/pkg/validation"
)

// Deps bundles the collaborators tool handlers close over.
type Deps struct {
	Manager    *datasets.Manager
	Translator *instruction.Translator // nil when no model is configured
	Log        zerolog.Logger
}

// --- Input / Output Schemas (typed for discovery) ---

// PageMeta captures paging/truncation metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// OpenDatasetInput defines parameters for opening a dataset.
type OpenDatasetInput struct {
	Path     string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Path to a dataset file (.csv or .xlsx) inside an allowed directory"`
	FileType string `json:"file_type" validate:"required,file_type" jsonschema_description:"Dataset kind: clients, workers, or tasks"`
}

// OpenDatasetOutput documents the response fields for open_dataset.
type OpenDatasetOutput struct {
	DatasetID       string        `json:"dataset_id" jsonschema_description:"Server-assigned dataset handle ID"`
	FileType        string        `json:"file_type"`
	RowCount        int           `json:"rowCount"`
	Headers         []string      `json:"headers" jsonschema_description:"Headers after schema reconciliation renames"`
	Mapping         schema.Result `json:"mapping" jsonschema_description:"Schema reconciliation report for this upload"`
	PreviewRowLimit int           `json:"previewRowLimit" jsonschema_description:"Default row limit for previews"`
}

// CloseDatasetInput defines parameters for closing a dataset handle.
type CloseDatasetInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID to close"`
}

// ListStructureInput defines parameters for structure discovery.
type ListStructureInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
}

// ListStructureOutput summarizes dataset structure without row data.
type ListStructureOutput struct {
	DatasetID string        `json:"dataset_id"`
	FileType  string        `json:"file_type"`
	Headers   []string      `json:"headers"`
	RowCount  int           `json:"rowCount"`
	Version   int64         `json:"version" jsonschema_description:"Write-version; bumps on every applied change"`
	Mapping   schema.Result `json:"mapping"`
}

// PreviewRowsInput defines parameters for a bounded row preview.
type PreviewRowsInput struct {
	DatasetID string `json:"dataset_id" validate:"required_without=Cursor" jsonschema_description:"Dataset handle ID (or supply cursor)"`
	Rows      int    `json:"rows,omitempty" jsonschema_description:"Max rows per page (bounded)"`
	Cursor    string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque continuation cursor from a previous page"`
}

// PreviewRowsOutput documents preview rows plus paging metadata.
type PreviewRowsOutput struct {
	DatasetID string     `json:"dataset_id"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows" jsonschema_description:"Row cells in header order, rendered as text"`
	Meta      PageMeta   `json:"meta"`
}

// MapColumnsInput defines parameters for header mapping.
type MapColumnsInput struct {
	FileType   string     `json:"file_type" validate:"required,file_type" jsonschema_description:"Dataset kind whose schema to map against"`
	Headers    []string   `json:"headers" validate:"required,min=1" jsonschema_description:"Uploaded column headers"`
	SampleRows [][]string `json:"sample_rows,omitempty" jsonschema_description:"Optional sample rows, cells in header order"`
}

// MapColumnsOutput documents the reconciliation outcome.
type MapColumnsOutput struct {
	FileType string        `json:"file_type"`
	Source   string        `json:"source" jsonschema_description:"Candidate source: model or synthesis"`
	Result   schema.Result `json:"result"`
}

// PlanChangesInput defines parameters for planning from a structured descriptor.
type PlanChangesInput struct {
	DatasetID  string                   `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	Descriptor plan.OperationDescriptor `json:"descriptor" jsonschema_description:"Structured operation descriptor"`
}

// PlanChangesOutput documents a computed plan with its preview.
type PlanChangesOutput struct {
	DatasetID     string              `json:"dataset_id"`
	Modifications []plan.Modification `json:"modifications"`
	Preview       []string            `json:"preview" jsonschema_description:"Human-readable before/after lines, one block per modification"`
	Summary       string              `json:"summary"`
}

// ApplyInstructionInput defines parameters for natural-language planning.
type ApplyInstructionInput struct {
	DatasetID   string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	Instruction string `json:"instruction" validate:"required" jsonschema_description:"Natural-language modification instruction"`
}

// ApplyInstructionOutput echoes the derived descriptor with the plan.
type ApplyInstructionOutput struct {
	DatasetID     string                   `json:"dataset_id"`
	Descriptor    plan.OperationDescriptor `json:"descriptor" jsonschema_description:"Descriptor derived from the instruction"`
	Modifications []plan.Modification      `json:"modifications"`
	Preview       []string                 `json:"preview"`
}

// SearchRowsInput defines parameters for expression- or query-driven search.
type SearchRowsInput struct {
	DatasetID  string                `json:"dataset_id" validate:"required_without=Cursor" jsonschema_description:"Dataset handle ID (or supply cursor)"`
	Query      string                `json:"query,omitempty" jsonschema_description:"Natural-language filter; translated via the configured model"`
	Expression string                `json:"expression,omitempty" jsonschema_description:"Boolean row expression; takes precedence over query"`
	Conditions []predicate.Condition `json:"conditions,omitempty" jsonschema_description:"Structured conditions, ANDed; used when no expression or query is given"`
	Rows       int                   `json:"rows,omitempty" jsonschema_description:"Max matches per page (bounded)"`
	Cursor     string                `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque continuation cursor from a previous page"`
}

// SearchRowsOutput documents matches plus paging metadata.
type SearchRowsOutput struct {
	DatasetID string     `json:"dataset_id"`
	Source    string     `json:"source" jsonschema_description:"Predicate source: expression, fallback, none, or conditions"`
	Reason    string     `json:"reason,omitempty" jsonschema_description:"Diagnostic when the expression was rejected or nothing matched"`
	Indices   []int      `json:"indices" jsonschema_description:"Matching row indices for this page"`
	Rows      [][]string `json:"rows" jsonschema_description:"Matching row cells in header order"`
	Headers   []string   `json:"headers"`
	Meta      PageMeta   `json:"meta"`
}

// ApplyChangesInput defines parameters for applying a modification list.
type ApplyChangesInput struct {
	DatasetID     string              `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	Modifications []plan.Modification `json:"modifications" validate:"required,min=1" jsonschema_description:"Planner-produced modification list"`
}

// ApplyChangesOutput documents the application outcome.
type ApplyChangesOutput struct {
	DatasetID string `json:"dataset_id"`
	Applied   int    `json:"applied"`
	RowCount  int    `json:"rowCount"`
	Version   int64  `json:"version"`
}

// RegisterTools wires every dataset tool onto the server.
func RegisterTools(s *server.MCPServer, reg *Registry, limits runtime.Limits, deps Deps) {
	registerOpenClose(s, reg, limits, deps)
	registerStructure(s, reg, limits, deps)
	registerMapping(s, reg, deps)
	registerPlanning(s, reg, deps)
	registerSearch(s, reg, limits, deps)
	registerApply(s, reg, limits, deps)
}

func registerOpenClose(s *server.MCPServer, reg *Registry, limits runtime.Limits, deps Deps) {
	openTool := mcp.NewTool(
		"open_dataset",
		mcp.WithDescription("Open a clients/workers/tasks dataset (.csv or .xlsx) and return a handle ID. Headers are reconciled against the required schema once per upload: confidently mapped columns are renamed in place and the mapping report lists unmapped and missing headers."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to a dataset file inside an allowed directory")),
		mcp.WithString("file_type", mcp.Required(), mcp.Enum("clients", "workers", "tasks"), mcp.Description("Dataset kind")),
		mcp.WithOutputSchema[OpenDatasetOutput](),
	)
	s.AddTool(openTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in OpenDatasetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		h, err := deps.Manager.Open(ctx, in.Path, schema.FileType(in.FileType), nil)
		if err != nil {
			return openError(err), nil
		}
		out := OpenDatasetOutput{
			DatasetID:       h.ID,
			FileType:        string(h.FileType),
			RowCount:        len(h.DS.Rows),
			Headers:         h.DS.Headers,
			Mapping:         h.Mapping,
			PreviewRowLimit: limits.PreviewRowLimit,
		}
		summary := fmt.Sprintf("dataset %s opened: %d rows, %d mapped headers, confidence %.2f",
			h.ID, out.RowCount, len(h.Mapping.Mappings), h.Mapping.Confidence)
		return structured(out, summary), nil
	}))
	reg.Register(openTool)

	closeTool := mcp.NewTool(
		"close_dataset",
		mcp.WithDescription("Close a previously opened dataset handle and release its capacity"),
		mcp.WithString("dataset_id", mcp.Required(), mcp.Description("Dataset handle ID")),
		mcp.WithOutputSchema[struct {
			Success bool `json:"success" jsonschema_description:"True when the handle was closed"`
		}](),
	)
	s.AddTool(closeTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in CloseDatasetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		if err := deps.Manager.CloseHandle(ctx, in.DatasetID); err != nil {
			return mcperr.New(mcperr.InvalidHandle, ""), nil
		}
		return structured(struct {
			Success bool `json:"success"`
		}{true}, "dataset closed"), nil
	}))
	reg.Register(closeTool)
}

func registerStructure(s *server.MCPServer, reg *Registry, limits runtime.Limits, deps Deps) {
	listTool := mcp.NewTool(
		"list_structure",
		mcp.WithDescription("Return dataset structure: headers, row count, version, and the upload's schema mapping report (no row data)"),
		mcp.WithString("dataset_id", mcp.Required(), mcp.Description("Dataset handle ID")),
		mcp.WithOutputSchema[ListStructureOutput](),
	)
	s.AddTool(listTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ListStructureInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		var out ListStructureOutput
		err := deps.Manager.WithRead(in.DatasetID, func(h *datasets.Handle) error {
			out = ListStructureOutput{
				DatasetID: h.ID,
				FileType:  string(h.FileType),
				Headers:   h.DS.Headers,
				RowCount:  len(h.DS.Rows),
				Version:   h.Version,
				Mapping:   h.Mapping,
			}
			return nil
		})
		if err != nil {
			return mcperr.New(mcperr.InvalidHandle, ""), nil
		}
		return structured(out, fmt.Sprintf("%s: %d columns, %d rows", out.FileType, len(out.Headers), out.RowCount)), nil
	}))
	reg.Register(listTool)

	previewTool := mcp.NewTool(
		"preview_rows",
		mcp.WithDescription("Return a bounded, cursor-paged preview of dataset rows rendered as text"),
		mcp.WithString("dataset_id", mcp.Description("Dataset handle ID (or supply cursor)")),
		mcp.WithNumber("rows", mcp.DefaultNumber(float64(limits.PreviewRowLimit)), mcp.Min(1), mcp.Max(1000), mcp.Description("Max rows per page")),
		mcp.WithString("cursor", mcp.Description("Opaque continuation cursor from a previous page")),
		mcp.WithOutputSchema[PreviewRowsOutput](),
	)
	s.AddTool(previewTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in PreviewRowsInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}

		id, offset, ps := in.DatasetID, 0, in.Rows
		if ps <= 0 || ps > limits.PreviewRowLimit {
			ps = limits.PreviewRowLimit
		}
		var wantVersion int64 = -1
		if in.Cursor != "" {
			c, err := pagination.DecodeCursor(in.Cursor)
			if err != nil {
				return mcperr.New(mcperr.CursorInvalid, ""), nil
			}
			id, offset, ps, wantVersion = c.Did, c.Off, c.Ps, c.Dv
		}

		var out PreviewRowsOutput
		err := deps.Manager.WithRead(id, func(h *datasets.Handle) error {
			if wantVersion >= 0 && wantVersion != h.Version {
				return errStaleCursor
			}
			out = PreviewRowsOutput{DatasetID: h.ID, Headers: h.DS.Headers}
			total := len(h.DS.Rows)
			end := offset + ps
			if end > total {
				end = total
			}
			for i := offset; i < end; i++ {
				out.Rows = append(out.Rows, rowCells(h.DS, i))
			}
			out.Meta = PageMeta{Total: total, Returned: len(out.Rows), Truncated: end < total}
			if end < total {
				tok, err := pagination.EncodeCursor(pagination.Cursor{
					Did: h.ID, Ft: string(h.FileType), Off: end, Ps: ps, Dv: h.Version,
				})
				if err != nil {
					return errCursorBuild
				}
				out.Meta.NextCursor = tok
			}
			return nil
		})
		switch {
		case errors.Is(err, errStaleCursor):
			return mcperr.New(mcperr.CursorInvalid, "dataset changed since cursor was issued"), nil
		case errors.Is(err, errCursorBuild):
			return mcperr.New(mcperr.CursorBuildFailed, ""), nil
		case err != nil:
			return mcperr.New(mcperr.InvalidHandle, ""), nil
		}
		return structured(out, fmt.Sprintf("returned %d of %d rows", out.Meta.Returned, out.Meta.Total)), nil
	}))
	reg.Register(previewTool)
}

func registerMapping(s *server.MCPServer, reg *Registry, deps Deps) {
	tool := mcp.NewTool(
		"map_columns",
		mcp.WithDescription("Map arbitrary uploaded headers onto the required schema for a dataset kind. Candidates come from the configured model when available, local naming heuristics otherwise; either way the acceptance pass enforces existence, confidence thresholds, and one-to-one assignment."),
		mcp.WithInputSchema[MapColumnsInput](),
		mcp.WithOutputSchema[MapColumnsOutput](),
	)
	s.AddTool(tool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in MapColumnsInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		ft := schema.FileType(in.FileType)
		rec := deps.Manager.Reconciler()
		required, err := rec.RequiredHeaders(ft)
		if err != nil {
			return mcperr.Wrapf(mcperr.Validation, "unknown file type %q", in.FileType), nil
		}

		source := "synthesis"
		var candidates []schema.ColumnMapping
		if deps.Translator != nil {
			sample := sampleDataset(in.Headers, in.SampleRows)
			candidates, err = deps.Translator.SuggestMappings(ctx, in.Headers, required, sample)
			if err != nil {
				deps.Log.Warn().Err(err).Msg("model mapping failed, falling back to synthesis")
				candidates = nil
			} else {
				source = "model"
			}
		}

		res := rec.Reconcile(in.Headers, required, candidates)
		out := MapColumnsOutput{FileType: in.FileType, Source: source, Result: res}
		summary := fmt.Sprintf("mapped %d of %d headers (confidence %.2f, source %s)",
			len(res.Mappings), len(in.Headers), res.Confidence, source)
		return structured(out, summary), nil
	}))
	reg.Register(tool)
}

func registerPlanning(s *server.MCPServer, reg *Registry, deps Deps) {
	planTool := mcp.NewTool(
		"plan_changes",
		mcp.WithDescription("Plan modifications from a structured operation descriptor: row-order scan of matching rows, one modification per affected row (add emits exactly one), plus a human-readable preview. Nothing is applied."),
		mcp.WithInputSchema[PlanChangesInput](),
		mcp.WithOutputSchema[PlanChangesOutput](),
	)
	s.AddTool(planTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in PlanChangesInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, res := planAgainst(deps, in.DatasetID, in.Descriptor)
		if res != nil {
			return res, nil
		}
		return structured(out, out.Summary), nil
	}))
	reg.Register(planTool)

	instrTool := mcp.NewTool(
		"apply_instruction",
		mcp.WithDescription("Translate a natural-language instruction into an operation descriptor via the configured model, then plan and preview the resulting modifications. Nothing is applied; pass the modifications to apply_changes to commit."),
		mcp.WithString("dataset_id", mcp.Required(), mcp.Description("Dataset handle ID")),
		mcp.WithString("instruction", mcp.Required(), mcp.Description("Natural-language modification instruction")),
		mcp.WithOutputSchema[ApplyInstructionOutput](),
	)
	s.AddTool(instrTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ApplyInstructionInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		if deps.Translator == nil {
			return mcperr.New(mcperr.ModelUnavailable, ""), nil
		}

		var desc plan.OperationDescriptor
		err := deps.Manager.WithRead(in.DatasetID, func(h *datasets.Handle) error {
			var derr error
			desc, derr = deps.Translator.Descriptor(ctx, in.Instruction, h.FileType, h.DS)
			return derr
		})
		if errors.Is(err, datasets.ErrHandleNotFound) {
			return mcperr.New(mcperr.InvalidHandle, ""), nil
		}
		if err != nil {
			return mcperr.Wrapf(mcperr.PlanFailed, "instruction translation: %v", err), nil
		}

		planned, res := planAgainst(deps, in.DatasetID, desc)
		if res != nil {
			return res, nil
		}
		out := ApplyInstructionOutput{
			DatasetID:     in.DatasetID,
			Descriptor:    desc,
			Modifications: planned.Modifications,
			Preview:       planned.Preview,
		}
		return structured(out, planned.Summary), nil
	}))
	reg.Register(instrTool)
}

func registerSearch(s *server.MCPServer, reg *Registry, limits runtime.Limits, deps Deps) {
	tool := mcp.NewTool(
		"search_rows",
		mcp.WithDescription("Find rows matching a filter. Supply a boolean expression over the row handle (e.g. task.Duration > 2), a natural-language query for the configured model to translate, or structured conditions. A rejected expression falls back to instruction heuristics; when nothing can be derived the result matches no rows and carries a diagnostic."),
		mcp.WithInputSchema[SearchRowsInput](),
		mcp.WithOutputSchema[SearchRowsOutput](),
	)
	s.AddTool(tool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in SearchRowsInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, res := searchPage(ctx, deps, limits, in)
		if res != nil {
			return res, nil
		}
		return structured(out, fmt.Sprintf("%d matching rows (source %s)", out.Meta.Total, out.Source)), nil
	}))
	reg.Register(tool)
}

// searchPage resolves one page of search results. A continuation cursor
// carries the full originating search (expression, instruction, and
// conditions), so every page rebuilds the same predicate the first page
// used: a fallback-matched search keeps matching via its instruction, and
// a conditions search resumes from the cursor alone. The returned result
// is non-nil on error.
func searchPage(ctx context.Context, deps Deps, limits runtime.Limits, in SearchRowsInput) (SearchRowsOutput, *mcp.CallToolResult) {
	var out SearchRowsOutput

	id, offset, ps := in.DatasetID, 0, in.Rows
	if ps <= 0 || ps > limits.MaxRowsPerOp {
		ps = limits.PreviewRowLimit
	}
	var wantVersion int64 = -1
	expressionText, query, conds := in.Expression, in.Query, in.Conditions
	if in.Cursor != "" {
		c, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return out, mcperr.New(mcperr.CursorInvalid, "")
		}
		id, offset, ps, wantVersion = c.Did, c.Off, c.Ps, c.Dv
		expressionText, query, conds = c.Q, c.Qi, nil
		if c.Qc != "" {
			if err := json.Unmarshal([]byte(c.Qc), &conds); err != nil {
				return out, mcperr.New(mcperr.CursorInvalid, "")
			}
		}
	}
	if expressionText == "" && query == "" && len(conds) == 0 {
		return out, mcperr.New(mcperr.Validation, "supply expression, query, or conditions")
	}

	err := deps.Manager.WithRead(id, func(h *datasets.Handle) error {
		if wantVersion >= 0 && wantVersion != h.Version {
			return errStaleCursor
		}

		var matches []int
		var condsJSON string
		switch {
		case expressionText != "" || query != "":
			if expressionText == "" {
				if deps.Translator == nil {
					return errModelRequired
				}
				raw, terr := deps.Translator.FilterExpression(ctx, query, h.FileType, h.DS)
				if terr != nil {
					return terr
				}
				expressionText = raw
			}
			f := expr.NewCompiler(deps.Log).Compile(expressionText, query, h.FileType.RowHandle(), h.DS)
			out.Source = string(f.Source)
			out.Reason = f.Reason
			matches = f.Apply(h.DS, deps.Log)
		default:
			out.Source = "conditions"
			b, merr := json.Marshal(conds)
			if merr != nil {
				return errCursorBuild
			}
			condsJSON = string(b)
			for i := range h.DS.Rows {
				if predicate.EvaluateAll(h.DS.Rows[i], conds) {
					matches = append(matches, i)
				}
			}
		}

		out.DatasetID = h.ID
		out.Headers = h.DS.Headers
		total := len(matches)
		end := offset + ps
		if end > total {
			end = total
		}
		for _, idx := range matches[min(offset, total):end] {
			out.Indices = append(out.Indices, idx)
			out.Rows = append(out.Rows, rowCells(h.DS, idx))
		}
		out.Meta = PageMeta{Total: total, Returned: len(out.Indices), Truncated: end < total}
		if end < total {
			tok, cerr := pagination.EncodeCursor(pagination.Cursor{
				Did: h.ID, Ft: string(h.FileType), Off: end, Ps: ps, Dv: h.Version,
				Q: expressionText, Qi: query, Qc: condsJSON,
			})
			if cerr != nil {
				return errCursorBuild
			}
			out.Meta.NextCursor = tok
		}
		return nil
	})
	switch {
	case errors.Is(err, errStaleCursor):
		return out, mcperr.New(mcperr.CursorInvalid, "dataset changed since cursor was issued")
	case errors.Is(err, errModelRequired):
		return out, mcperr.New(mcperr.ModelUnavailable, "")
	case errors.Is(err, errCursorBuild):
		return out, mcperr.New(mcperr.CursorBuildFailed, "")
	case errors.Is(err, datasets.ErrHandleNotFound):
		return out, mcperr.New(mcperr.InvalidHandle, "")
	case err != nil:
		return out, mcperr.Wrapf(mcperr.SearchFailed, "%v", err)
	}
	return out, nil
}

func registerApply(s *server.MCPServer, reg *Registry, limits runtime.Limits, deps Deps) {
	tool := mcp.NewTool(
		"apply_changes",
		mcp.WithDescription("Apply a planner-produced modification list to the dataset snapshot it was computed against. Every rowIndex is bounds-checked before any change lands; updates apply first, then deletes from highest index down, then adds append. Bumps the dataset version."),
		mcp.WithInputSchema[ApplyChangesInput](),
		mcp.WithOutputSchema[ApplyChangesOutput](),
	)
	s.AddTool(tool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ApplyChangesInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		if len(in.Modifications) > limits.MaxRowsPerOp {
			return mcperr.Wrapf(mcperr.LimitExceeded, "%d modifications exceed the per-operation cap of %d", len(in.Modifications), limits.MaxRowsPerOp), nil
		}

		applied, err := deps.Manager.Apply(in.DatasetID, in.Modifications)
		if err != nil {
			return applyError(err), nil
		}

		var out ApplyChangesOutput
		_ = deps.Manager.WithRead(in.DatasetID, func(h *datasets.Handle) error {
			out = ApplyChangesOutput{DatasetID: h.ID, Applied: applied, RowCount: len(h.DS.Rows), Version: h.Version}
			return nil
		})
		return structured(out, fmt.Sprintf("applied %d modifications; %d rows at version %d", out.Applied, out.RowCount, out.Version)), nil
	}))
	reg.Register(tool)
}

// planAgainst runs the planner and previewer for one descriptor under the
// handle's read lock. The returned result is non-nil on error.
func planAgainst(deps Deps, id string, desc plan.OperationDescriptor) (PlanChangesOutput, *mcp.CallToolResult) {
	var out PlanChangesOutput
	planner := plan.NewPlanner(deps.Log)
	err := deps.Manager.WithRead(id, func(h *datasets.Handle) error {
		mods, perr := planner.Plan(desc, h.DS)
		if perr != nil {
			return perr
		}
		out = PlanChangesOutput{
			DatasetID:     h.ID,
			Modifications: mods,
			Preview:       preview.Render(mods, h.DS),
			Summary:       fmt.Sprintf("%s: %d modifications planned", desc.Operation, len(mods)),
		}
		if desc.Summary != "" {
			out.Summary = desc.Summary + fmt.Sprintf(" (%d modifications)", len(mods))
		}
		return nil
	})
	switch {
	case errors.Is(err, datasets.ErrHandleNotFound):
		return out, mcperr.New(mcperr.InvalidHandle, "")
	case plan.IsKind(err, plan.KindMalformedDescriptor):
		return out, mcperr.Wrapf(mcperr.MalformedDescriptor, "%v", err)
	case err != nil:
		return out, mcperr.Wrapf(mcperr.PlanFailed, "%v", err)
	}
	return out, nil
}

// applyError maps application failures onto catalog codes.
func applyError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, datasets.ErrHandleNotFound):
		return mcperr.New(mcperr.InvalidHandle, "")
	case plan.IsKind(err, plan.KindRowOutOfRange):
		return mcperr.Wrapf(mcperr.RowOutOfRange, "%v", err)
	case plan.IsKind(err, plan.KindMalformedDescriptor):
		return mcperr.Wrapf(mcperr.MalformedDescriptor, "%v", err)
	}
	return mcperr.Wrapf(mcperr.ApplyFailed, "%v", err)
}

// openError maps dataset-open failures onto catalog codes.
func openError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.New(mcperr.PermissionDenied, "")
	case errors.Is(err, security.ErrUnsupportedExtension):
		return mcperr.New(mcperr.UnsupportedFormat, "")
	case errors.Is(err, security.ErrNotFound):
		return mcperr.New(mcperr.OpenFailed, "file not found")
	}
	return mcperr.Wrapf(mcperr.OpenFailed, "%v", err)
}

var (
	errStaleCursor   = errors.New("stale cursor")
	errCursorBuild   = errors.New("cursor build failed")
	errModelRequired = errors.New("model required")
)

// structured pairs a structured payload with a text summary for clients
// that ignore structured content.
func structured(out any, summary string) *mcp.CallToolResult {
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(summary)}
	return res
}

// rowCells renders one row's cells in header order.
func rowCells(ds *table.Dataset, idx int) []string {
	cells := make([]string, len(ds.Headers))
	for i, h := range ds.Headers {
		cells[i] = table.FormatCell(ds.Rows[idx][h])
	}
	return cells
}

// sampleDataset assembles a throwaway dataset for mapping prompts.
func sampleDataset(headers []string, rows [][]string) *table.Dataset {
	ds := &table.Dataset{Headers: headers}
	for _, rec := range rows {
		row := make(table.Row, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}
