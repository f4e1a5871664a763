// Package plan turns structured operation descriptors into validated,
// ordered lists of row-level modifications.
package plan

import (
	"github.com/loomworks/dataloom/internal/predicate"
	"github.com/loomworks/dataloom/internal/table"
)

// Op enumerates the mutation kinds a descriptor may request.
type Op string

const (
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpAdd    Op = "add"
)

// OperationDescriptor is the structured instruction consumed by the
// planner, typically produced by the instruction source from a
// natural-language request. Operation is mandatory; the other fields are
// interpreted per operation.
type OperationDescriptor struct {
	Operation  Op                    `json:"operation" validate:"required,oneof=update delete add"`
	Column     string                `json:"column,omitempty"`
	Conditions []predicate.Condition `json:"conditions,omitempty" validate:"dive"`
	NewValue   *string               `json:"newValue,omitempty"`
	NewRow     table.Row             `json:"newRow,omitempty"`
	Summary    string                `json:"summary,omitempty"`
}

// Modification is one planned row-level change. RowIndex addresses the
// dataset snapshot the plan was computed against and is absent for add.
type Modification struct {
	Operation Op             `json:"operation"`
	RowIndex  *int           `json:"rowIndex,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	NewRow    table.Row      `json:"newRow,omitempty"`
}
