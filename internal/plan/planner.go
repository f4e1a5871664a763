package plan

import (
	"github.com/rs/zerolog"

	"github.com/loomworks/dataloom/internal/predicate"
	"github.com/loomworks/dataloom/internal/table"
)

// Planner turns operation descriptors into concrete modification lists
// against a dataset snapshot. Planning is a pure function of its inputs:
// the same descriptor and snapshot always yield the same list.
type Planner struct {
	log zerolog.Logger
}

// NewPlanner constructs a Planner logging through the given logger.
func NewPlanner(log zerolog.Logger) *Planner {
	return &Planner{log: log}
}

// Plan validates the descriptor and produces the ordered modification
// list. Row order follows ds.Rows; an empty condition list matches every
// row. Add is not row-scoped and emits exactly one modification from the
// descriptor's newRow.
func (p *Planner) Plan(desc OperationDescriptor, ds *table.Dataset) ([]Modification, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}

	if desc.Operation == OpAdd {
		return []Modification{{Operation: OpAdd, NewRow: desc.NewRow}}, nil
	}

	mods := []Modification{}
	for i := range ds.Rows {
		if !predicate.EvaluateAll(ds.Rows[i], desc.Conditions) {
			continue
		}
		idx := i
		switch desc.Operation {
		case OpUpdate:
			mods = append(mods, Modification{
				Operation: OpUpdate,
				RowIndex:  &idx,
				Data:      map[string]any{desc.Column: *desc.NewValue},
			})
		case OpDelete:
			mods = append(mods, Modification{Operation: OpDelete, RowIndex: &idx})
		}
	}

	p.log.Debug().
		Str("operation", string(desc.Operation)).
		Int("rows", len(ds.Rows)).
		Int("modifications", len(mods)).
		Msg("plan computed")
	return mods, nil
}

// validateDescriptor enforces the descriptor contract before any
// modification is considered usable. Violations are structured errors,
// never silently dropped.
func validateDescriptor(desc OperationDescriptor) error {
	switch desc.Operation {
	case "":
		return malformed("operation is required")
	case OpUpdate:
		if desc.Column == "" {
			return malformed("update requires a target column")
		}
		if desc.NewValue == nil {
			return malformed("update requires a new value")
		}
	case OpDelete:
		// Conditions alone drive deletes; nothing further required.
	case OpAdd:
		if len(desc.NewRow) == 0 {
			return malformed("add requires a new row")
		}
	default:
		return malformed("unknown operation %q", desc.Operation)
	}
	return nil
}

// ValidateModifications bounds-checks a modification list against a
// snapshot of rowCount rows. This is the consumer-side contract: callers
// apply update/delete by rowIndex against the same snapshot the plan was
// computed from.
func ValidateModifications(mods []Modification, rowCount int) error {
	for i, m := range mods {
		switch m.Operation {
		case OpUpdate, OpDelete:
			if m.RowIndex == nil {
				return malformed("modification %d: %s without rowIndex", i, m.Operation)
			}
			if *m.RowIndex < 0 || *m.RowIndex >= rowCount {
				return outOfRange("modification %d: rowIndex %d outside [0,%d)", i, *m.RowIndex, rowCount)
			}
			if m.Operation == OpUpdate && len(m.Data) == 0 {
				return malformed("modification %d: update touches no fields", i)
			}
		case OpAdd:
			if len(m.NewRow) == 0 {
				return malformed("modification %d: add without newRow", i)
			}
		default:
			return malformed("modification %d: unknown operation %q", i, m.Operation)
		}
	}
	return nil
}
