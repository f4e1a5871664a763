package datasets

import (
	"sort"

	"github.com/loomworks/dataloom/internal/plan"
	"github.com/loomworks/dataloom/internal/table"
)

// Apply validates a modification list against the handle's dataset and
// applies it under the write lock. Updates run first, then deletes in
// descending row order so earlier indices stay valid, then adds are
// appended. The dataset version is bumped once on any change.
func (m *Manager) Apply(id string, mods []plan.Modification) (int, error) {
	var applied int
	err := m.WithWrite(id, func(h *Handle) error {
		if err := plan.ValidateModifications(mods, len(h.DS.Rows)); err != nil {
			return err
		}

		var deletes []int
		for _, mod := range mods {
			switch mod.Operation {
			case plan.OpUpdate:
				row := h.DS.Rows[*mod.RowIndex]
				for col, val := range mod.Data {
					row[col] = val
				}
				applied++
			case plan.OpDelete:
				deletes = append(deletes, *mod.RowIndex)
			case plan.OpAdd:
				row := make(table.Row, len(h.DS.Headers))
				for col, val := range mod.NewRow {
					row[col] = val
				}
				for _, hdr := range h.DS.Headers {
					if _, ok := row[hdr]; !ok {
						row[hdr] = ""
					}
				}
				h.DS.Rows = append(h.DS.Rows, row)
				applied++
			}
		}

		sort.Sort(sort.Reverse(sort.IntSlice(deletes)))
		prev := -1
		for _, idx := range deletes {
			if idx == prev {
				continue
			}
			prev = idx
			h.DS.Rows = append(h.DS.Rows[:idx], h.DS.Rows[idx+1:]...)
			applied++
		}

		if applied > 0 {
			h.Version++
		}
		return nil
	})
	return applied, err
}
