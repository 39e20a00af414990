package core

import (
	"fmt"
	"slices"

	"schedboard/pkg/domain"
)

// CreateRun adds an empty run to cellID, creating the cell when missing. An
// empty name becomes "Run N" where N counts the runs in that cell including
// the new one. It reports false when cellID cannot be parsed.
func (b *Board) CreateRun(cellID, name string) (string, bool) {
	id, err := domain.ParseCellID(cellID)
	if err != nil {
		return "", false
	}
	s := &b.state
	cell := s.cellOrEmpty(id)
	if name == "" {
		name = fmt.Sprintf("Run %d", len(cell.RunIDs)+1)
	}
	runID := b.newID()
	s.runs[runID] = Run{ID: runID, Name: name, OrderIDs: []string{}}
	cell.RunIDs = append(slices.Clone(cell.RunIDs), runID)
	s.cells[id] = cell
	s.reconcile()
	return runID, true
}

// DissolveRun deletes a run and hands its orders on: appended to the previous
// run in the cell, else prepended to the next one, else left loose in the
// cell. It reports false for unknown runs and runs that are not in a cell.
func (b *Board) DissolveRun(runID string) bool {
	s := &b.state
	run, ok := s.runs[runID]
	if !ok {
		return false
	}
	cellID, ok := s.runToCell[runID]
	if !ok {
		return false
	}
	cell := s.cells[cellID]
	idx := slices.Index(cell.RunIDs, runID)
	switch {
	case idx > 0:
		prevID := cell.RunIDs[idx-1]
		prev := s.runs[prevID]
		prev.OrderIDs = append(slices.Clone(prev.OrderIDs), run.OrderIDs...)
		s.runs[prevID] = prev
	case idx >= 0 && idx+1 < len(cell.RunIDs):
		nextID := cell.RunIDs[idx+1]
		next := s.runs[nextID]
		next.OrderIDs = append(slices.Clone(run.OrderIDs), next.OrderIDs...)
		s.runs[nextID] = next
	default:
		cell.LooseOrderIDs = append(slices.Clone(cell.LooseOrderIDs), run.OrderIDs...)
	}
	cell.RunIDs = removeID(cell.RunIDs, runID)
	s.cells[cellID] = cell
	delete(s.runs, runID)
	s.reconcile()
	return true
}

// ToggleDateLock flips the capacity lock of date.
func (b *Board) ToggleDateLock(date string) {
	if _, ok := b.state.blockedDates[date]; ok {
		delete(b.state.blockedDates, date)
		return
	}
	b.state.blockedDates[date] = struct{}{}
}

// ReorderInRun moves the order at from to position to within a run. Unknown
// runs and invalid or equal indices are ignored.
func (b *Board) ReorderInRun(runID string, from, to int) {
	run, ok := b.state.runs[runID]
	if !ok {
		return
	}
	if ids, moved := moveIndex(run.OrderIDs, from, to); moved {
		run.OrderIDs = ids
		b.state.runs[runID] = run
	}
}

// ReorderRunsInCell moves the run at from to position to within a cell.
// Unknown cells and invalid or equal indices are ignored.
func (b *Board) ReorderRunsInCell(cellID string, from, to int) {
	cell, ok := b.state.cells[CellID(cellID)]
	if !ok {
		return
	}
	if ids, moved := moveIndex(cell.RunIDs, from, to); moved {
		cell.RunIDs = ids
		b.state.cells[CellID(cellID)] = cell
	}
}
