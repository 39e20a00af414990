package core

import (
	"slices"

	"schedboard/pkg/domain"
)

// MoveOrder moves an order, from a run or from loose placement, into
// targetRunID at index. A negative or out-of-range index appends; the index is
// measured after the order has left its previous position.
func (b *Board) MoveOrder(orderID, targetRunID string, index int) MoveResult {
	return b.moveOrderIntoRun(orderID, targetRunID, index, false)
}

// CommitOrderToRun moves a loose order into a run. Orders that are not loose
// in a cell are rejected with INVALID_TARGET.
func (b *Board) CommitOrderToRun(orderID, runID string, index int) MoveResult {
	return b.moveOrderIntoRun(orderID, runID, index, true)
}

func (b *Board) moveOrderIntoRun(orderID, runID string, index int, requireLoose bool) MoveResult {
	s := &b.state
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Rejected(ReasonNotFound)
	}
	plan := MovePlan{
		Kind:       domain.MoveOrderToRun,
		Orders:     []Order{order},
		Target:     runID,
		SourceDate: order.Date,
	}
	if _, ok := s.runs[runID]; ok {
		plan.TargetResolved = true
		plan.TargetDate = order.Date
		if cellID, ok := s.runToCell[runID]; ok {
			plan.TargetDate = cellID.Date()
		}
	}
	if res := b.check(plan); !res.Success {
		return res
	}
	if _, loose := s.looseOrderToCell[orderID]; requireLoose && !loose {
		return domain.Rejected(ReasonInvalidTarget)
	}

	s.detachOrder(orderID)
	run := s.runs[runID]
	run.OrderIDs = insertAt(run.OrderIDs, orderID, index)
	s.runs[runID] = run
	s.reconcile()
	return domain.Succeeded()
}

// MoveOrderLoose places an order directly in a cell, outside any run. The
// cell is created when missing. Re-placing an order in the cell it already
// sits in is a no-op.
func (b *Board) MoveOrderLoose(orderID, targetCellID string) MoveResult {
	s := &b.state
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Rejected(ReasonNotFound)
	}
	plan := MovePlan{
		Kind:       domain.MoveOrderToCell,
		Orders:     []Order{order},
		Target:     targetCellID,
		SourceDate: order.Date,
	}
	cellID, err := domain.ParseCellID(targetCellID)
	if err == nil {
		plan.TargetResolved = true
		plan.TargetDate = cellID.Date()
	}
	if res := b.check(plan); !res.Success {
		return res
	}
	if current, ok := s.looseOrderToCell[orderID]; ok && current == cellID {
		return domain.Succeeded()
	}

	s.detachOrder(orderID)
	cell := s.cellOrEmpty(cellID)
	if !slices.Contains(cell.LooseOrderIDs, orderID) {
		cell.LooseOrderIDs = append(slices.Clone(cell.LooseOrderIDs), orderID)
	}
	s.cells[cellID] = cell
	s.reconcile()
	return domain.Succeeded()
}

// MoveRun moves a run with all of its orders to targetCellID at index. Member
// orders keep their run membership and take the target cell's date.
func (b *Board) MoveRun(runID, targetCellID string, index int) MoveResult {
	s := &b.state
	run, ok := s.runs[runID]
	if !ok {
		return domain.Rejected(ReasonInvalidTarget)
	}
	sourceCell, hasSource := s.runToCell[runID]
	plan := MovePlan{
		Kind:       domain.MoveRunToCell,
		Orders:     s.runOrders(run),
		Target:     targetCellID,
		SourceDate: sourceCell.Date(),
	}
	cellID, err := domain.ParseCellID(targetCellID)
	if err == nil {
		plan.TargetResolved = true
		plan.TargetDate = cellID.Date()
	}
	if res := b.check(plan); !res.Success {
		return res
	}

	if hasSource {
		src := s.cells[sourceCell]
		src.RunIDs = removeID(src.RunIDs, runID)
		s.cells[sourceCell] = src
	}
	dst := s.cellOrEmpty(cellID)
	dst.RunIDs = insertAt(dst.RunIDs, runID, index)
	s.cells[cellID] = dst
	s.reconcile()
	return domain.Succeeded()
}
