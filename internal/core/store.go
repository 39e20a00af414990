package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"

	"schedboard/pkg/domain"
)

type boardState struct {
	orders map[string]Order
	runs   map[string]Run
	cells  map[CellID]Cell

	// Derived indices, rebuilt by reconcile after every mutation.
	orderToRun       map[string]string
	runToCell        map[string]CellID
	looseOrderToCell map[string]CellID

	trucks       []string
	blockedDates map[string]struct{}
	visibleWeeks int
}

func newBoardState() boardState {
	return boardState{
		orders:           make(map[string]Order),
		runs:             make(map[string]Run),
		cells:            make(map[CellID]Cell),
		orderToRun:       make(map[string]string),
		runToCell:        make(map[string]CellID),
		looseOrderToCell: make(map[string]CellID),
		trucks:           []string{},
		blockedDates:     make(map[string]struct{}),
		visibleWeeks:     domain.DefaultVisibleWeeks,
	}
}

// reconcile rebuilds the three derived indices from runs and cells, then
// re-dates every placed order to the date of the cell that holds it. Cells
// whose key has no date leave their orders' dates alone.
func (s *boardState) reconcile() {
	orderToRun := make(map[string]string, len(s.orders))
	runToCell := make(map[string]CellID, len(s.runs))
	looseOrderToCell := make(map[string]CellID)

	for id, run := range s.runs {
		for _, orderID := range run.OrderIDs {
			orderToRun[orderID] = id
		}
	}
	for id, cell := range s.cells {
		for _, runID := range cell.RunIDs {
			runToCell[runID] = id
		}
		for _, orderID := range cell.LooseOrderIDs {
			looseOrderToCell[orderID] = id
		}
	}
	s.orderToRun = orderToRun
	s.runToCell = runToCell
	s.looseOrderToCell = looseOrderToCell

	for orderID, runID := range orderToRun {
		if cellID, ok := runToCell[runID]; ok && cellID.Valid() {
			s.setOrderDate(orderID, cellID.Date())
		}
	}
	for orderID, cellID := range looseOrderToCell {
		if cellID.Valid() {
			s.setOrderDate(orderID, cellID.Date())
		}
	}
}

func (s *boardState) setOrderDate(orderID, date string) {
	o, ok := s.orders[orderID]
	if !ok || o.Date == date {
		return
	}
	o.Date = date
	s.orders[orderID] = o
}

// detachOrder removes an order from whichever run or loose list holds it.
// Indices are left stale until reconcile.
func (s *boardState) detachOrder(orderID string) {
	if runID, ok := s.orderToRun[orderID]; ok {
		run := s.runs[runID]
		run.OrderIDs = removeID(run.OrderIDs, orderID)
		s.runs[runID] = run
	}
	if cellID, ok := s.looseOrderToCell[orderID]; ok {
		cell := s.cells[cellID]
		cell.LooseOrderIDs = removeID(cell.LooseOrderIDs, orderID)
		s.cells[cellID] = cell
	}
}

func (s *boardState) cellOrEmpty(id CellID) Cell {
	if cell, ok := s.cells[id]; ok {
		return cell
	}
	return Cell{RunIDs: []string{}, LooseOrderIDs: []string{}}
}

func (s *boardState) runOrders(run Run) []Order {
	out := make([]Order, 0, len(run.OrderIDs))
	for _, id := range run.OrderIDs {
		if o, ok := s.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Board is the scheduling-board reconciliation store. It owns orders, runs,
// cells and their derived indices. Board is not safe for concurrent use; it
// expects a single owner (see Service).
type Board struct {
	state       boardState
	engine      *RulesEngine
	newID       func() string
	onRuleError func(plan MovePlan, err error)
	onWarning   func(plan MovePlan, v Violation)
}

// BoardOption configures a Board.
type BoardOption func(*Board)

// WithRulesEngine replaces the default move rules.
func WithRulesEngine(engine *RulesEngine) BoardOption {
	return func(b *Board) {
		if engine != nil {
			b.engine = engine
		}
	}
}

// WithIDGenerator sets the run id generator used by CreateRun.
func WithIDGenerator(fn func() string) BoardOption {
	return func(b *Board) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// WithRuleErrorHandler receives errors returned by rules during move validation.
func WithRuleErrorHandler(fn func(plan MovePlan, err error)) BoardOption {
	return func(b *Board) { b.onRuleError = fn }
}

// WithRuleWarningHandler receives non-blocking violations of moves that pass
// validation.
func WithRuleWarningHandler(fn func(plan MovePlan, v Violation)) BoardOption {
	return func(b *Board) { b.onWarning = fn }
}

// NewBoard constructs an empty board.
func NewBoard(opts ...BoardOption) *Board {
	b := &Board{
		state:  newBoardState(),
		engine: NewDefaultRulesEngine(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Hydrate replaces the whole board with payload. Every slice and map is
// copied, colours are recomputed from status, shipped and invoiced orders are
// forced read-only, and all indices are rebuilt. Cell keys without a date are
// kept as given and reported by CheckConsistency.
func (b *Board) Hydrate(payload Payload) {
	st := newBoardState()
	for _, o := range payload.Orders {
		o.Color = domain.StatusColor(o.Status)
		if o.Status.Frozen() {
			o.IsReadOnly = true
		}
		st.orders[o.ID] = o
	}
	for _, r := range payload.Runs {
		st.runs[r.ID] = domain.CloneRun(r)
	}
	for id, c := range payload.Cells {
		st.cells[CellID(id)] = domain.CloneCell(c)
	}
	st.trucks = append(st.trucks, payload.Trucks...)
	for _, d := range payload.BlockedDates {
		st.blockedDates[d] = struct{}{}
	}
	if payload.VisibleWeeks != nil {
		st.visibleWeeks = *payload.VisibleWeeks
	}
	st.reconcile()
	b.state = st
}

func (b *Board) check(plan MovePlan) MoveResult {
	res, err := b.engine.Evaluate(context.Background(), boardView{state: &b.state}, plan)
	if err != nil {
		if b.onRuleError != nil {
			b.onRuleError(plan, err)
		}
		return domain.Rejected(ReasonRuleError)
	}
	if v, ok := res.FirstBlocking(); ok {
		return domain.Rejected(v.Reason)
	}
	if b.onWarning != nil {
		for _, v := range res.Violations {
			b.onWarning(plan, v)
		}
	}
	return domain.Succeeded()
}

// boardView exposes the live state to rules without allowing mutation.
type boardView struct {
	state *boardState
}

func (v boardView) IsDateLocked(date string) bool {
	_, ok := v.state.blockedDates[date]
	return ok
}

// SelectOrder returns the order with id.
func (b *Board) SelectOrder(id string) (Order, bool) {
	o, ok := b.state.orders[id]
	return o, ok
}

// SelectRun returns a copy of the run with id.
func (b *Board) SelectRun(id string) (Run, bool) {
	r, ok := b.state.runs[id]
	if !ok {
		return Run{}, false
	}
	return domain.CloneRun(r), true
}

// SelectCellRunIDs returns the run ids of a cell in board order. Unknown cells
// yield an empty slice.
func (b *Board) SelectCellRunIDs(cellID string) []string {
	return slices.Clone(b.state.cellOrEmpty(CellID(cellID)).RunIDs)
}

// SelectCellLooseOrderIDs returns the loose order ids of a cell in board order.
func (b *Board) SelectCellLooseOrderIDs(cellID string) []string {
	return slices.Clone(b.state.cellOrEmpty(CellID(cellID)).LooseOrderIDs)
}

// SelectIsDateLocked reports whether date is capacity locked.
func (b *Board) SelectIsDateLocked(date string) bool {
	return boardView{state: &b.state}.IsDateLocked(date)
}

// SelectRunCell returns the cell holding a run.
func (b *Board) SelectRunCell(runID string) (CellID, bool) {
	id, ok := b.state.runToCell[runID]
	return id, ok
}

// SelectOrderRun returns the run holding an order.
func (b *Board) SelectOrderRun(orderID string) (string, bool) {
	id, ok := b.state.orderToRun[orderID]
	return id, ok
}

// SelectLooseOrderCell returns the cell an order sits in loose.
func (b *Board) SelectLooseOrderCell(orderID string) (CellID, bool) {
	id, ok := b.state.looseOrderToCell[orderID]
	return id, ok
}

// Trucks returns the known truck zone ids in board order.
func (b *Board) Trucks() []string { return slices.Clone(b.state.trucks) }

// VisibleWeeks returns the display window size.
func (b *Board) VisibleWeeks() int { return b.state.visibleWeeks }

// BlockedDates returns the locked dates in ascending order.
func (b *Board) BlockedDates() []string {
	out := make([]string, 0, len(b.state.blockedDates))
	for d := range b.state.blockedDates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// UnscheduledOrderIDs lists orders that are in no run and no cell, ordered by
// order number.
func (b *Board) UnscheduledOrderIDs() []string {
	var out []Order
	for id, o := range b.state.orders {
		if _, ok := b.state.orderToRun[id]; ok {
			continue
		}
		if _, ok := b.state.looseOrderToCell[id]; ok {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderNumber != out[j].OrderNumber {
			return out[i].OrderNumber < out[j].OrderNumber
		}
		return out[i].ID < out[j].ID
	})
	ids := make([]string, 0, len(out))
	for _, o := range out {
		ids = append(ids, o.ID)
	}
	return ids
}

// Snapshot exports the board as a payload that Hydrate accepts. Orders and
// runs are sorted by id.
func (b *Board) Snapshot() Payload {
	weeks := b.state.visibleWeeks
	p := Payload{
		Orders:       make([]Order, 0, len(b.state.orders)),
		Runs:         make([]Run, 0, len(b.state.runs)),
		Cells:        make(map[string]Cell, len(b.state.cells)),
		Trucks:       b.Trucks(),
		VisibleWeeks: &weeks,
		BlockedDates: b.BlockedDates(),
	}
	for _, o := range b.state.orders {
		p.Orders = append(p.Orders, o)
	}
	for _, r := range b.state.runs {
		p.Runs = append(p.Runs, domain.CloneRun(r))
	}
	for id, c := range b.state.cells {
		p.Cells[string(id)] = domain.CloneCell(c)
	}
	sort.Slice(p.Orders, func(i, j int) bool { return p.Orders[i].ID < p.Orders[j].ID })
	sort.Slice(p.Runs, func(i, j int) bool { return p.Runs[i].ID < p.Runs[j].ID })
	return p
}

// CheckConsistency verifies that every derived index agrees with the runs and
// cells it is derived from and that placed orders carry their cell's date.
// A non-nil error indicates a defect in a mutating operation.
func (b *Board) CheckConsistency() error {
	s := &b.state
	var errs []error
	placed := make(map[string]string)
	place := func(orderID, where string) {
		if prev, ok := placed[orderID]; ok {
			errs = append(errs, fmt.Errorf("order %s placed in both %s and %s", orderID, prev, where))
			return
		}
		placed[orderID] = where
	}

	for runID, run := range s.runs {
		for _, orderID := range run.OrderIDs {
			place(orderID, "run "+runID)
			if got := s.orderToRun[orderID]; got != runID {
				errs = append(errs, fmt.Errorf("orderToRun[%s]=%q, want %q", orderID, got, runID))
			}
		}
	}
	seenRuns := make(map[string]CellID)
	for cellID, cell := range s.cells {
		if !cellID.Valid() {
			errs = append(errs, fmt.Errorf("cell %q: missing %q separator", cellID, domain.CellSeparator))
		}
		for _, runID := range cell.RunIDs {
			if prev, ok := seenRuns[runID]; ok {
				errs = append(errs, fmt.Errorf("run %s listed in cells %s and %s", runID, prev, cellID))
			}
			seenRuns[runID] = cellID
			if _, ok := s.runs[runID]; !ok {
				errs = append(errs, fmt.Errorf("cell %s lists unknown run %s", cellID, runID))
			}
			if got := s.runToCell[runID]; got != cellID {
				errs = append(errs, fmt.Errorf("runToCell[%s]=%q, want %q", runID, got, cellID))
			}
		}
		for _, orderID := range cell.LooseOrderIDs {
			place(orderID, "cell "+string(cellID))
			if got := s.looseOrderToCell[orderID]; got != cellID {
				errs = append(errs, fmt.Errorf("looseOrderToCell[%s]=%q, want %q", orderID, got, cellID))
			}
		}
	}

	for orderID, runID := range s.orderToRun {
		if !slices.Contains(s.runs[runID].OrderIDs, orderID) {
			errs = append(errs, fmt.Errorf("orderToRun[%s] points at %s which does not hold it", orderID, runID))
		}
	}
	for runID, cellID := range s.runToCell {
		if !slices.Contains(s.cells[cellID].RunIDs, runID) {
			errs = append(errs, fmt.Errorf("runToCell[%s] points at %s which does not hold it", runID, cellID))
		}
	}
	for orderID, cellID := range s.looseOrderToCell {
		if !slices.Contains(s.cells[cellID].LooseOrderIDs, orderID) {
			errs = append(errs, fmt.Errorf("looseOrderToCell[%s] points at %s which does not hold it", orderID, cellID))
		}
		if o, ok := s.orders[orderID]; ok && cellID.Valid() && o.Date != cellID.Date() {
			errs = append(errs, fmt.Errorf("loose order %s dated %s in cell %s", orderID, o.Date, cellID))
		}
	}
	for orderID, runID := range s.orderToRun {
		cellID, ok := s.runToCell[runID]
		if !ok || !cellID.Valid() {
			continue
		}
		if o, ok := s.orders[orderID]; ok && o.Date != cellID.Date() {
			errs = append(errs, fmt.Errorf("order %s dated %s in run %s on %s", orderID, o.Date, runID, cellID))
		}
	}
	return errors.Join(errs...)
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
}

// insertAt places id at index; a negative or out-of-range index appends.
func insertAt(ids []string, id string, index int) []string {
	out := slices.Clone(ids)
	if index < 0 || index > len(out) {
		return append(out, id)
	}
	return slices.Insert(out, index, id)
}

// moveIndex moves the element at from to position to. It reports false and
// leaves ids untouched when either index is out of range or they are equal.
func moveIndex(ids []string, from, to int) ([]string, bool) {
	if from == to || from < 0 || to < 0 || from >= len(ids) || to >= len(ids) {
		return ids, false
	}
	out := slices.Clone(ids)
	v := out[from]
	out = slices.Delete(out, from, from+1)
	out = slices.Insert(out, to, v)
	return out, true
}
