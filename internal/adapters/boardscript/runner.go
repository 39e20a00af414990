package boardscript

import (
	"context"
	"fmt"
	"strings"

	"schedboard/internal/core"
	logx "schedboard/pkg/logx"
)

// Board is the subset of core.Service a script drives.
type Board interface {
	MoveOrder(ctx context.Context, orderID, runID string, index int) (core.MoveResult, error)
	CommitOrderToRun(ctx context.Context, orderID, runID string, index int) (core.MoveResult, error)
	MoveOrderLoose(ctx context.Context, orderID, cellID string) (core.MoveResult, error)
	MoveRun(ctx context.Context, runID, cellID string, index int) (core.MoveResult, error)
	CreateRun(ctx context.Context, cellID, name string) (string, bool, error)
	DissolveRun(ctx context.Context, runID string) (bool, error)
	ToggleDateLock(ctx context.Context, date string) (bool, error)
	ReorderInRun(ctx context.Context, runID string, from, to int) error
	ReorderRunsInCell(ctx context.Context, cellID string, from, to int) error
	View(fn func(*core.Board))
}

var _ Board = (*core.Service)(nil)

// Result reports the outcome of one step.
type Result struct {
	Step    int         `json:"step"`
	Op      Op          `json:"op"`
	Success bool        `json:"success"`
	Reason  core.Reason `json:"reason,omitempty"`
	RunID   string      `json:"runId,omitempty"`
	Locked  *bool       `json:"locked,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Runner executes scripts.
type Runner struct {
	board Board
	log   logx.Logger
}

// NewRunner returns a runner driving board.
func NewRunner(board Board, log logx.Logger) *Runner {
	return &Runner{board: board, log: log}
}

// Run executes the steps in order and returns one Result per executed step.
// Rejected moves are results, not errors; an error from the board (for
// example a failed snapshot save) stops the run and is returned.
func (r *Runner) Run(ctx context.Context, s Script) ([]Result, error) {
	aliases := map[string]string{}
	results := make([]Result, 0, len(s.Steps))
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.step(ctx, st, aliases)
		res.Step, res.Op = i+1, st.Op
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			return results, fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
		results = append(results, res)
		r.log.Debug("script step", logx.Int("step", i+1), logx.String("op", string(st.Op)), logx.Bool("success", res.Success), logx.String("reason", string(res.Reason)))
		if !res.Success && s.StopOnReject {
			r.log.Info("script stopped on rejected step", logx.Int("step", i+1), logx.String("reason", string(res.Reason)))
			break
		}
	}
	return results, nil
}

func (r *Runner) step(ctx context.Context, st Step, aliases map[string]string) (Result, error) {
	runID := st.Run
	if ref, ok := strings.CutPrefix(runID, "$"); ok {
		id, found := aliases[ref]
		if !found {
			return Result{}, fmt.Errorf("unknown run alias %q", ref)
		}
		runID = id
	}
	index := core.Append
	if st.Index != nil {
		index = *st.Index
	}
	fromMove := func(res core.MoveResult, err error) (Result, error) {
		return Result{Success: res.Success, Reason: res.Reason}, err
	}

	switch st.Op {
	case OpMoveOrder:
		return fromMove(r.board.MoveOrder(ctx, st.Order, runID, index))
	case OpCommitOrderToRun:
		return fromMove(r.board.CommitOrderToRun(ctx, st.Order, runID, index))
	case OpMoveOrderLoose:
		return fromMove(r.board.MoveOrderLoose(ctx, st.Order, st.Cell))
	case OpMoveRun:
		return fromMove(r.board.MoveRun(ctx, runID, st.Cell, index))
	case OpCreateRun:
		id, ok, err := r.board.CreateRun(ctx, st.Cell, st.Name)
		res := Result{Success: ok, RunID: id}
		if !ok {
			res.Reason = core.ReasonInvalidTarget
		}
		if ok && st.As != "" {
			aliases[st.As] = id
		}
		return res, err
	case OpDissolveRun:
		ok, err := r.board.DissolveRun(ctx, runID)
		res := Result{Success: ok}
		if !ok {
			res.Reason = core.ReasonInvalidTarget
		}
		return res, err
	case OpToggleDateLock:
		locked, err := r.board.ToggleDateLock(ctx, st.Date)
		return Result{Success: err == nil, Locked: &locked}, err
	case OpReorderInRun:
		err := r.board.ReorderInRun(ctx, runID, st.From, st.To)
		return Result{Success: err == nil}, err
	case OpReorderRunsInCell:
		err := r.board.ReorderRunsInCell(ctx, st.Cell, st.From, st.To)
		return Result{Success: err == nil}, err
	case OpCheck:
		var checkErr error
		r.board.View(func(b *core.Board) { checkErr = b.CheckConsistency() })
		if checkErr != nil {
			return Result{}, checkErr
		}
		return Result{Success: true}, nil
	default:
		return Result{}, fmt.Errorf("unknown op %q", st.Op)
	}
}
