package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"schedboard/pkg/domain"
	"schedboard/pkg/logx"
)

// RejectedError marks a traced operation that failed validation.
type RejectedError struct {
	Operation string
	Reason    Reason
}

func (e RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Operation, e.Reason)
}

// Service owns a Board on behalf of concurrent callers. It serialises every
// operation, persists the snapshot after each successful mutation, and reports
// logs, metrics and spans.
//
// A failed Save does not roll the board back: the mutation stays applied in
// memory and the operation returns the persistence error. The next successful
// Save writes it out.
type Service struct {
	mu      sync.Mutex
	board   *Board
	store   domain.SnapshotStore
	log     logx.Logger
	metrics MetricsRecorder
	tracer  Tracer
	nowFn   func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSnapshotStore persists the board after each successful mutation.
func WithSnapshotStore(store domain.SnapshotStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithLogger sets the service logger.
func WithLogger(log logx.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the span sink.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the clock used for durations.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewService wraps board. A nil board gets a fresh default board.
func NewService(board *Board, opts ...ServiceOption) *Service {
	if board == nil {
		board = NewBoard()
	}
	s := &Service{
		board:   board,
		log:     logx.Nop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if board.onRuleError == nil {
		board.onRuleError = func(plan MovePlan, err error) {
			s.log.Error("rule evaluation failed", logx.String("kind", string(plan.Kind)), logx.String("target", plan.Target), logx.Err(err))
		}
	}
	if board.onWarning == nil {
		board.onWarning = func(plan MovePlan, v Violation) {
			s.log.Warn("rule warning", logx.String("rule", v.Rule), logx.String("kind", string(plan.Kind)), logx.String("target", plan.Target), logx.String("detail", v.Message))
		}
	}
	return s
}

// Load hydrates the board from the snapshot store. It returns
// domain.ErrNoSnapshot when the store is empty and an error when the service
// has no store.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return errors.New("load board: no snapshot store configured")
	}
	payload, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	s.mu.Lock()
	s.board.Hydrate(payload)
	s.mu.Unlock()
	s.log.Info("board loaded", logx.Int("orders", len(payload.Orders)), logx.Int("runs", len(payload.Runs)))
	return nil
}

// Hydrate replaces the board state and persists it.
func (s *Service) Hydrate(ctx context.Context, payload Payload) error {
	_, err := s.apply(ctx, "hydrate", OperationRef{}, func(b *Board) MoveResult {
		b.Hydrate(payload)
		return domain.Succeeded()
	})
	return err
}

// MoveOrder runs Board.MoveOrder.
func (s *Service) MoveOrder(ctx context.Context, orderID, runID string, index int) (MoveResult, error) {
	return s.apply(ctx, "move_order", OperationRef{Subject: orderID, Target: runID}, func(b *Board) MoveResult {
		return b.MoveOrder(orderID, runID, index)
	})
}

// MoveOrderLoose runs Board.MoveOrderLoose.
func (s *Service) MoveOrderLoose(ctx context.Context, orderID, cellID string) (MoveResult, error) {
	return s.apply(ctx, "move_order_loose", OperationRef{Subject: orderID, Target: cellID}, func(b *Board) MoveResult {
		return b.MoveOrderLoose(orderID, cellID)
	})
}

// CommitOrderToRun runs Board.CommitOrderToRun.
func (s *Service) CommitOrderToRun(ctx context.Context, orderID, runID string, index int) (MoveResult, error) {
	return s.apply(ctx, "commit_order_to_run", OperationRef{Subject: orderID, Target: runID}, func(b *Board) MoveResult {
		return b.CommitOrderToRun(orderID, runID, index)
	})
}

// MoveRun runs Board.MoveRun.
func (s *Service) MoveRun(ctx context.Context, runID, cellID string, index int) (MoveResult, error) {
	return s.apply(ctx, "move_run", OperationRef{Subject: runID, Target: cellID}, func(b *Board) MoveResult {
		return b.MoveRun(runID, cellID, index)
	})
}

// CreateRun runs Board.CreateRun.
func (s *Service) CreateRun(ctx context.Context, cellID, name string) (string, bool, error) {
	var runID string
	res, err := s.apply(ctx, "create_run", OperationRef{Target: cellID}, func(b *Board) MoveResult {
		id, ok := b.CreateRun(cellID, name)
		if !ok {
			return domain.Rejected(ReasonInvalidTarget)
		}
		runID = id
		return domain.Succeeded()
	})
	return runID, res.Success, err
}

// DissolveRun runs Board.DissolveRun.
func (s *Service) DissolveRun(ctx context.Context, runID string) (bool, error) {
	res, err := s.apply(ctx, "dissolve_run", OperationRef{Subject: runID}, func(b *Board) MoveResult {
		if !b.DissolveRun(runID) {
			return domain.Rejected(ReasonInvalidTarget)
		}
		return domain.Succeeded()
	})
	return res.Success, err
}

// ToggleDateLock flips a date lock and reports whether the date is now locked.
func (s *Service) ToggleDateLock(ctx context.Context, date string) (bool, error) {
	var locked bool
	_, err := s.apply(ctx, "toggle_date_lock", OperationRef{Target: date}, func(b *Board) MoveResult {
		b.ToggleDateLock(date)
		locked = b.SelectIsDateLocked(date)
		return domain.Succeeded()
	})
	return locked, err
}

// ReorderInRun runs Board.ReorderInRun.
func (s *Service) ReorderInRun(ctx context.Context, runID string, from, to int) error {
	_, err := s.apply(ctx, "reorder_in_run", OperationRef{Target: runID}, func(b *Board) MoveResult {
		b.ReorderInRun(runID, from, to)
		return domain.Succeeded()
	})
	return err
}

// ReorderRunsInCell runs Board.ReorderRunsInCell.
func (s *Service) ReorderRunsInCell(ctx context.Context, cellID string, from, to int) error {
	_, err := s.apply(ctx, "reorder_runs_in_cell", OperationRef{Target: cellID}, func(b *Board) MoveResult {
		b.ReorderRunsInCell(cellID, from, to)
		return domain.Succeeded()
	})
	return err
}

// View runs fn against the board while holding the service lock. fn must not
// mutate the board.
func (s *Service) View(fn func(*Board)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.board)
}

// Snapshot returns a deep copy of the board state.
func (s *Service) Snapshot() Payload {
	var p Payload
	s.View(func(b *Board) { p = b.Snapshot() })
	return p
}

// Close releases the snapshot store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (s *Service) apply(ctx context.Context, op string, ref OperationRef, fn func(*Board) MoveResult) (res MoveResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, op, ref)
	started := s.nowFn()
	defer func() {
		outcome := outcomeLabel(res)
		if err != nil {
			outcome = "error"
		}
		s.metrics.Observe(ctx, op, outcome, s.nowFn().Sub(started))
		spanErr := err
		if spanErr == nil && !res.Success {
			spanErr = RejectedError{Operation: op, Reason: res.Reason}
		}
		span.End(spanErr)
	}()

	res = fn(s.board)
	s.log.Debug("board operation", logx.String("op", op), logx.String("outcome", outcomeLabel(res)))
	if !res.Success || s.store == nil {
		return res, nil
	}
	if err = s.store.Save(ctx, s.board.Snapshot()); err != nil {
		s.log.Error("persist board snapshot", logx.String("op", op), logx.Err(err))
		return res, fmt.Errorf("%s: persist snapshot: %w", op, err)
	}
	return res, nil
}

func outcomeLabel(res MoveResult) string {
	if res.Success {
		return "success"
	}
	return strings.ToLower(string(res.Reason))
}
