package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"schedboard/internal/infra/persistence/memory"
	"schedboard/pkg/domain"
	"schedboard/pkg/logx"
)

type metricsCall struct {
	op       string
	outcome  string
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op, outcome string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, outcome: outcome, duration: duration})
}

func (c *captureMetricsRecorder) has(op, outcome string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.outcome == outcome {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	ref OperationRef
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string, ref OperationRef) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op, ref: ref}
}

func (c *captureTracer) last() spanRecord {
	if len(c.ended) == 0 {
		return spanRecord{}
	}
	return c.ended[len(c.ended)-1]
}

type captureSpan struct {
	tracer *captureTracer
	op     string
	ref    OperationRef
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, ref: s.ref, err: err})
}

type failingSaveStore struct {
	*memory.Store
	err error
}

func (s failingSaveStore) Save(context.Context, Payload) error { return s.err }

func newFixtureService(t *testing.T, opts ...ServiceOption) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(NewBoard(WithIDGenerator(sequentialIDs())), append([]ServiceOption{WithSnapshotStore(store)}, opts...)...)
	if err := svc.Hydrate(context.Background(), fixturePayload()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	return svc, store
}

func TestServicePersistsSuccessfulMutations(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc, store := newFixtureService(t, WithMetricsRecorder(metrics), WithTracer(tracer))
	if store.Saves() != 1 {
		t.Fatalf("hydrate saves = %d", store.Saves())
	}

	res, err := svc.MoveOrder(ctx, "o3", "r1", 0)
	if err != nil || !res.Success {
		t.Fatalf("move order: %+v %v", res, err)
	}
	if store.Saves() != 2 {
		t.Fatalf("saves = %d, want 2", store.Saves())
	}
	saved, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, r := range saved.Runs {
		if r.ID == "r1" {
			assertIDs(t, "persisted r1", r.OrderIDs, "o3", "o1", "o2")
		}
	}
	if !metrics.has("move_order", "success") {
		t.Fatalf("expected move_order success metric, got %+v", metrics.calls)
	}
	if last := tracer.last(); last.op != "move_order" || last.err != nil || last.ref != (OperationRef{Subject: "o3", Target: "r1"}) {
		t.Fatalf("unexpected span %+v", last)
	}
}

func TestServiceRejectionsAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc, store := newFixtureService(t, WithMetricsRecorder(metrics), WithTracer(tracer))

	locked, err := svc.ToggleDateLock(ctx, "2025-01-06")
	if err != nil || !locked {
		t.Fatalf("toggle: %v %v", locked, err)
	}
	saves := store.Saves()

	res, err := svc.MoveOrder(ctx, "o4", "r1", 0)
	if err != nil {
		t.Fatalf("move order: %v", err)
	}
	if res.Success || res.Reason != ReasonCapacityLocked {
		t.Fatalf("expected capacity lock, got %+v", res)
	}
	if store.Saves() != saves {
		t.Fatalf("rejected move was persisted")
	}
	if !metrics.has("move_order", "capacity_locked") {
		t.Fatalf("expected capacity_locked outcome, got %+v", metrics.calls)
	}
	var rejected RejectedError
	if last := tracer.last(); !errors.As(last.err, &rejected) || rejected.Reason != ReasonCapacityLocked {
		t.Fatalf("span error = %v", last.err)
	}
}

func TestServiceSaveFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	metrics := &captureMetricsRecorder{}
	var logs bytes.Buffer
	svc := NewService(NewBoard(),
		WithSnapshotStore(failingSaveStore{Store: memory.NewStore(), err: boom}),
		WithMetricsRecorder(metrics),
		WithLogger(logx.NewWriter(&logs, "debug")),
	)
	err := svc.Hydrate(ctx, fixturePayload())
	if !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	if !metrics.has("hydrate", "error") {
		t.Fatalf("expected error outcome, got %+v", metrics.calls)
	}
	if !strings.Contains(logs.String(), "persist board snapshot") {
		t.Fatalf("expected persist failure log, got %q", logs.String())
	}

	if got := len(svc.Snapshot().Orders); got != len(fixturePayload().Orders) {
		t.Fatalf("hydrated state dropped after save failure: %d orders", got)
	}
	res, err := svc.MoveOrder(ctx, "o3", "r1", 0)
	if !errors.Is(err, boom) || !res.Success {
		t.Fatalf("expected applied move with save error, got %+v %v", res, err)
	}
	svc.View(func(b *Board) {
		assertIDs(t, "r1 after failed save", runOrderIDs(t, b, "r1"), "o3", "o1", "o2")
		mustConsistent(t, b)
	})
}

func TestServiceLoad(t *testing.T) {
	ctx := context.Background()

	if err := NewService(nil).Load(ctx); err == nil {
		t.Fatal("expected error without store")
	}

	store := memory.NewStore()
	empty := NewService(nil, WithSnapshotStore(store))
	if err := empty.Load(ctx); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	svc, store := newFixtureService(t)
	if _, err := svc.MoveOrder(ctx, "o4", "r2", Append); err != nil {
		t.Fatalf("move: %v", err)
	}
	reloaded := NewService(nil, WithSnapshotStore(store))
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	reloaded.View(func(b *Board) {
		assertIDs(t, "r2", runOrderIDs(t, b, "r2"), "o3", "o4")
		mustConsistent(t, b)
	})
	if err := reloaded.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestServiceRunLifecycle(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	svc, _ := newFixtureService(t, WithMetricsRecorder(metrics))

	id, ok, err := svc.CreateRun(ctx, cellWed, "")
	if err != nil || !ok || id != "new-1" {
		t.Fatalf("create run: %q %v %v", id, ok, err)
	}
	if _, ok, err := svc.CreateRun(ctx, "broken", ""); ok || err != nil {
		t.Fatalf("expected refusal, got %v %v", ok, err)
	}
	if !metrics.has("create_run", "invalid_target") {
		t.Fatalf("expected invalid_target outcome, got %+v", metrics.calls)
	}

	if res, err := svc.CommitOrderToRun(ctx, "o4", id, 0); err != nil || !res.Success {
		t.Fatalf("commit: %+v %v", res, err)
	}
	if res, err := svc.MoveOrderLoose(ctx, "o1", cellWed); err != nil || !res.Success {
		t.Fatalf("loose: %+v %v", res, err)
	}
	if res, err := svc.MoveRun(ctx, "r2", cellWed, 0); err != nil || !res.Success {
		t.Fatalf("move run: %+v %v", res, err)
	}
	if err := svc.ReorderRunsInCell(ctx, cellWed, 0, 1); err != nil {
		t.Fatalf("reorder runs: %v", err)
	}
	if err := svc.ReorderInRun(ctx, "r1", 0, 0); err != nil {
		t.Fatalf("reorder in run: %v", err)
	}
	if ok, err := svc.DissolveRun(ctx, id); err != nil || !ok {
		t.Fatalf("dissolve: %v %v", ok, err)
	}
	if ok, _ := svc.DissolveRun(ctx, id); ok {
		t.Fatal("dissolving twice should fail")
	}

	snap := svc.Snapshot()
	cell := snap.Cells[cellWed]
	assertIDs(t, "wednesday runs", cell.RunIDs, "r2")
	assertIDs(t, "wednesday loose", cell.LooseOrderIDs, "o1")
	for _, r := range snap.Runs {
		if r.ID == "r2" {
			assertIDs(t, "r2", r.OrderIDs, "o4", "o3")
		}
	}
}

func TestServiceLogsRuleErrors(t *testing.T) {
	engine := NewDefaultRulesEngine()
	engine.Register(failingRule{})
	var logs bytes.Buffer
	svc := NewService(NewBoard(WithRulesEngine(engine)), WithLogger(logx.NewWriter(&logs, "info")))
	if err := svc.Hydrate(context.Background(), fixturePayload()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}

	res, err := svc.MoveOrder(context.Background(), "o4", "r1", 0)
	if err != nil || res.Reason != ReasonRuleError {
		t.Fatalf("expected RULE_ERROR, got %+v %v", res, err)
	}
	out := logs.String()
	if !strings.Contains(out, "rule evaluation failed") || !strings.Contains(out, "rule exploded") {
		t.Fatalf("rule error not logged: %q", out)
	}
}

type warnRule struct{}

func (warnRule) Name() string { return "late_slot" }

func (warnRule) Evaluate(_ context.Context, _ domain.RuleView, plan domain.MovePlan) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "late_slot",
		Severity: domain.SeverityWarn,
		Message:  "slot closes soon",
		EntityID: plan.Target,
	}}}, nil
}

func TestServiceLogsRuleWarnings(t *testing.T) {
	engine := NewDefaultRulesEngine()
	engine.Register(warnRule{})
	var logs bytes.Buffer
	svc := NewService(NewBoard(WithRulesEngine(engine)), WithLogger(logx.NewWriter(&logs, "info")))
	if err := svc.Hydrate(context.Background(), fixturePayload()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}

	res, err := svc.MoveOrder(context.Background(), "o4", "r1", 0)
	if err != nil || !res.Success {
		t.Fatalf("warning should not block: %+v %v", res, err)
	}
	out := logs.String()
	if !strings.Contains(out, "rule warning") || !strings.Contains(out, "slot closes soon") || !strings.Contains(out, `"rule":"late_slot"`) {
		t.Fatalf("warning not logged: %q", out)
	}

	logs.Reset()
	if res, _ := svc.MoveOrder(context.Background(), "o5", "r1", 0); res.Reason != ReasonReadOnly {
		t.Fatalf("expected READ_ONLY, got %+v", res)
	}
	if strings.Contains(logs.String(), "rule warning") {
		t.Fatalf("blocked move should not report warnings: %q", logs.String())
	}
}

func TestServiceSerialisesConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	svc, store := newFixtureService(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				switch (i + j) % 4 {
				case 0:
					_, _ = svc.MoveOrder(ctx, "o1", "r2", Append)
				case 1:
					_, _ = svc.MoveOrder(ctx, "o1", "r1", 0)
				case 2:
					_ = svc.ReorderRunsInCell(ctx, cellMon, 0, 1)
				default:
					_, _ = svc.MoveOrderLoose(ctx, "o4", cellWed)
				}
			}
		}(i)
	}
	wg.Wait()

	svc.View(func(b *Board) { mustConsistent(t, b) })
	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	check := NewBoard()
	check.Hydrate(persisted)
	mustConsistent(t, check)
}
