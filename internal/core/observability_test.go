package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if expvar.Get(rec.Name()) == nil {
		t.Fatalf("recorder %s not published", rec.Name())
	}
	svc, _ := newFixtureService(t, WithMetricsRecorder(rec))
	ctx := context.Background()
	_, _ = svc.MoveOrder(ctx, "o3", "r1", 0)
	_, _ = svc.MoveOrder(ctx, "o5", "r1", 0)
	rec.Observe(ctx, "", "success", time.Second)

	if rec.Count("move_order", "success") != 1 || rec.Count("move_order", "read_only") != 1 {
		t.Fatalf("unexpected move_order counts in %s", expvar.Get(rec.Name()))
	}
	if rec.Count("hydrate", "success") != 1 {
		t.Fatalf("hydrate not recorded in %s", expvar.Get(rec.Name()))
	}
	if rec.Count("move_order", "capacity_locked") != 0 || rec.Count("dissolve_run", "success") != 0 {
		t.Fatal("unseen outcomes should count zero")
	}

	var exported map[string]map[string]float64
	if err := json.Unmarshal([]byte(expvar.Get(rec.Name()).String()), &exported); err != nil {
		t.Fatalf("decode expvar: %v", err)
	}
	if _, ok := exported[""]; ok {
		t.Fatal("empty operation exported")
	}
	if exported["move_order"]["read_only"] != 1 {
		t.Fatalf("expvar export mismatch: %+v", exported)
	}
	if _, ok := exported["move_order"][durationKey]; !ok {
		t.Fatalf("missing %s in %+v", durationKey, exported["move_order"])
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	rec := NewPrometheusMetricsRecorder("")
	svc, _ := newFixtureService(t, WithMetricsRecorder(rec))
	ctx := context.Background()
	_, _ = svc.MoveOrder(ctx, "o3", "r1", 0)
	_, _ = svc.MoveOrder(ctx, "p1", "r1", 0)
	_, _ = svc.MoveOrder(ctx, "o4", "r2", Append)

	if got := testutil.ToFloat64(rec.ops.WithLabelValues("move_order", "success")); got != 2 {
		t.Fatalf("success count = %v", got)
	}
	if got := testutil.ToFloat64(rec.ops.WithLabelValues("move_order", "inbound_zone")); got != 1 {
		t.Fatalf("inbound_zone count = %v", got)
	}
	if n := testutil.CollectAndCount(rec.durations); n != 2 {
		t.Fatalf("expected histograms for hydrate and move_order, got %d", n)
	}

	path := filepath.Join(t.TempDir(), "board.prom")
	if err := rec.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `schedboard_board_operations_total{operation="move_order",outcome="success"} 2`) {
		t.Fatalf("textfile missing counter:\n%s", data)
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc, _ := newFixtureService(t, WithTracer(tracer))
	ctx := context.Background()
	_, _ = svc.MoveOrder(ctx, "o3", "r1", 0)
	_, _ = svc.MoveRun(ctx, "r3", cellWed, 0)

	entries := tracer.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(entries))
	}
	if entries[0].Operation != "hydrate" || entries[0].Subject != "" || entries[0].Outcome != "success" {
		t.Fatalf("unexpected hydrate span %+v", entries[0])
	}
	moved := entries[1]
	if moved.Operation != "move_order" || moved.Subject != "o3" || moved.Target != "r1" || moved.Outcome != "success" || moved.Reason != "" {
		t.Fatalf("unexpected span %+v", moved)
	}
	rejected := entries[2]
	if rejected.Outcome != "read_only" || rejected.Reason != ReasonReadOnly || rejected.Error != "" {
		t.Fatalf("unexpected span %+v", rejected)
	}
	if rejected.Subject != "r3" || rejected.Target != cellWed || rejected.DurationMS < 0 {
		t.Fatalf("unexpected span %+v", rejected)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 encoded spans, got %d", len(lines))
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[2]), &decoded); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if decoded.Operation != "move_run" || decoded.Reason != ReasonReadOnly {
		t.Fatalf("decoded span %+v", decoded)
	}

	quiet := NewJSONTracer(nil)
	_, span := quiet.Start(ctx, "hydrate", OperationRef{})
	span.End(errors.New("boom"))
	if got := quiet.Entries(); len(got) != 1 || got[0].Outcome != "error" || got[0].Error != "boom" {
		t.Fatalf("nil-writer tracer entries %+v", got)
	}
}

func TestNoopObservability(t *testing.T) {
	ctx, span := noopTracer{}.Start(context.Background(), "op", OperationRef{})
	span.End(nil)
	noopMetrics{}.Observe(ctx, "op", "success", time.Millisecond)
}
