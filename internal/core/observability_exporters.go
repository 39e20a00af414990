package core

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

// durationKey holds the millisecond total inside each operation map.
const durationKey = "duration_ms"

// ExpvarMetricsRecorder publishes one expvar.Map per recorder. Each operation
// maps to a nested map of outcome counters plus its total duration_ms, so the
// /debug/vars export reads {"move_order":{"success":3,"read_only":1,...}}.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  *expvar.Map
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated schedboard_board_N name when name is empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("schedboard_board_%d", expvarSeq.Add(1))
	}
	r := &ExpvarMetricsRecorder{name: name, ops: new(expvar.Map).Init()}
	expvar.Publish(name, r.ops)
	return r
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation, outcome string, duration time.Duration) {
	if operation == "" {
		return
	}
	m := r.operation(operation)
	m.Add(outcome, 1)
	m.AddFloat(durationKey, float64(duration)/float64(time.Millisecond))
}

func (r *ExpvarMetricsRecorder) operation(name string) *expvar.Map {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.ops.Get(name).(*expvar.Map); ok {
		return m
	}
	m := new(expvar.Map).Init()
	r.ops.Set(name, m)
	return m
}

// Count returns how often operation ended with outcome.
func (r *ExpvarMetricsRecorder) Count(operation, outcome string) int64 {
	m, ok := r.ops.Get(operation).(*expvar.Map)
	if !ok {
		return 0
	}
	n, ok := m.Get(outcome).(*expvar.Int)
	if !ok {
		return 0
	}
	return n.Value()
}

// JSONTraceEntry is one finished board operation span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Subject    string    `json:"subject,omitempty"`
	Target     string    `json:"target,omitempty"`
	Outcome    string    `json:"outcome"`
	Reason     Reason    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
}

// JSONTraceTracer writes one JSON line per finished span to w, when set, and
// keeps every entry for Entries.
type JSONTraceTracer struct {
	mu      sync.Mutex
	w       io.Writer
	entries []JSONTraceEntry
}

func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	return &JSONTraceTracer{w: w}
}

// Entries returns a copy of the finished spans in end order.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

func (t *JSONTraceTracer) Start(ctx context.Context, operation string, ref OperationRef) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{
		tracer: t,
		entry: JSONTraceEntry{
			Operation: operation,
			Subject:   ref.Subject,
			Target:    ref.Target,
			StartedAt: time.Now().UTC(),
		},
	}
}

func (t *JSONTraceTracer) finish(entry JSONTraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if t.w == nil {
		return
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = t.w.Write(append(line, '\n'))
}

type jsonSpan struct {
	tracer *JSONTraceTracer
	entry  JSONTraceEntry
}

func (s *jsonSpan) End(err error) {
	e := s.entry
	e.DurationMS = float64(time.Since(e.StartedAt)) / float64(time.Millisecond)
	var rejected RejectedError
	switch {
	case err == nil:
		e.Outcome = "success"
	case errors.As(err, &rejected):
		e.Outcome = strings.ToLower(string(rejected.Reason))
		e.Reason = rejected.Reason
	default:
		e.Outcome = "error"
		e.Error = err.Error()
	}
	s.tracer.finish(e)
}
