package core

import (
	"context"
	"time"
)

// MetricsRecorder receives one observation per board operation. outcome is
// "success", "error" or the lower-cased rejection reason.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation, outcome string, duration time.Duration)
}

// OperationRef names what a board operation acts on. Subject is the order or
// run being changed; Target is the run, cell or date it is aimed at.
type OperationRef struct {
	Subject string
	Target  string
}

// Tracer starts spans around board operations.
type Tracer interface {
	Start(ctx context.Context, operation string, ref OperationRef) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any. A
// rejected operation ends with a RejectedError.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, string, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ OperationRef) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
