package method

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/roach88/vmethod/method"

	spanName = "vmethod.call"

	outcomeOK = "ok"
)

// Span event names, one per completed pipeline stage.
const (
	stageInput   = "input.validated"
	stageHandler = "handler.returned"
	stageOutput  = "output.validated"
)

type instruments struct {
	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	records  metric.Int64Counter
}

func newInstruments(tracer trace.Tracer, meter metric.Meter) (*instruments, error) {
	calls, err := meter.Int64Counter("vmethod.calls",
		metric.WithDescription("Method calls by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create calls counter: %w", err)
	}
	duration, err := meter.Float64Histogram("vmethod.call.duration",
		metric.WithDescription("Method call duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	records, err := meter.Int64Counter("vmethod.records",
		metric.WithDescription("Events emitted and errors raised"))
	if err != nil {
		return nil, fmt.Errorf("create records counter: %w", err)
	}
	return &instruments{tracer: tracer, calls: calls, duration: duration, records: records}, nil
}

// observation tracks one call's span and timing.
type observation struct {
	in     *instruments
	span   trace.Span
	method string
	start  time.Time
}

func (in *instruments) start(ctx context.Context, method, callID string) (context.Context, *observation) {
	ctx, span := in.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("vmethod.method", method),
		attribute.String("vmethod.call_id", callID),
	))
	return ctx, &observation{in: in, span: span, method: method, start: time.Now()}
}

func (o *observation) stage(name string) {
	o.span.AddEvent(name)
}

// recorded counts a successful Emit ("event") or Raise ("error").
func (o *observation) recorded(ctx context.Context, kind, name string) {
	o.span.AddEvent("record", trace.WithAttributes(
		attribute.String("vmethod.record.kind", kind),
		attribute.String("vmethod.record.name", name),
	))
	o.in.records.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", o.method),
		attribute.String("kind", kind),
		attribute.String("name", name),
	))
}

func (o *observation) end(ctx context.Context, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = "error"
		if kind, ok := KindOf(err); ok {
			outcome = string(kind)
		}
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, outcome)
	}
	o.span.SetAttributes(attribute.String("vmethod.outcome", outcome))
	o.span.End()

	attrs := metric.WithAttributes(
		attribute.String("method", o.method),
		attribute.String("outcome", outcome),
	)
	o.in.calls.Add(ctx, 1, attrs)
	o.in.duration.Record(ctx, float64(time.Since(o.start))/float64(time.Millisecond), attrs)
}
